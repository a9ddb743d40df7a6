package domain

import (
	"context"
	"errors"

	"github.com/scailotto/backend/internal/model"
	"github.com/scailotto/backend/internal/repository"
	"github.com/scailotto/backend/pkg/errorx"
	"github.com/scailotto/backend/pkg/ethutil"
	"github.com/scailotto/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type UserDomain interface {
	GetUser(context.Context, *model.GetUserRequest) (*model.GetUserResponse, error)
	GetTickets(context.Context, *model.GetUserTicketsRequest) (*model.GetUserTicketsResponse, error)
	GetTransactions(context.Context, *model.GetUserTransactionsRequest) (*model.GetUserTransactionsResponse, error)
}

type userDomain struct {
	userRepo        repository.UserRepository
	ticketRepo      repository.TicketRepository
	transactionRepo repository.TransactionRepository
}

func NewUserDomain(
	userRepo repository.UserRepository,
	ticketRepo repository.TicketRepository,
	transactionRepo repository.TransactionRepository,
) *userDomain {
	return &userDomain{
		userRepo:        userRepo,
		ticketRepo:      ticketRepo,
		transactionRepo: transactionRepo,
	}
}

func (d *userDomain) GetUser(
	ctx context.Context, req *model.GetUserRequest,
) (*model.GetUserResponse, error) {
	address := ethutil.NormalizeAddress(req.Address)
	if address == "" {
		return nil, errorx.New(errorx.BadRequest, "Invalid address")
	}

	user, err := d.userRepo.GetByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "User not found")
		}

		xcontext.Logger(ctx).Errorf("Cannot get user: %v", err)
		return nil, errorx.New(errorx.StorageError, "Cannot read user")
	}

	resp := model.GetUserResponse(model.ConvertUser(user))
	return &resp, nil
}

func (d *userDomain) GetTickets(
	ctx context.Context, req *model.GetUserTicketsRequest,
) (*model.GetUserTicketsResponse, error) {
	address := ethutil.NormalizeAddress(req.Address)
	if address == "" {
		return nil, errorx.New(errorx.BadRequest, "Invalid address")
	}

	tickets, err := d.ticketRepo.GetListByOwner(ctx, address)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get tickets of user: %v", err)
		return nil, errorx.New(errorx.StorageError, "Cannot read tickets")
	}

	resp := model.GetUserTicketsResponse{}
	for i := range tickets {
		ticket := model.ConvertTicket(&tickets[i], "")
		ticket.Ownership = model.OwnershipOwnedByCaller
		resp = append(resp, ticket)
	}

	return &resp, nil
}

func (d *userDomain) GetTransactions(
	ctx context.Context, req *model.GetUserTransactionsRequest,
) (*model.GetUserTransactionsResponse, error) {
	address := ethutil.NormalizeAddress(req.Address)
	if address == "" {
		return nil, errorx.New(errorx.BadRequest, "Invalid address")
	}

	txs, err := d.transactionRepo.GetListByUser(ctx, address)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get transactions of user: %v", err)
		return nil, errorx.New(errorx.StorageError, "Cannot read transactions")
	}

	resp := model.GetUserTransactionsResponse{}
	for i := range txs {
		resp = append(resp, model.ConvertTransaction(&txs[i]))
	}

	return &resp, nil
}
