package domain

import (
	"context"
	"math/big"
	"strings"

	"github.com/scailotto/backend/internal/common"
	"github.com/scailotto/backend/internal/domain/allocation"
	"github.com/scailotto/backend/internal/model"
	"github.com/scailotto/backend/internal/repository"
	"github.com/scailotto/backend/pkg/cache"
	"github.com/scailotto/backend/pkg/errorx"
	"github.com/scailotto/backend/pkg/ethutil"
	"github.com/scailotto/backend/pkg/xcontext"
)

const MaxHistoryLimit = 100

type LotteryDomain interface {
	GetCurrentRound(context.Context, *model.GetCurrentRoundRequest) (*model.GetCurrentRoundResponse, error)
	GetPurchasedTickets(context.Context, *model.GetPurchasedTicketsRequest) (*model.GetPurchasedTicketsResponse, error)
	GetRoundTickets(context.Context, *model.GetRoundTicketsRequest) (*model.GetRoundTicketsResponse, error)
	GetHistory(context.Context, *model.GetHistoryRequest) (*model.GetHistoryResponse, error)
	EstimateFee(context.Context, *model.EstimateFeeRequest) (*model.EstimateFeeResponse, error)
	PurchaseTicket(context.Context, *model.PurchaseTicketRequest) (*model.PurchaseTicketResponse, error)
}

type lotteryDomain struct {
	engine     *allocation.Engine
	roundRepo  repository.RoundRepository
	ticketRepo repository.TicketRepository
	cache      cache.Cache
}

func NewLotteryDomain(
	engine *allocation.Engine,
	roundRepo repository.RoundRepository,
	ticketRepo repository.TicketRepository,
	cache cache.Cache,
) *lotteryDomain {
	return &lotteryDomain{
		engine:     engine,
		roundRepo:  roundRepo,
		ticketRepo: ticketRepo,
		cache:      cache,
	}
}

func (d *lotteryDomain) GetCurrentRound(
	ctx context.Context, req *model.GetCurrentRoundRequest,
) (*model.GetCurrentRoundResponse, error) {
	caller, err := parseCaller(req.Address)
	if err != nil {
		return nil, err
	}

	view, err := d.currentRoundView(ctx, req.Network)
	if err != nil {
		return nil, err
	}

	labelOwnership(view.Tickets, caller)
	return view, nil
}

func (d *lotteryDomain) GetPurchasedTickets(
	ctx context.Context, req *model.GetPurchasedTicketsRequest,
) (*model.GetPurchasedTicketsResponse, error) {
	caller, err := parseCaller(req.Address)
	if err != nil {
		return nil, err
	}

	prefix := common.CacheKeyNetwork(req.Network)
	key := common.CacheKeyPurchased(req.Network)
	view, ok := cache.GetObj[model.GetPurchasedTicketsResponse](ctx, d.cache, key)
	if !ok {
		gen, _ := d.cache.Generation(ctx, prefix)
		current, err := d.currentRoundView(ctx, req.Network)
		if err != nil {
			return nil, err
		}

		view = &model.GetPurchasedTicketsResponse{Tickets: []model.Ticket{}}
		for _, t := range current.Tickets {
			if !t.IsAvailable {
				view.Tickets = append(view.Tickets, t)
			}
		}
		view.Count = len(view.Tickets)

		cache.PutObjIfCurrent(ctx, d.cache, prefix, gen, key, view)
	}

	labelOwnership(view.Tickets, caller)
	return view, nil
}

func (d *lotteryDomain) GetRoundTickets(
	ctx context.Context, req *model.GetRoundTicketsRequest,
) (*model.GetRoundTicketsResponse, error) {
	caller, err := parseCaller(req.Address)
	if err != nil {
		return nil, err
	}

	view, err := d.currentRoundView(ctx, req.Network)
	if err != nil {
		return nil, err
	}

	labelOwnership(view.Tickets, caller)
	resp := model.GetRoundTicketsResponse(view.Tickets)
	return &resp, nil
}

func (d *lotteryDomain) GetHistory(
	ctx context.Context, req *model.GetHistoryRequest,
) (*model.GetHistoryResponse, error) {
	if _, err := d.engine.Ledger(req.Network); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = xcontext.Configs(ctx).Lottery.HistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	key := common.CacheKeyHistory(req.Network, limit)
	if view, ok := cache.GetObj[model.GetHistoryResponse](ctx, d.cache, key); ok {
		return view, nil
	}

	prefix := common.CacheKeyNetwork(req.Network)
	gen, _ := d.cache.Generation(ctx, prefix)

	rounds, err := d.roundRepo.GetPast(ctx, req.Network, limit)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get past rounds: %v", err)
		return nil, errorx.New(errorx.StorageError, "Cannot read rounds")
	}

	resp := model.GetHistoryResponse{}
	for i := range rounds {
		resp = append(resp, model.ConvertRound(&rounds[i]))
	}

	cache.PutObjIfCurrent(ctx, d.cache, prefix, gen, key, resp)
	return &resp, nil
}

func (d *lotteryDomain) EstimateFee(
	ctx context.Context, req *model.EstimateFeeRequest,
) (*model.EstimateFeeResponse, error) {
	l, err := d.engine.Ledger(req.Network)
	if err != nil {
		return nil, err
	}

	n := xcontext.Configs(ctx).Lottery.TicketsPerRound
	if req.TicketID < 1 || req.TicketID > n {
		return nil, errorx.New(errorx.BadRequest, "Ticket id must be between 1 and %d", n)
	}

	caller, err := parseCaller(req.Address)
	if err != nil {
		return nil, err
	}

	return &model.EstimateFeeResponse{
		Network:  req.Network,
		TicketID: req.TicketID,
		Fee:      ethutil.FormatEther(l.EstimateFee(ctx, req.TicketID, caller)),
	}, nil
}

func (d *lotteryDomain) PurchaseTicket(
	ctx context.Context, req *model.PurchaseTicketRequest,
) (*model.PurchaseTicketResponse, error) {
	if req.TicketID == 0 || req.UserAddress == "" || req.TransactionHash == "" || req.Network == "" {
		return nil, errorx.New(errorx.BadRequest, "Missing required fields")
	}

	buyer := ethutil.NormalizeAddress(req.UserAddress)
	if buyer == "" {
		return nil, errorx.New(errorx.BadRequest, "Invalid user address")
	}

	if !ethutil.IsTxHash(req.TransactionHash) {
		return nil, errorx.New(errorx.BadRequest, "Invalid transaction hash")
	}

	result, err := d.engine.Purchase(ctx, allocation.PurchaseRequest{
		Network:     req.Network,
		TicketIndex: req.TicketID,
		Buyer:       buyer,
		TxHash:      strings.ToLower(req.TransactionHash),
	})
	if err != nil {
		return nil, err
	}

	message := "Ticket purchased, waiting for confirmation"
	if result.Status == allocation.StatusProcessing {
		message = "Ledger is busy, the purchase is being processed"
	}

	ticket := model.ConvertTicket(result.Ticket, "")
	ticket.Ownership = model.OwnershipOwnedByCaller

	return &model.PurchaseTicketResponse{
		Success:         true,
		Status:          string(result.Status),
		Ticket:          ticket,
		TransactionHash: result.TxHash,
		Message:         message,
	}, nil
}

// currentRoundView returns the caller independent view of the current round.
// On a cache miss the round is reconciled with the ledger before it is read.
// The view is cached only if no write invalidated the network while loading.
func (d *lotteryDomain) currentRoundView(ctx context.Context, network string) (*model.GetCurrentRoundResponse, error) {
	l, err := d.engine.Ledger(network)
	if err != nil {
		return nil, err
	}

	key := common.CacheKeyCurrentRound(network)
	if view, ok := cache.GetObj[model.GetCurrentRoundResponse](ctx, d.cache, key); ok {
		return view, nil
	}

	if _, err := d.engine.Reconcile(ctx, network); err != nil {
		if !errorx.Is(err, errorx.LedgerUnavailable) {
			return nil, err
		}

		xcontext.Logger(ctx).Warnf("Serve %s from the local store only: %v", network, err)
	}

	prefix := common.CacheKeyNetwork(network)
	gen, _ := d.cache.Generation(ctx, prefix)

	round, err := d.engine.CurrentRound(ctx, network)
	if err != nil {
		return nil, err
	}

	tickets, err := d.ticketRepo.GetListByRoundID(ctx, round.ID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get tickets of round %s: %v", round.ID, err)
		return nil, errorx.New(errorx.StorageError, "Cannot read tickets")
	}

	price := ethutil.FormatEther(l.TicketPrice(ctx))
	view := &model.GetCurrentRoundResponse{
		Round:   model.ConvertRound(round),
		Tickets: make([]model.Ticket, 0, len(tickets)),
	}

	prizePool := new(big.Int)
	for i := range tickets {
		view.Tickets = append(view.Tickets, model.ConvertTicket(&tickets[i], price))
		if tickets[i].IsAvailable {
			view.Stats.AvailableTickets++
		} else {
			view.Stats.SoldTickets++
			prizePool.Add(prizePool, ethutil.FromEther(tickets[i].PurchasePrice))
		}
	}
	view.Stats.TotalTickets = len(tickets)
	view.Stats.PrizePool = ethutil.FormatEther(prizePool)

	cache.PutObjIfCurrent(ctx, d.cache, prefix, gen, key, view)
	return view, nil
}

// parseCaller returns the normalized address of the caller, empty if the
// caller is anonymous.
func parseCaller(address string) (string, error) {
	if address == "" {
		return "", nil
	}

	caller := ethutil.NormalizeAddress(address)
	if caller == "" {
		return "", errorx.New(errorx.BadRequest, "Invalid address")
	}

	return caller, nil
}

func labelOwnership(tickets []model.Ticket, caller string) {
	for i := range tickets {
		switch {
		case tickets[i].IsAvailable:
			tickets[i].Ownership = model.OwnershipAvailable
		case caller != "" && ethutil.SameAddress(tickets[i].PurchaserAddress, caller):
			tickets[i].Ownership = model.OwnershipOwnedByCaller
		default:
			tickets[i].Ownership = model.OwnershipSoldToOther
		}
	}
}
