package allocation

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/math"
	"github.com/scailotto/backend/internal/common"
	"github.com/scailotto/backend/internal/domain/ledger"
	"github.com/scailotto/backend/internal/entity"
	"github.com/scailotto/backend/internal/repository"
	"github.com/scailotto/backend/pkg/cache"
	"github.com/scailotto/backend/pkg/crypto"
	"github.com/scailotto/backend/pkg/errorx"
	"github.com/scailotto/backend/pkg/ethutil"
	"github.com/scailotto/backend/pkg/xcontext"
	"gorm.io/gorm"
)

const TicketLabelLength = 6

var errRoundDrawn = errors.New("round is already drawn")

type PurchaseStatus string

const (
	// The ledger accepted the transaction, finality is awaited in background.
	StatusPending PurchaseStatus = "pending"

	// The ledger could not be reached. The reservation is kept and the sweep
	// settles it later.
	StatusProcessing PurchaseStatus = "processing"
)

type PurchaseRequest struct {
	Network     string
	TicketIndex int
	Buyer       string
	TxHash      string
}

type PurchaseResult struct {
	Round  *entity.Round
	Ticket *entity.Ticket
	Status PurchaseStatus
	TxHash string
}

// Engine moves tickets between available, reserved and confirmed. The local
// store is only a projection, every transition is driven by what the ledger
// reports.
type Engine struct {
	// Finality waits run on rootCtx so that they outlive the request.
	rootCtx context.Context
	wait    sync.WaitGroup

	roundRepo       repository.RoundRepository
	ticketRepo      repository.TicketRepository
	transactionRepo repository.TransactionRepository
	userRepo        repository.UserRepository

	ledgers *ledger.Registry
	cache   cache.Cache
}

func NewEngine(
	rootCtx context.Context,
	roundRepo repository.RoundRepository,
	ticketRepo repository.TicketRepository,
	transactionRepo repository.TransactionRepository,
	userRepo repository.UserRepository,
	ledgers *ledger.Registry,
	cache cache.Cache,
) *Engine {
	return &Engine{
		rootCtx:         rootCtx,
		roundRepo:       roundRepo,
		ticketRepo:      ticketRepo,
		transactionRepo: transactionRepo,
		userRepo:        userRepo,
		ledgers:         ledgers,
		cache:           cache,
	}
}

func (e *Engine) Ledger(network string) (ledger.Ledger, error) {
	l, ok := e.ledgers.Get(network)
	if !ok {
		return nil, errorx.New(errorx.UnsupportedNetwork, "Unsupported network %s", network)
	}

	return l, nil
}

func (e *Engine) Networks() []string {
	return e.ledgers.Networks()
}

// Wait blocks until every background finality wait returns.
func (e *Engine) Wait() {
	e.wait.Wait()
}

func (e *Engine) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	l, err := e.Ledger(req.Network)
	if err != nil {
		return nil, err
	}

	n := xcontext.Configs(ctx).Lottery.TicketsPerRound
	if req.TicketIndex < 1 || req.TicketIndex > n {
		return nil, errorx.New(errorx.BadRequest, "Ticket id must be between 1 and %d", n)
	}

	if req.TxHash != "" {
		_, err := e.transactionRepo.GetByHash(ctx, req.Network, req.TxHash)
		if err == nil {
			return nil, errorx.New(errorx.BadRequest, "Transaction has already been used")
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			xcontext.Logger(ctx).Errorf("Cannot get transaction by hash: %v", err)
			return nil, errorx.New(errorx.StorageError, "Cannot read purchase records")
		}
	}

	round, err := e.CurrentRound(ctx, req.Network)
	if err != nil {
		return nil, err
	}

	price := l.TicketPrice(ctx)
	reservation := repository.Reservation{
		ID:     uuid.NewString(),
		Buyer:  req.Buyer,
		TxHash: req.TxHash,
		Price:  ethutil.ToEther(price),
		At:     time.Now(),
	}

	ticket, err := e.ticketRepo.TryMarkPurchased(ctx, round.ID, req.TicketIndex, reservation)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.IncCounter(common.TicketPurchaseTotal, req.Network, "taken")
			return nil, errorx.New(errorx.TicketAlreadyTaken, "Ticket %d is already taken", req.TicketIndex)
		}

		xcontext.Logger(ctx).Errorf("Cannot reserve ticket %d: %v", req.TicketIndex, err)
		return nil, errorx.New(errorx.StorageError, "Cannot reserve ticket")
	}
	e.invalidate(ctx, req.Network)

	txHash, err := l.SubmitPurchase(ctx, ledger.SubmitRequest{
		TicketIndex: req.TicketIndex,
		Buyer:       req.Buyer,
		Amount:      price,
		TxHash:      req.TxHash,
	})
	if err != nil {
		err = ledger.Classify(err)
		common.IncCounter(common.LedgerFailureTotal, req.Network, ledger.Kind(err))

		if errors.Is(err, ledger.ErrLedgerUnavailable) && req.TxHash != "" &&
			e.mayKeepProcessing(ctx, round.ID, req.Buyer) {
			xcontext.Logger(ctx).Warnf("Ledger of %s is unavailable, leave ticket %d processing: %v",
				req.Network, req.TicketIndex, err)

			if err := e.recordPending(ctx, req.Network, ticket, req.TxHash); err != nil {
				xcontext.Logger(ctx).Errorf("Cannot record pending purchase: %v", err)
				return nil, errorx.New(errorx.StorageError, "Cannot record purchase")
			}

			common.IncCounter(common.TicketPurchaseTotal, req.Network, string(StatusProcessing))
			return &PurchaseResult{Round: round, Ticket: ticket, Status: StatusProcessing, TxHash: req.TxHash}, nil
		}

		xcontext.Logger(ctx).Infof("Ledger refused ticket %d of %s: %v", req.TicketIndex, req.Network, err)
		if err := e.ticketRepo.Release(ctx, ticket.ID, reservation.ID); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot release ticket %s: %v", ticket.ID, err)
		}
		e.invalidate(ctx, req.Network)

		common.IncCounter(common.TicketPurchaseTotal, req.Network, "rejected")
		return nil, ledgerError(err)
	}

	if err := e.recordPending(ctx, req.Network, ticket, txHash); err != nil {
		// The ledger accepted it, so the reservation stays and reconciliation
		// settles the ticket.
		xcontext.Logger(ctx).Errorf("Cannot record accepted purchase %s: %v", txHash, err)
		return nil, errorx.New(errorx.StorageError, "Cannot record purchase")
	}
	e.invalidate(ctx, req.Network)
	common.IncCounter(common.TicketPurchaseTotal, req.Network, string(StatusPending))

	e.wait.Add(1)
	go func() {
		defer e.wait.Done()
		e.awaitFinality(l, ticket.ID, reservation.ID, txHash)
	}()

	return &PurchaseResult{Round: round, Ticket: ticket, Status: StatusPending, TxHash: txHash}, nil
}

// mayKeepProcessing tells whether buyer may hold one more reservation which
// the ledger cannot settle yet. The reservation being decided is counted.
func (e *Engine) mayKeepProcessing(ctx context.Context, roundID, buyer string) bool {
	limit := xcontext.Configs(ctx).Lottery.MaxProcessingPerBuyer
	if limit <= 0 {
		return true
	}

	n, err := e.ticketRepo.CountReservedByBuyer(ctx, roundID, buyer)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot count reservations of %s: %v", buyer, err)
		return false
	}

	if n > int64(limit) {
		xcontext.Logger(ctx).Warnf("Buyer %s already holds %d unsettled reservations", buyer, n-1)
		return false
	}

	return true
}

func (e *Engine) recordPending(ctx context.Context, network string, ticket *entity.Ticket, txHash string) error {
	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	now := time.Now()
	err := e.transactionRepo.Create(ctx, &entity.Transaction{
		Base:            entity.Base{ID: uuid.NewString()},
		UserAddress:     ticket.PurchaserAddress.String,
		Type:            entity.TransactionPurchase,
		Amount:          ticket.PurchasePrice,
		TicketID:        sql.NullString{String: ticket.ID, Valid: true},
		TransactionHash: txHash,
		Network:         network,
		Status:          entity.TransactionPending,
	})
	if err != nil {
		return err
	}

	if err := e.userRepo.Touch(ctx, ticket.PurchaserAddress.String, now); err != nil {
		return err
	}

	return xcontext.WithCommitDBTransaction(ctx)
}

func (e *Engine) awaitFinality(l ledger.Ledger, ticketID, reservationID, txHash string) {
	ctx := e.rootCtx
	network := l.Network()

	switch outcome := l.AwaitFinality(ctx, txHash); outcome {
	case ledger.OutcomeCommitted:
		ticket, err := e.ticketRepo.GetByID(ctx, ticketID)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot get ticket %s: %v", ticketID, err)
			return
		}

		if ticket.Status != entity.TicketReserved || ticket.ReservationID.String != reservationID {
			xcontext.Logger(ctx).Infof("Ticket %s changed while awaiting %s, leave it for the sweep", ticketID, txHash)
			return
		}

		if err := e.confirm(ctx, ticket, ticket.PurchaserAddress.String, txHash); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot confirm ticket %s: %v", ticketID, err)
			return
		}
		common.IncCounter(common.TicketPurchaseTotal, network, "confirmed")

	case ledger.OutcomeRejected:
		if err := e.rollback(ctx, ticketID, reservationID, txHash); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot roll back ticket %s: %v", ticketID, err)
			return
		}
		common.IncCounter(common.TicketPurchaseTotal, network, "reverted")

	default:
		xcontext.Logger(ctx).Infof("Transaction %s is not final yet, leave it for the sweep", txHash)
		return
	}

	e.invalidate(ctx, network)
}

// confirm finalizes ticket as sold to owner and settles its pending purchase
// transactions: the ones of owner are confirmed and credited exactly once,
// the ones of anybody else are failed.
func (e *Engine) confirm(ctx context.Context, ticket *entity.Ticket, owner, txHash string) error {
	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	switch {
	case ticket.Status == entity.TicketReserved && ethutil.SameAddress(ticket.PurchaserAddress.String, owner):
		if err := e.ticketRepo.Confirm(ctx, ticket.ID, txHash); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

	case !ethutil.SameAddress(ticket.PurchaserAddress.String, owner):
		if err := e.ticketRepo.Reassign(ctx, ticket.ID, owner, txHash); err != nil {
			return err
		}
	}

	if err := e.settle(ctx, ticket.ID, owner); err != nil {
		return err
	}

	if err := e.refreshPrize(ctx, ticket.RoundID); err != nil {
		return err
	}

	return xcontext.WithCommitDBTransaction(ctx)
}

func (e *Engine) settle(ctx context.Context, ticketID, owner string) error {
	pendings, err := e.transactionRepo.GetPendingByTicketID(ctx, ticketID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, tx := range pendings {
		if !ethutil.SameAddress(tx.UserAddress, owner) {
			err := e.transactionRepo.UpdateStatus(ctx, tx.ID, entity.TransactionPending, entity.TransactionFailed)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			continue
		}

		err := e.transactionRepo.UpdateStatus(ctx, tx.ID, entity.TransactionPending, entity.TransactionConfirmed)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Somebody else settled it first.
			continue
		}
		if err != nil {
			return err
		}

		if err := e.userRepo.AddPurchase(ctx, tx.UserAddress, tx.Amount, now); err != nil {
			return err
		}
	}

	return nil
}

// rollback releases a reservation whose transaction reverted and fails the
// pending transactions carrying that hash.
func (e *Engine) rollback(ctx context.Context, ticketID, reservationID, txHash string) error {
	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	if err := e.ticketRepo.Release(ctx, ticketID, reservationID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := e.failPending(ctx, ticketID, txHash); err != nil {
		return err
	}

	return xcontext.WithCommitDBTransaction(ctx)
}

// failPending fails pending transactions of ticket, only the ones carrying
// txHash if it is not empty.
func (e *Engine) failPending(ctx context.Context, ticketID, txHash string) error {
	pendings, err := e.transactionRepo.GetPendingByTicketID(ctx, ticketID)
	if err != nil {
		return err
	}

	for _, tx := range pendings {
		if txHash != "" && !strings.EqualFold(tx.TransactionHash, txHash) {
			continue
		}

		err := e.transactionRepo.UpdateStatus(ctx, tx.ID, entity.TransactionPending, entity.TransactionFailed)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	return nil
}

func (e *Engine) refreshPrize(ctx context.Context, roundID string) error {
	sold, err := e.ticketRepo.GetPurchasedByRoundID(ctx, roundID)
	if err != nil {
		return err
	}

	prize := 0.0
	for _, t := range sold {
		if t.Status == entity.TicketConfirmed {
			prize += t.PurchasePrice
		}
	}

	return e.roundRepo.UpdatePrize(ctx, roundID, prize)
}

// CurrentRound returns the local round matching the current round of the
// ledger. It opens the round if it does not exist yet and draws the previous
// one when the ledger has moved on.
func (e *Engine) CurrentRound(ctx context.Context, network string) (*entity.Round, error) {
	l, err := e.Ledger(network)
	if err != nil {
		return nil, err
	}

	local, err := e.roundRepo.GetCurrent(ctx, network)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			xcontext.Logger(ctx).Errorf("Cannot get current round: %v", err)
			return nil, errorx.New(errorx.StorageError, "Cannot read round")
		}
	}

	number, err := l.CurrentRoundID(ctx)
	reported := err == nil
	if err != nil {
		common.IncCounter(common.LedgerFailureTotal, network, ledger.Kind(err))
		xcontext.Logger(ctx).Debugf("Cannot get current round of %s from ledger: %v", network, err)
		if local != nil {
			return local, nil
		}
	}

	if local != nil {
		if local.RoundNumber >= number {
			if local.RoundNumber > number {
				xcontext.Logger(ctx).Warnf("Local round %d of %s is ahead of ledger round %d",
					local.RoundNumber, network, number)
			}
			return local, nil
		}

		if err := e.closeRound(ctx, l, local); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot close round %d of %s: %v", local.RoundNumber, network, err)
			return nil, errorx.New(errorx.StorageError, "Cannot close round")
		}
	} else {
		number, err = e.nextRoundNumber(ctx, network, number, reported)
		if err != nil {
			return nil, err
		}
	}

	round, err := e.openRound(ctx, network, number)
	if err != nil {
		if errors.Is(err, errRoundDrawn) {
			xcontext.Logger(ctx).Warnf("Ledger of %s reports round %d which is already drawn", network, number)
			return nil, errorx.New(errorx.LedgerUnavailable, "Round %d is already drawn", number)
		}

		xcontext.Logger(ctx).Errorf("Cannot open round %d of %s: %v", number, network, err)
		return nil, errorx.New(errorx.StorageError, "Cannot open round")
	}

	return round, nil
}

// nextRoundNumber decides which round to open when no round is in progress
// locally. When the ledger could not report its round, the one following the
// last local round is opened.
func (e *Engine) nextRoundNumber(ctx context.Context, network string, number int64, reported bool) (int64, error) {
	last, err := e.roundRepo.GetLast(ctx, network)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			xcontext.Logger(ctx).Errorf("Cannot get last round: %v", err)
			return 0, errorx.New(errorx.StorageError, "Cannot read round")
		}

		if !reported {
			return xcontext.Configs(ctx).Lottery.DefaultRound, nil
		}
		return number, nil
	}

	if !reported {
		return math.MaxInt64(last.RoundNumber+1, xcontext.Configs(ctx).Lottery.DefaultRound), nil
	}

	if number <= last.RoundNumber {
		xcontext.Logger(ctx).Warnf("Ledger of %s reports round %d, last local round is %d",
			network, number, last.RoundNumber)
		return 0, errorx.New(errorx.LedgerUnavailable, "Round %d is already drawn", number)
	}

	return number, nil
}

// openRound returns the round numbered number, creating it if needed. A round
// which has already been drawn is never reopened.
func (e *Engine) openRound(ctx context.Context, network string, number int64) (*entity.Round, error) {
	round, err := e.roundRepo.GetByNumber(ctx, network, number)
	if err == nil {
		if round.IsDrawn {
			return nil, errRoundDrawn
		}
		return round, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	round, err = e.createRound(ctx, network, number)
	if err != nil {
		// Another request may have opened the same round concurrently.
		existing, getErr := e.roundRepo.GetByNumber(ctx, network, number)
		if getErr != nil {
			return nil, err
		}
		if existing.IsDrawn {
			return nil, errRoundDrawn
		}

		return existing, nil
	}

	xcontext.Logger(ctx).Infof("Opened round %d of %s", number, network)
	e.invalidate(ctx, network)
	return round, nil
}

func (e *Engine) createRound(ctx context.Context, network string, number int64) (*entity.Round, error) {
	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	now := time.Now()
	round := &entity.Round{
		Base:        entity.Base{ID: uuid.NewString()},
		Network:     network,
		RoundNumber: number,
		StartTime:   now,
		EndTime:     now.Add(xcontext.Configs(ctx).Lottery.RoundDuration.Duration),
		IsActive:    true,
	}

	if err := e.roundRepo.Create(ctx, round); err != nil {
		return nil, err
	}

	n := xcontext.Configs(ctx).Lottery.TicketsPerRound
	tickets := make([]entity.Ticket, 0, n)
	labels := make(map[string]bool, n)
	for i := 1; i <= n; i++ {
		label := crypto.GenerateRandomLabel(TicketLabelLength)
		for labels[label] {
			label = crypto.GenerateRandomLabel(TicketLabelLength)
		}
		labels[label] = true

		tickets = append(tickets, entity.Ticket{
			Base:         entity.Base{ID: uuid.NewString()},
			RoundID:      round.ID,
			TicketNumber: label,
			TicketIndex:  i,
			IsAvailable:  true,
			Status:       entity.TicketAvailable,
		})
	}

	if err := e.ticketRepo.CreateBatch(ctx, tickets); err != nil {
		return nil, err
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		return nil, err
	}

	return round, nil
}

// closeRound marks round as drawn, crediting its winner if the ledger already
// announced one.
func (e *Engine) closeRound(ctx context.Context, l ledger.Ledger, round *entity.Round) error {
	winner, err := l.RoundWinner(ctx, round.RoundNumber)
	if err != nil {
		xcontext.Logger(ctx).Warnf("Cannot get winner of round %d on %s: %v", round.RoundNumber, l.Network(), err)
		winner = nil
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	prize := round.PrizeAmount
	var winningTicketID, winnerAddress sql.NullString
	if winner != nil {
		if winner.Prize != nil {
			prize = ethutil.ToEther(winner.Prize)
		}

		winnerAddress = sql.NullString{String: ethutil.NormalizeAddress(winner.Address), Valid: true}
		ticket, err := e.ticketRepo.GetByIndex(ctx, round.ID, winner.TicketIndex)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			winningTicketID = sql.NullString{String: ticket.ID, Valid: true}
		}
	}

	if err := e.roundRepo.Draw(ctx, round.ID, prize, winningTicketID, winnerAddress); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if winner != nil {
		err := e.transactionRepo.Create(ctx, &entity.Transaction{
			Base:            entity.Base{ID: uuid.NewString()},
			UserAddress:     winnerAddress.String,
			Type:            entity.TransactionWin,
			Amount:          prize,
			TicketID:        winningTicketID,
			TransactionHash: winner.TxHash,
			Network:         l.Network(),
			Status:          entity.TransactionConfirmed,
		})
		if err != nil {
			return err
		}

		if err := e.userRepo.AddWinning(ctx, winnerAddress.String, prize, time.Now()); err != nil {
			return err
		}
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		return err
	}

	xcontext.Logger(ctx).Infof("Closed round %d of %s", round.RoundNumber, l.Network())
	e.invalidate(ctx, l.Network())
	return nil
}

func (e *Engine) invalidate(ctx context.Context, network string) {
	e.cache.Invalidate(ctx, common.CacheKeyNetwork(network))
}

func ledgerError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidTransaction):
		return errorx.New(errorx.BadRequest, "Transaction does not purchase this ticket")
	case errors.Is(err, ledger.ErrTransactionNotFound):
		return errorx.New(errorx.BadRequest, "Transaction is not known to the ledger")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return errorx.New(errorx.LedgerRejected, "Insufficient funds")
	case errors.Is(err, ledger.ErrUserRejected):
		return errorx.New(errorx.LedgerRejected, "Transaction was rejected by the user")
	case errors.Is(err, ledger.ErrTicketUnavailable):
		return errorx.New(errorx.LedgerRejected, "Ticket is not available on the ledger")
	default:
		return errorx.New(errorx.LedgerUnavailable, "Ledger is unavailable, please try again later")
	}
}
