package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scailotto/backend/internal/common"
	"github.com/scailotto/backend/internal/domain/ledger"
	"github.com/scailotto/backend/internal/entity"
	"github.com/scailotto/backend/pkg/errorx"
	"github.com/scailotto/backend/pkg/ethutil"
	"github.com/scailotto/backend/pkg/xcontext"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Owner lookups hit the rpc once per sold ticket.
const MaxConcurrentOwnerReads = 8

type ReconcileReport struct {
	Network     string
	RoundNumber int64

	Backfilled int
	Confirmed  int
	Reassigned int
	Released   int
}

func (r *ReconcileReport) Changed() bool {
	return r.Backfilled+r.Confirmed+r.Reassigned+r.Released > 0
}

func (r *ReconcileReport) String() string {
	return fmt.Sprintf("round %d of %s: backfilled=%d confirmed=%d reassigned=%d released=%d",
		r.RoundNumber, r.Network, r.Backfilled, r.Confirmed, r.Reassigned, r.Released)
}

// Reconcile brings the tickets of the current round in line with the ledger.
// The ledger always wins: sales only the ledger knows are backfilled, the
// local owner is overwritten when they disagree and reservations which the
// ledger never saw are released once the grace period elapsed.
func (e *Engine) Reconcile(ctx context.Context, network string) (*ReconcileReport, error) {
	l, err := e.Ledger(network)
	if err != nil {
		return nil, err
	}

	round, err := e.CurrentRound(ctx, network)
	if err != nil {
		return nil, err
	}

	cfg := xcontext.Configs(ctx).Lottery
	snapshot, err := ledger.TakeSnapshot(ctx, l, round.RoundNumber, cfg.TicketsPerRound)
	if err != nil {
		common.IncCounter(common.LedgerFailureTotal, network, ledger.Kind(err))
		if errors.Is(err, ledger.ErrLedgerInconsistent) {
			xcontext.Logger(ctx).Errorf("Ledger of %s is inconsistent: %v", network, err)
		} else {
			xcontext.Logger(ctx).Warnf("Cannot take snapshot of %s: %v", network, err)
		}
		return nil, errorx.New(errorx.LedgerUnavailable, "Cannot read tickets from the ledger")
	}

	owners, err := e.readOwners(ctx, l, snapshot, cfg.TicketsPerRound)
	if err != nil {
		common.IncCounter(common.LedgerFailureTotal, network, ledger.Kind(err))
		xcontext.Logger(ctx).Warnf("Cannot read ticket owners of %s: %v", network, err)
		return nil, errorx.New(errorx.LedgerUnavailable, "Cannot read tickets from the ledger")
	}

	tickets, err := e.ticketRepo.GetListByRoundID(ctx, round.ID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get tickets of round %s: %v", round.ID, err)
		return nil, errorx.New(errorx.StorageError, "Cannot read tickets")
	}

	report := &ReconcileReport{Network: network, RoundNumber: round.RoundNumber}
	purchased := snapshot.PurchasedSet()
	price := ethutil.ToEther(l.TicketPrice(ctx))
	now := time.Now()

	for i := range tickets {
		ticket := &tickets[i]

		var action string
		if purchased[ticket.TicketIndex] {
			action, err = e.reconcileSold(ctx, l, ticket, owners[ticket.TicketIndex], price, now)
		} else {
			action, err = e.reconcileUnsold(ctx, ticket, cfg.ReservationGrace.Duration, now)
		}

		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot reconcile ticket %d of %s: %v", ticket.TicketIndex, network, err)
			continue
		}

		switch action {
		case actionBackfill:
			report.Backfilled++
		case actionConfirm:
			report.Confirmed++
		case actionReassign:
			report.Reassigned++
		case actionRelease:
			report.Released++
		default:
			continue
		}
		common.IncCounter(common.ReconcileChangeTotal, network, action)
	}

	if report.Changed() {
		if err := e.refreshPrize(ctx, round.ID); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot refresh prize of round %s: %v", round.ID, err)
		}

		e.invalidate(ctx, network)
		xcontext.Logger(ctx).Infof("Reconciled %s", report)
	}

	return report, nil
}

// ReconcileAll reconciles every supported network, failures of one network do
// not stop the others.
func (e *Engine) ReconcileAll(ctx context.Context) {
	for _, network := range e.Networks() {
		if _, err := e.Reconcile(ctx, network); err != nil {
			xcontext.Logger(ctx).Warnf("Cannot reconcile %s: %v", network, err)
		}
	}
}

const (
	actionNone     = ""
	actionBackfill = "backfill"
	actionConfirm  = "confirm"
	actionReassign = "reassign"
	actionRelease  = "release"
)

func (e *Engine) readOwners(
	ctx context.Context, l ledger.Ledger, snapshot *ledger.Snapshot, n int,
) ([]string, error) {
	owners := make([]string, n+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentOwnerReads)
	for _, index := range snapshot.Purchased {
		index := index
		g.Go(func() error {
			owner, err := l.TicketOwner(gctx, snapshot.RoundID, index)
			if err != nil {
				return err
			}

			owners[index] = ethutil.NormalizeAddress(owner)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return owners, nil
}

func (e *Engine) reconcileSold(
	ctx context.Context, l ledger.Ledger, ticket *entity.Ticket, owner string, price float64, now time.Time,
) (string, error) {
	if owner == "" {
		xcontext.Logger(ctx).Warnf("Ledger reports ticket %d as sold without owner", ticket.TicketIndex)
		return actionNone, nil
	}

	sameOwner := ethutil.SameAddress(ticket.PurchaserAddress.String, owner)
	switch {
	case ticket.IsAvailable:
		txHash, err := l.PurchaseTxHash(ctx, ticket.TicketIndex, owner)
		if err != nil {
			xcontext.Logger(ctx).Debugf("Cannot find purchase of ticket %d: %v", ticket.TicketIndex, err)
			txHash = ""
		}

		if err := e.ticketRepo.Backfill(ctx, ticket.ID, owner, txHash, price, now); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return actionNone, nil
			}
			return actionNone, err
		}

		return actionBackfill, nil

	case ticket.Status == entity.TicketReserved && sameOwner:
		if err := e.confirm(ctx, ticket, owner, ticket.TransactionHash.String); err != nil {
			return actionNone, err
		}

		return actionConfirm, nil

	case !sameOwner:
		txHash, err := l.PurchaseTxHash(ctx, ticket.TicketIndex, owner)
		if err != nil {
			xcontext.Logger(ctx).Debugf("Cannot find purchase of ticket %d: %v", ticket.TicketIndex, err)
			txHash = ""
		}

		xcontext.Logger(ctx).Warnf("Ticket %d is owned by %s on the ledger, not %s",
			ticket.TicketIndex, owner, ticket.PurchaserAddress.String)
		if err := e.confirm(ctx, ticket, owner, txHash); err != nil {
			return actionNone, err
		}

		return actionReassign, nil
	}

	return actionNone, nil
}

func (e *Engine) reconcileUnsold(
	ctx context.Context, ticket *entity.Ticket, grace time.Duration, now time.Time,
) (string, error) {
	switch ticket.Status {
	case entity.TicketReserved:
		if !ticket.ReservedAt.Valid || now.Sub(ticket.ReservedAt.Time) < grace {
			return actionNone, nil
		}

		released, err := e.release(ctx, ticket)
		if err != nil || !released {
			return actionNone, err
		}

		return actionRelease, nil

	case entity.TicketConfirmed:
		xcontext.Logger(ctx).Errorf("Ticket %d is confirmed locally but available on the ledger",
			ticket.TicketIndex)
	}

	return actionNone, nil
}

// release gives an orphaned reservation back, it returns false if the
// reservation changed meanwhile.
func (e *Engine) release(ctx context.Context, ticket *entity.Ticket) (bool, error) {
	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	if err := e.ticketRepo.Release(ctx, ticket.ID, ticket.ReservationID.String); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := e.failPending(ctx, ticket.ID, ""); err != nil {
		return false, err
	}

	if err := xcontext.WithCommitDBTransaction(ctx); err != nil {
		return false, err
	}

	return true, nil
}
