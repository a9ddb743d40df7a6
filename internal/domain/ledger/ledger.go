package ledger

import (
	"context"
	"fmt"
	"math/big"

	"golang.org/x/exp/slices"
)

type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeRejected  Outcome = "rejected"
	OutcomePending   Outcome = "pending"
)

// SubmitRequest describes a purchase which the buyer's wallet has already
// broadcast.
type SubmitRequest struct {
	TicketIndex int
	Buyer       string
	Amount      *big.Int
	TxHash      string
}

type Winner struct {
	RoundID     int64
	TicketIndex int
	Address     string
	Prize       *big.Int
	TxHash      string
}

// Ledger is the authoritative record of ticket ownership of a network.
type Ledger interface {
	Network() string

	CurrentRoundID(ctx context.Context) (int64, error)

	// TicketPrice never fails, the configured price is returned when the
	// ledger cannot be read.
	TicketPrice(ctx context.Context) *big.Int

	PurchasedTicketIDs(ctx context.Context, roundID int64) ([]int, error)
	AvailableTicketIDs(ctx context.Context, roundID int64) ([]int, error)
	UserTicketIDs(ctx context.Context, roundID int64, address string) ([]int, error)
	TicketOwner(ctx context.Context, roundID int64, index int) (string, error)

	// PurchaseTxHash looks for the transaction which sold the ticket to owner.
	// An empty hash without error means it could not be found.
	PurchaseTxHash(ctx context.Context, index int, owner string) (string, error)

	// SubmitPurchase returns the ledger transaction id once the ledger accepted
	// the purchase. It does not wait for finality.
	SubmitPurchase(ctx context.Context, req SubmitRequest) (string, error)

	// EstimateFee falls back to the configured default fee on any failure.
	EstimateFee(ctx context.Context, index int, from string) *big.Int

	// AwaitFinality blocks until the transaction is final or a timeout
	// elapses, in which case OutcomePending is returned.
	AwaitFinality(ctx context.Context, txHash string) Outcome

	// RoundWinner returns nil without error if the round has no winner yet.
	RoundWinner(ctx context.Context, roundID int64) (*Winner, error)
}

type Snapshot struct {
	RoundID   int64
	Purchased []int
	Available []int
}

func (s *Snapshot) PurchasedSet() map[int]bool {
	set := make(map[int]bool, len(s.Purchased))
	for _, i := range s.Purchased {
		set[i] = true
	}
	return set
}

// TakeSnapshot reads both ticket sets of a round and checks that they
// partition 1..n.
func TakeSnapshot(ctx context.Context, l Ledger, roundID int64, n int) (*Snapshot, error) {
	purchased, err := l.PurchasedTicketIDs(ctx, roundID)
	if err != nil {
		return nil, err
	}

	available, err := l.AvailableTicketIDs(ctx, roundID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool, n)
	for _, ids := range [][]int{purchased, available} {
		for _, id := range ids {
			if id < 1 || id > n {
				return nil, fmt.Errorf("%w: ticket %d out of range 1..%d", ErrLedgerInconsistent, id, n)
			}
			if seen[id] {
				return nil, fmt.Errorf("%w: ticket %d reported twice", ErrLedgerInconsistent, id)
			}
			seen[id] = true
		}
	}

	if len(seen) != n {
		return nil, fmt.Errorf("%w: %d of %d tickets reported", ErrLedgerInconsistent, len(seen), n)
	}

	slices.Sort(purchased)
	slices.Sort(available)
	return &Snapshot{RoundID: roundID, Purchased: purchased, Available: available}, nil
}
