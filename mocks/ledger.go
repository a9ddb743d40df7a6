package mocks

import (
	"context"
	"math/big"

	"github.com/scailotto/backend/internal/domain/ledger"
	"github.com/stretchr/testify/mock"
)

type Ledger struct {
	mock.Mock
}

func (l *Ledger) Network() string {
	args := l.Called()
	return args.String(0)
}

func (l *Ledger) CurrentRoundID(arg1 context.Context) (int64, error) {
	args := l.Called(arg1)

	if args.Get(0) == nil {
		return 0, args.Error(1)
	}
	return args.Get(0).(int64), args.Error(1)
}

func (l *Ledger) TicketPrice(arg1 context.Context) *big.Int {
	args := l.Called(arg1)
	return args.Get(0).(*big.Int)
}

func (l *Ledger) PurchasedTicketIDs(arg1 context.Context, arg2 int64) ([]int, error) {
	args := l.Called(arg1, arg2)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (l *Ledger) AvailableTicketIDs(arg1 context.Context, arg2 int64) ([]int, error) {
	args := l.Called(arg1, arg2)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (l *Ledger) UserTicketIDs(arg1 context.Context, arg2 int64, arg3 string) ([]int, error) {
	args := l.Called(arg1, arg2, arg3)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (l *Ledger) TicketOwner(arg1 context.Context, arg2 int64, arg3 int) (string, error) {
	args := l.Called(arg1, arg2, arg3)
	return args.String(0), args.Error(1)
}

func (l *Ledger) PurchaseTxHash(arg1 context.Context, arg2 int, arg3 string) (string, error) {
	args := l.Called(arg1, arg2, arg3)
	return args.String(0), args.Error(1)
}

func (l *Ledger) SubmitPurchase(arg1 context.Context, arg2 ledger.SubmitRequest) (string, error) {
	args := l.Called(arg1, arg2)
	return args.String(0), args.Error(1)
}

func (l *Ledger) EstimateFee(arg1 context.Context, arg2 int, arg3 string) *big.Int {
	args := l.Called(arg1, arg2, arg3)
	return args.Get(0).(*big.Int)
}

func (l *Ledger) AwaitFinality(arg1 context.Context, arg2 string) ledger.Outcome {
	args := l.Called(arg1, arg2)
	return args.Get(0).(ledger.Outcome)
}

func (l *Ledger) RoundWinner(arg1 context.Context, arg2 int64) (*ledger.Winner, error) {
	args := l.Called(arg1, arg2)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Winner), args.Error(1)
}
