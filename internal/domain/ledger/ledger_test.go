package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/scailotto/backend/internal/domain/ledger"
	"github.com/scailotto/backend/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seqExcept(n int, except ...int) []int {
	skip := map[int]bool{}
	for _, e := range except {
		skip[e] = true
	}

	result := []int{}
	for i := 1; i <= n; i++ {
		if !skip[i] {
			result = append(result, i)
		}
	}
	return result
}

func Test_TakeSnapshot(t *testing.T) {
	tests := []struct {
		name      string
		purchased []int
		available []int
		wantErr   error
	}{
		{
			name:      "partition",
			purchased: []int{8, 1, 6, 2},
			available: seqExcept(50, 1, 2, 6, 8),
		},
		{
			name:      "overlap",
			purchased: []int{1, 2},
			available: seqExcept(50, 1),
			wantErr:   ledger.ErrLedgerInconsistent,
		},
		{
			name:      "missing ticket",
			purchased: []int{1},
			available: seqExcept(50, 1, 50),
			wantErr:   ledger.ErrLedgerInconsistent,
		},
		{
			name:      "out of range",
			purchased: []int{51},
			available: seqExcept(50),
			wantErr:   ledger.ErrLedgerInconsistent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &mocks.Ledger{}
			l.On("PurchasedTicketIDs", mock.Anything, int64(1)).Return(tt.purchased, nil)
			l.On("AvailableTicketIDs", mock.Anything, int64(1)).Return(tt.available, nil)

			snapshot, err := ledger.TakeSnapshot(context.Background(), l, 1, 50)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, []int{1, 2, 6, 8}, snapshot.Purchased)
			require.Len(t, snapshot.Available, 46)
			require.True(t, snapshot.PurchasedSet()[6])
			require.False(t, snapshot.PurchasedSet()[7])
		})
	}
}

func Test_TakeSnapshot_Unavailable(t *testing.T) {
	l := &mocks.Ledger{}
	l.On("PurchasedTicketIDs", mock.Anything, int64(3)).Return(nil, ledger.ErrLedgerUnavailable)

	_, err := ledger.TakeSnapshot(context.Background(), l, 3, 50)
	require.ErrorIs(t, err, ledger.ErrLedgerUnavailable)
	l.AssertNotCalled(t, "AvailableTicketIDs", mock.Anything, mock.Anything)
}

func Test_Classify(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{errors.New("insufficient funds for gas * price + value"), ledger.ErrInsufficientFunds},
		{errors.New("MetaMask Tx Signature: User denied transaction signature."), ledger.ErrUserRejected},
		{errors.New("code 4001: request rejected"), ledger.ErrUserRejected},
		{errors.New("execution reverted: Ticket already sold"), ledger.ErrTicketUnavailable},
		{errors.New("dial tcp: connection refused"), ledger.ErrLedgerUnavailable},
		{context.DeadlineExceeded, ledger.ErrLedgerUnavailable},
		{ledger.ErrInvalidTransaction, ledger.ErrInvalidTransaction},
	}

	for _, tt := range tests {
		t.Run(tt.in.Error(), func(t *testing.T) {
			require.ErrorIs(t, ledger.Classify(tt.in), tt.want)
		})
	}

	require.NoError(t, ledger.Classify(nil))
	require.Equal(t, "ticket_unavailable", ledger.Kind(ledger.Classify(errors.New("execution reverted"))))
}

func Test_Registry(t *testing.T) {
	scai := &mocks.Ledger{}
	scai.On("Network").Return("scai")
	other := &mocks.Ledger{}
	other.On("Network").Return("other")

	r := ledger.NewRegistry(scai, other)
	l, ok := r.Get("scai")
	require.True(t, ok)
	require.Equal(t, scai, l)

	_, ok = r.Get("ethereum")
	require.False(t, ok)
	require.Equal(t, []string{"other", "scai"}, r.Networks())
}
