package repository

import (
	"database/sql"
	"testing"

	"github.com/scailotto/backend/pkg/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func Test_roundRepository_Draw(t *testing.T) {
	ctx := testutil.MockContext()
	repo := NewRoundRepository()
	round := testutil.CreateRound(ctx, testutil.Network, 1, 5)

	current, err := repo.GetCurrent(ctx, testutil.Network)
	require.NoError(t, err)
	require.Equal(t, round.ID, current.ID)

	winner := sql.NullString{String: testutil.Buyer1, Valid: true}
	require.NoError(t, repo.Draw(ctx, round.ID, 0.05, sql.NullString{}, winner))
	require.ErrorIs(t, repo.Draw(ctx, round.ID, 0.05, sql.NullString{}, winner), gorm.ErrRecordNotFound)

	_, err = repo.GetCurrent(ctx, testutil.Network)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	past, err := repo.GetPast(ctx, testutil.Network, 20)
	require.NoError(t, err)
	require.Len(t, past, 1)
	require.True(t, past[0].IsDrawn)
	require.False(t, past[0].IsActive)
	require.Equal(t, testutil.Buyer1, past[0].WinnerAddress.String)

	_, err = repo.GetCurrent(ctx, "other")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func Test_transactionRepository_UpdateStatus(t *testing.T) {
	ctx := testutil.MockContext()
	round := testutil.CreateRound(ctx, testutil.Network, 1, 5)
	ticket := testutil.ReserveTicket(ctx, round.ID, 1, testutil.Buyer1, testutil.TxHash(1), round.StartTime)
	tx := testutil.CreatePendingTransaction(ctx, ticket, testutil.Network)

	repo := NewTransactionRepository()
	require.NoError(t, repo.UpdateStatus(ctx, tx.ID, "pending", "confirmed"))
	require.ErrorIs(t, repo.UpdateStatus(ctx, tx.ID, "pending", "failed"), gorm.ErrRecordNotFound)

	stored, err := repo.GetByHash(ctx, testutil.Network, testutil.TxHash(1))
	require.NoError(t, err)
	require.EqualValues(t, "confirmed", stored.Status)

	list, err := repo.GetListByUser(ctx, testutil.Buyer1)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
