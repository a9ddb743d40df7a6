package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scailotto/backend/internal/entity"
	"github.com/scailotto/backend/pkg/testutil"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type TicketTestSuite struct {
	suite.Suite
	repo *ticketRepository
}

func TestTicketSuite(t *testing.T) {
	suite.Run(t, new(TicketTestSuite))
}

func (s *TicketTestSuite) SetupTest() {
	s.repo = NewTicketRepository()
}

func (s *TicketTestSuite) TestTryMarkPurchased() {
	ctx := testutil.MockContext()
	round := testutil.CreateRound(ctx, testutil.Network, 1, 50)

	ticket, err := s.repo.TryMarkPurchased(ctx, round.ID, 6, Reservation{
		ID:     uuid.NewString(),
		Buyer:  testutil.Buyer1,
		TxHash: testutil.TxHash(6),
		Price:  0.01,
		At:     time.Now(),
	})
	s.Require().NoError(err)
	s.Require().False(ticket.IsAvailable)
	s.Require().Equal(entity.TicketReserved, ticket.Status)
	s.Require().Equal(testutil.Buyer1, ticket.PurchaserAddress.String)
	s.Require().Equal(testutil.TxHash(6), ticket.TransactionHash.String)

	_, err = s.repo.TryMarkPurchased(ctx, round.ID, 6, Reservation{
		ID:    uuid.NewString(),
		Buyer: testutil.Buyer2,
		At:    time.Now(),
	})
	s.Require().ErrorIs(err, gorm.ErrRecordNotFound)

	// The loser must not have touched the row.
	stored := testutil.GetTicket(ctx, round.ID, 6)
	s.Require().Equal(testutil.Buyer1, stored.PurchaserAddress.String)
}

func (s *TicketTestSuite) TestTryMarkPurchasedConcurrently() {
	ctx := testutil.MockContext()
	round := testutil.CreateRound(ctx, testutil.Network, 1, 50)

	const buyers = 8
	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.repo.TryMarkPurchased(ctx, round.ID, 3, Reservation{
				ID:    uuid.NewString(),
				Buyer: testutil.Buyer1,
				At:    time.Now(),
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			s.Require().ErrorIs(err, gorm.ErrRecordNotFound)
		}
	}
	s.Require().Equal(1, succeeded)
}

func (s *TicketTestSuite) TestReleaseNeedsReservation() {
	ctx := testutil.MockContext()
	round := testutil.CreateRound(ctx, testutil.Network, 1, 50)
	ticket := testutil.ReserveTicket(ctx, round.ID, 2, testutil.Buyer1, testutil.TxHash(2), time.Now())

	err := s.repo.Release(ctx, ticket.ID, uuid.NewString())
	s.Require().ErrorIs(err, gorm.ErrRecordNotFound)

	err = s.repo.Release(ctx, ticket.ID, ticket.ReservationID.String)
	s.Require().NoError(err)

	released := testutil.GetTicket(ctx, round.ID, 2)
	s.Require().True(released.IsAvailable)
	s.Require().Equal(entity.TicketAvailable, released.Status)
	s.Require().False(released.PurchaserAddress.Valid)
	s.Require().False(released.TransactionHash.Valid)
	s.Require().False(released.ReservationID.Valid)
}

func (s *TicketTestSuite) TestConfirmedTicketIsNeverReleased() {
	ctx := testutil.MockContext()
	round := testutil.CreateRound(ctx, testutil.Network, 1, 50)
	ticket := testutil.ReserveTicket(ctx, round.ID, 4, testutil.Buyer1, testutil.TxHash(4), time.Now())

	s.Require().NoError(s.repo.Confirm(ctx, ticket.ID, ""))
	s.Require().ErrorIs(s.repo.Confirm(ctx, ticket.ID, ""), gorm.ErrRecordNotFound)
	s.Require().ErrorIs(s.repo.Release(ctx, ticket.ID, ticket.ReservationID.String), gorm.ErrRecordNotFound)

	confirmed := testutil.GetTicket(ctx, round.ID, 4)
	s.Require().Equal(entity.TicketConfirmed, confirmed.Status)
	s.Require().Equal(testutil.TxHash(4), confirmed.TransactionHash.String)
}

func (s *TicketTestSuite) TestBackfillOnlyAvailable() {
	ctx := testutil.MockContext()
	round := testutil.CreateRound(ctx, testutil.Network, 1, 50)
	ticket := testutil.GetTicket(ctx, round.ID, 7)

	err := s.repo.Backfill(ctx, ticket.ID, testutil.Buyer3, testutil.TxHash(7), 0.01, time.Now())
	s.Require().NoError(err)

	err = s.repo.Backfill(ctx, ticket.ID, testutil.Buyer2, testutil.TxHash(8), 0.01, time.Now())
	s.Require().ErrorIs(err, gorm.ErrRecordNotFound)

	stored := testutil.GetTicket(ctx, round.ID, 7)
	s.Require().False(stored.IsAvailable)
	s.Require().Equal(entity.TicketConfirmed, stored.Status)
	s.Require().Equal(testutil.Buyer3, stored.PurchaserAddress.String)
}

func (s *TicketTestSuite) TestCountReservedByBuyer() {
	ctx := testutil.MockContext()
	round := testutil.CreateRound(ctx, testutil.Network, 1, 50)
	other := testutil.CreateRound(ctx, testutil.Network, 2, 50)

	testutil.ReserveTicket(ctx, round.ID, 1, testutil.Buyer1, testutil.TxHash(1), time.Now())
	testutil.ReserveTicket(ctx, round.ID, 2, testutil.Buyer1, testutil.TxHash(2), time.Now())
	confirmed := testutil.ReserveTicket(ctx, round.ID, 3, testutil.Buyer1, testutil.TxHash(3), time.Now())
	s.Require().NoError(s.repo.Confirm(ctx, confirmed.ID, ""))
	testutil.ReserveTicket(ctx, round.ID, 4, testutil.Buyer2, testutil.TxHash(4), time.Now())
	testutil.ReserveTicket(ctx, other.ID, 1, testutil.Buyer1, testutil.TxHash(5), time.Now())

	n, err := s.repo.CountReservedByBuyer(ctx, round.ID, testutil.Buyer1)
	s.Require().NoError(err)
	s.Require().Equal(int64(2), n)

	n, err = s.repo.CountReservedByBuyer(ctx, round.ID, testutil.Buyer3)
	s.Require().NoError(err)
	s.Require().Zero(n)
}

func Test_ticketRepository_GetPurchasedByRoundID(t *testing.T) {
	ctx := testutil.MockContext()
	round := testutil.CreateRound(ctx, testutil.Network, 1, 50)
	for _, index := range []int{8, 1, 6, 2} {
		testutil.ReserveTicket(ctx, round.ID, index, testutil.Buyer1, testutil.TxHash(index), time.Now())
	}

	repo := NewTicketRepository()
	tickets, err := repo.GetPurchasedByRoundID(ctx, round.ID)
	require.NoError(t, err)

	indexes := []int{}
	for _, ticket := range tickets {
		indexes = append(indexes, ticket.TicketIndex)
	}
	require.Equal(t, []int{1, 2, 6, 8}, indexes)

	all, err := repo.GetListByRoundID(ctx, round.ID)
	require.NoError(t, err)
	require.Len(t, all, 50)
	require.Equal(t, 1, all[0].TicketIndex)
	require.Equal(t, 50, all[49].TicketIndex)

	owned, err := repo.GetListByOwner(ctx, testutil.Buyer1)
	require.NoError(t, err)
	require.Len(t, owned, 4)
}
