package domain

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/scailotto/backend/internal/common"
	"github.com/scailotto/backend/internal/domain/allocation"
	"github.com/scailotto/backend/internal/domain/ledger"
	"github.com/scailotto/backend/internal/entity"
	"github.com/scailotto/backend/internal/model"
	"github.com/scailotto/backend/internal/repository"
	"github.com/scailotto/backend/mocks"
	"github.com/scailotto/backend/pkg/cache"
	"github.com/scailotto/backend/pkg/errorx"
	"github.com/scailotto/backend/pkg/testutil"
	"github.com/scailotto/backend/pkg/xcontext"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx    context.Context
	ledger *mocks.Ledger
	engine *allocation.Engine

	roundRepo       repository.RoundRepository
	ticketRepo      repository.TicketRepository
	transactionRepo repository.TransactionRepository
	userRepo        repository.UserRepository

	lottery *lotteryDomain
	user    *userDomain
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithCache(t, cache.NewMemoryCache(time.Minute, 0))
}

func newFixtureWithCache(t *testing.T, c cache.Cache) *fixture {
	ctx := testutil.MockContext()

	l := &mocks.Ledger{}
	l.On("Network").Return(testutil.Network)
	l.On("TicketPrice", mock.Anything).Return(big.NewInt(10000000000000000))

	f := &fixture{
		ctx:             ctx,
		ledger:          l,
		roundRepo:       repository.NewRoundRepository(),
		ticketRepo:      repository.NewTicketRepository(),
		transactionRepo: repository.NewTransactionRepository(),
		userRepo:        repository.NewUserRepository(),
	}

	f.engine = allocation.NewEngine(ctx, f.roundRepo, f.ticketRepo, f.transactionRepo, f.userRepo,
		ledger.NewRegistry(l), c)
	t.Cleanup(f.engine.Wait)

	f.lottery = NewLotteryDomain(f.engine, f.roundRepo, f.ticketRepo, c)
	f.user = NewUserDomain(f.userRepo, f.ticketRepo, f.transactionRepo)
	return f
}

// soldRound creates round 1 where tickets 1 and 2 belong to Buyer1, 6 to
// Buyer2 and 8 to Buyer3, the ledger agrees with it.
func (f *fixture) soldRound(t *testing.T) *entity.Round {
	round := testutil.CreateRound(f.ctx, testutil.Network, 1, 50)

	owners := map[int]string{1: testutil.Buyer1, 2: testutil.Buyer1, 6: testutil.Buyer2, 8: testutil.Buyer3}
	sold := []int{1, 2, 6, 8}
	available := []int{}
	for i := 1; i <= 50; i++ {
		if _, ok := owners[i]; !ok {
			available = append(available, i)
		}
	}

	for index, owner := range owners {
		testutil.ReserveTicket(f.ctx, round.ID, index, owner, testutil.TxHash(index), time.Now())
		f.ledger.On("TicketOwner", mock.Anything, int64(1), index).Return(owner, nil)
	}
	require.NoError(t, xcontext.DB(f.ctx).Model(&entity.Ticket{}).
		Where("round_id=? AND is_available=?", round.ID, false).
		Update("status", entity.TicketConfirmed).Error)

	f.ledger.On("CurrentRoundID", mock.Anything).Return(int64(1), nil)
	f.ledger.On("PurchasedTicketIDs", mock.Anything, int64(1)).Return(sold, nil)
	f.ledger.On("AvailableTicketIDs", mock.Anything, int64(1)).Return(available, nil)
	return round
}

func ownershipOf(tickets []model.Ticket) map[int]string {
	result := map[int]string{}
	for _, t := range tickets {
		result[t.TicketIndex] = t.Ownership
	}
	return result
}

func Test_lotteryDomain_GetCurrentRound(t *testing.T) {
	f := newFixture(t)
	round := f.soldRound(t)

	resp, err := f.lottery.GetCurrentRound(f.ctx, &model.GetCurrentRoundRequest{
		Network: testutil.Network,
		Address: testutil.Buyer1,
	})
	require.NoError(t, err)
	require.Equal(t, round.ID, resp.Round.ID)
	require.Equal(t, model.RoundStatusActive, resp.Round.Status)
	require.Len(t, resp.Tickets, 50)
	require.Equal(t, model.Stats{
		TotalTickets:     50,
		SoldTickets:      4,
		AvailableTickets: 46,
		PrizePool:        "0.04",
	}, resp.Stats)

	ownership := ownershipOf(resp.Tickets)
	require.Equal(t, model.OwnershipOwnedByCaller, ownership[1])
	require.Equal(t, model.OwnershipOwnedByCaller, ownership[2])
	require.Equal(t, model.OwnershipSoldToOther, ownership[6])
	require.Equal(t, model.OwnershipAvailable, ownership[3])
	require.Equal(t, "0.01", resp.Tickets[2].Price)

	// Labels of one caller never leak into the view of another.
	other, err := f.lottery.GetCurrentRound(f.ctx, &model.GetCurrentRoundRequest{
		Network: testutil.Network,
		Address: testutil.Buyer2,
	})
	require.NoError(t, err)
	ownership = ownershipOf(other.Tickets)
	require.Equal(t, model.OwnershipSoldToOther, ownership[1])
	require.Equal(t, model.OwnershipOwnedByCaller, ownership[6])

	anonymous, err := f.lottery.GetCurrentRound(f.ctx, &model.GetCurrentRoundRequest{
		Network: testutil.Network,
	})
	require.NoError(t, err)
	require.Equal(t, model.OwnershipSoldToOther, ownershipOf(anonymous.Tickets)[1])

	// The ledger is read once, the other views come from the cache.
	f.ledger.AssertNumberOfCalls(t, "PurchasedTicketIDs", 1)
}

func Test_lotteryDomain_GetCurrentRound_Stable(t *testing.T) {
	f := newFixture(t)
	f.soldRound(t)

	req := &model.GetCurrentRoundRequest{Network: testutil.Network, Address: testutil.Buyer3}
	first, err := f.lottery.GetCurrentRound(f.ctx, req)
	require.NoError(t, err)
	second, err := f.lottery.GetCurrentRound(f.ctx, req)
	require.NoError(t, err)

	a, err := json.Marshal(first.Tickets)
	require.NoError(t, err)
	b, err := json.Marshal(second.Tickets)
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
}

func Test_lotteryDomain_GetCurrentRound_Errors(t *testing.T) {
	f := newFixture(t)
	f.soldRound(t)

	_, err := f.lottery.GetCurrentRound(f.ctx, &model.GetCurrentRoundRequest{Network: "ethereum"})
	require.True(t, errorx.Is(err, errorx.UnsupportedNetwork))

	_, err = f.lottery.GetCurrentRound(f.ctx, &model.GetCurrentRoundRequest{
		Network: testutil.Network,
		Address: "not-an-address",
	})
	require.True(t, errorx.Is(err, errorx.BadRequest))
}

func Test_lotteryDomain_GetCurrentRound_LedgerUnavailable(t *testing.T) {
	f := newFixture(t)
	testutil.CreateRound(f.ctx, testutil.Network, 1, 50)
	f.ledger.On("CurrentRoundID", mock.Anything).Return(int64(0), ledger.ErrLedgerUnavailable)
	f.ledger.On("PurchasedTicketIDs", mock.Anything, int64(1)).Return(nil, ledger.ErrLedgerUnavailable)

	// The local round is served while the ledger is down.
	resp, err := f.lottery.GetCurrentRound(f.ctx, &model.GetCurrentRoundRequest{Network: testutil.Network})
	require.NoError(t, err)
	require.Equal(t, int64(1), resp.Round.RoundNumber)
	require.Equal(t, 50, resp.Stats.AvailableTickets)
	require.Equal(t, "0", resp.Stats.PrizePool)
}

// beforePutCache runs hook once, right before the first view is stored
// under key.
type beforePutCache struct {
	cache.Cache
	key  string
	hook func()
}

func (c *beforePutCache) Put(ctx context.Context, key string, value []byte) {
	if key == c.key && c.hook != nil {
		hook := c.hook
		c.hook = nil
		hook()
	}

	c.Cache.Put(ctx, key, value)
}

func Test_lotteryDomain_GetCurrentRound_PurchaseWhileLoading(t *testing.T) {
	c := &beforePutCache{
		Cache: cache.NewMemoryCache(time.Minute, 0),
		key:   common.CacheKeyCurrentRound(testutil.Network),
	}
	f := newFixtureWithCache(t, c)
	testutil.CreateRound(f.ctx, testutil.Network, 1, 50)
	f.ledger.On("CurrentRoundID", mock.Anything).Return(int64(1), nil)
	f.ledger.On("PurchasedTicketIDs", mock.Anything, int64(1)).Return(nil, ledger.ErrLedgerUnavailable)
	f.ledger.On("SubmitPurchase", mock.Anything, mock.Anything).Return(testutil.TxHash(3), nil)
	f.ledger.On("AwaitFinality", mock.Anything, testutil.TxHash(3)).Return(ledger.OutcomePending)

	c.hook = func() {
		_, err := f.lottery.PurchaseTicket(f.ctx, &model.PurchaseTicketRequest{
			TicketID:        3,
			UserAddress:     testutil.Buyer1,
			TransactionHash: testutil.TxHash(3),
			Network:         testutil.Network,
		})
		require.NoError(t, err)
	}

	first, err := f.lottery.GetCurrentRound(f.ctx, &model.GetCurrentRoundRequest{Network: testutil.Network})
	require.NoError(t, err)
	require.Equal(t, model.OwnershipAvailable, ownershipOf(first.Tickets)[3])
	require.Nil(t, c.hook)

	// The view loaded before the purchase must not be served afterwards.
	second, err := f.lottery.GetCurrentRound(f.ctx, &model.GetCurrentRoundRequest{Network: testutil.Network})
	require.NoError(t, err)
	require.Equal(t, model.OwnershipSoldToOther, ownershipOf(second.Tickets)[3])
	require.Equal(t, 1, second.Stats.SoldTickets)

	// Once nothing moves, the view is cached again.
	third, err := f.lottery.GetCurrentRound(f.ctx, &model.GetCurrentRoundRequest{Network: testutil.Network})
	require.NoError(t, err)
	require.Equal(t, 1, third.Stats.SoldTickets)
	f.ledger.AssertNumberOfCalls(t, "PurchasedTicketIDs", 2)
}

func Test_lotteryDomain_GetPurchasedTickets(t *testing.T) {
	f := newFixture(t)
	f.soldRound(t)

	resp, err := f.lottery.GetPurchasedTickets(f.ctx, &model.GetPurchasedTicketsRequest{
		Network: testutil.Network,
		Address: testutil.Buyer3,
	})
	require.NoError(t, err)
	require.Equal(t, 4, resp.Count)
	require.Len(t, resp.Tickets, 4)
	require.Equal(t, model.OwnershipOwnedByCaller, ownershipOf(resp.Tickets)[8])
	require.Equal(t, model.OwnershipSoldToOther, ownershipOf(resp.Tickets)[6])

	tickets, err := f.lottery.GetRoundTickets(f.ctx, &model.GetRoundTicketsRequest{
		Network: testutil.Network,
	})
	require.NoError(t, err)
	require.Len(t, *tickets, 50)
}

func Test_lotteryDomain_GetHistory(t *testing.T) {
	f := newFixture(t)
	for number := int64(1); number <= 3; number++ {
		round := testutil.CreateRound(f.ctx, testutil.Network, number, 1)
		require.NoError(t, xcontext.DB(f.ctx).Model(&entity.Round{}).Where("id=?", round.ID).
			Updates(map[string]any{
				"is_active": false,
				"is_drawn":  true,
				"end_time":  time.Now().Add(time.Duration(number) * time.Hour),
			}).Error)
	}
	testutil.CreateRound(f.ctx, testutil.Network, 4, 1)

	resp, err := f.lottery.GetHistory(f.ctx, &model.GetHistoryRequest{Network: testutil.Network, Limit: 2})
	require.NoError(t, err)
	require.Len(t, *resp, 2)
	require.Equal(t, int64(3), (*resp)[0].RoundNumber)
	require.Equal(t, model.RoundStatusDrawn, (*resp)[0].Status)

	resp, err = f.lottery.GetHistory(f.ctx, &model.GetHistoryRequest{Network: testutil.Network})
	require.NoError(t, err)
	require.Len(t, *resp, 3)

	_, err = f.lottery.GetHistory(f.ctx, &model.GetHistoryRequest{Network: "ethereum"})
	require.True(t, errorx.Is(err, errorx.UnsupportedNetwork))
}

func Test_lotteryDomain_EstimateFee(t *testing.T) {
	f := newFixture(t)
	f.ledger.On("EstimateFee", mock.Anything, 7, testutil.Buyer1).Return(big.NewInt(120000000000000))

	resp, err := f.lottery.EstimateFee(f.ctx, &model.EstimateFeeRequest{
		Network:  testutil.Network,
		TicketID: 7,
		Address:  testutil.Buyer1,
	})
	require.NoError(t, err)
	require.Equal(t, "0.00012", resp.Fee)
	require.Equal(t, 7, resp.TicketID)

	_, err = f.lottery.EstimateFee(f.ctx, &model.EstimateFeeRequest{Network: testutil.Network, TicketID: 51})
	require.True(t, errorx.Is(err, errorx.BadRequest))
}

func Test_lotteryDomain_PurchaseTicket(t *testing.T) {
	f := newFixture(t)
	testutil.CreateRound(f.ctx, testutil.Network, 1, 50)
	f.ledger.On("CurrentRoundID", mock.Anything).Return(int64(1), nil)
	f.ledger.On("SubmitPurchase", mock.Anything, mock.Anything).Return(testutil.TxHash(9), nil)
	f.ledger.On("AwaitFinality", mock.Anything, testutil.TxHash(9)).Return(ledger.OutcomeCommitted)

	resp, err := f.lottery.PurchaseTicket(f.ctx, &model.PurchaseTicketRequest{
		TicketID:        9,
		UserAddress:     testutil.Buyer1,
		TransactionHash: testutil.TxHash(9),
		Network:         testutil.Network,
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, string(allocation.StatusPending), resp.Status)
	require.Equal(t, 9, resp.Ticket.TicketIndex)
	require.Equal(t, model.OwnershipOwnedByCaller, resp.Ticket.Ownership)

	f.engine.Wait()

	user, err := f.user.GetUser(f.ctx, &model.GetUserRequest{Address: testutil.Buyer1})
	require.NoError(t, err)
	require.Equal(t, 1, user.TicketsPurchased)

	_, err = f.lottery.PurchaseTicket(f.ctx, &model.PurchaseTicketRequest{
		TicketID:        9,
		UserAddress:     testutil.Buyer2,
		TransactionHash: testutil.TxHash(10),
		Network:         testutil.Network,
	})
	require.True(t, errorx.Is(err, errorx.TicketAlreadyTaken))
}

func Test_lotteryDomain_PurchaseTicket_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  model.PurchaseTicketRequest
		msg  string
	}{
		{
			name: "missing ticket",
			req:  model.PurchaseTicketRequest{UserAddress: testutil.Buyer1, TransactionHash: testutil.TxHash(1), Network: testutil.Network},
			msg:  "Missing required fields",
		},
		{
			name: "missing transaction hash",
			req:  model.PurchaseTicketRequest{TicketID: 1, UserAddress: testutil.Buyer1, Network: testutil.Network},
			msg:  "Missing required fields",
		},
		{
			name: "invalid address",
			req:  model.PurchaseTicketRequest{TicketID: 1, UserAddress: "0x12", TransactionHash: testutil.TxHash(1), Network: testutil.Network},
			msg:  "Invalid user address",
		},
		{
			name: "invalid transaction hash",
			req:  model.PurchaseTicketRequest{TicketID: 1, UserAddress: testutil.Buyer1, TransactionHash: "0xabc", Network: testutil.Network},
			msg:  "Invalid transaction hash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.lottery.PurchaseTicket(f.ctx, &tt.req)
			require.True(t, errorx.Is(err, errorx.BadRequest))
			require.Equal(t, tt.msg, err.Error())
		})
	}

	f.ledger.AssertNotCalled(t, "SubmitPurchase", mock.Anything, mock.Anything)
}
