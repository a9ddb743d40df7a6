package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scailotto/backend/internal/entity"
	"github.com/scailotto/backend/pkg/xcontext"
)

const (
	Buyer1 = "0x1111111111111111111111111111111111111111"
	Buyer2 = "0x2222222222222222222222222222222222222222"
	Buyer3 = "0x3333333333333333333333333333333333333333"
)

// CreateRound inserts an active round with n available tickets labelled
// T00001, T00002 and so on.
func CreateRound(ctx context.Context, network string, number int64, n int) *entity.Round {
	now := time.Now()
	round := &entity.Round{
		Base:        entity.Base{ID: uuid.NewString()},
		Network:     network,
		RoundNumber: number,
		StartTime:   now,
		EndTime:     now.Add(24 * time.Hour),
		IsActive:    true,
	}
	if err := xcontext.DB(ctx).Create(round).Error; err != nil {
		panic(err)
	}

	tickets := make([]entity.Ticket, 0, n)
	for i := 1; i <= n; i++ {
		tickets = append(tickets, entity.Ticket{
			Base:         entity.Base{ID: uuid.NewString()},
			RoundID:      round.ID,
			TicketNumber: fmt.Sprintf("T%05d", i),
			TicketIndex:  i,
			IsAvailable:  true,
			Status:       entity.TicketAvailable,
		})
	}
	if err := xcontext.DB(ctx).Omit("Round").Create(&tickets).Error; err != nil {
		panic(err)
	}

	return round
}

// ReserveTicket puts a ticket of round in the reserved state as if a purchase
// had been accepted at the given time.
func ReserveTicket(ctx context.Context, roundID string, index int, buyer, txHash string, at time.Time) *entity.Ticket {
	err := xcontext.DB(ctx).Model(&entity.Ticket{}).
		Where("round_id=? AND ticket_index=?", roundID, index).
		Updates(map[string]any{
			"is_available":      false,
			"status":            entity.TicketReserved,
			"purchaser_address": buyer,
			"purchase_price":    0.01,
			"transaction_hash":  txHash,
			"purchased_at":      at,
			"reservation_id":    uuid.NewString(),
			"reserved_at":       at,
		}).Error
	if err != nil {
		panic(err)
	}

	return GetTicket(ctx, roundID, index)
}

func GetTicket(ctx context.Context, roundID string, index int) *entity.Ticket {
	var ticket entity.Ticket
	err := xcontext.DB(ctx).Take(&ticket, "round_id=? AND ticket_index=?", roundID, index).Error
	if err != nil {
		panic(err)
	}

	return &ticket
}

func CreatePendingTransaction(ctx context.Context, ticket *entity.Ticket, network string) *entity.Transaction {
	tx := &entity.Transaction{
		Base:            entity.Base{ID: uuid.NewString()},
		UserAddress:     ticket.PurchaserAddress.String,
		Type:            entity.TransactionPurchase,
		Amount:          ticket.PurchasePrice,
		TicketID:        sql.NullString{String: ticket.ID, Valid: true},
		TransactionHash: ticket.TransactionHash.String,
		Network:         network,
		Status:          entity.TransactionPending,
	}
	if err := xcontext.DB(ctx).Create(tx).Error; err != nil {
		panic(err)
	}

	return tx
}

func TxHash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}
