package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/scailotto/backend/internal/entity"
	"github.com/scailotto/backend/pkg/xcontext"
	"gorm.io/gorm"
)

// Reservation is what a buyer writes into a ticket when taking it.
type Reservation struct {
	ID     string
	Buyer  string
	TxHash string
	Price  float64
	At     time.Time
}

type TicketRepository interface {
	CreateBatch(ctx context.Context, tickets []entity.Ticket) error
	GetByID(ctx context.Context, id string) (*entity.Ticket, error)
	GetByIndex(ctx context.Context, roundID string, index int) (*entity.Ticket, error)
	GetListByRoundID(ctx context.Context, roundID string) ([]entity.Ticket, error)
	GetPurchasedByRoundID(ctx context.Context, roundID string) ([]entity.Ticket, error)
	GetListByOwner(ctx context.Context, address string) ([]entity.Ticket, error)
	CountReservedByBuyer(ctx context.Context, roundID, buyer string) (int64, error)

	// TryMarkPurchased reserves an available ticket in a single conditional
	// write. gorm.ErrRecordNotFound means somebody else holds it.
	TryMarkPurchased(ctx context.Context, roundID string, index int, r Reservation) (*entity.Ticket, error)
	Confirm(ctx context.Context, ticketID, txHash string) error
	Release(ctx context.Context, ticketID, reservationID string) error
	Backfill(ctx context.Context, ticketID, owner, txHash string, price float64, at time.Time) error
	Reassign(ctx context.Context, ticketID, owner, txHash string) error
}

type ticketRepository struct{}

func NewTicketRepository() *ticketRepository {
	return &ticketRepository{}
}

func (r *ticketRepository) CreateBatch(ctx context.Context, tickets []entity.Ticket) error {
	return xcontext.DB(ctx).Omit("Round").Create(&tickets).Error
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*entity.Ticket, error) {
	var result entity.Ticket
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *ticketRepository) GetByIndex(ctx context.Context, roundID string, index int) (*entity.Ticket, error) {
	var result entity.Ticket
	err := xcontext.DB(ctx).
		Take(&result, "round_id=? AND ticket_index=?", roundID, index).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *ticketRepository) GetListByRoundID(ctx context.Context, roundID string) ([]entity.Ticket, error) {
	var result []entity.Ticket
	err := xcontext.DB(ctx).Where("round_id=?", roundID).
		Order("ticket_index ASC").Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *ticketRepository) GetPurchasedByRoundID(ctx context.Context, roundID string) ([]entity.Ticket, error) {
	var result []entity.Ticket
	err := xcontext.DB(ctx).Where("round_id=? AND is_available=?", roundID, false).
		Order("ticket_index ASC").Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *ticketRepository) GetListByOwner(ctx context.Context, address string) ([]entity.Ticket, error) {
	var result []entity.Ticket
	err := xcontext.DB(ctx).Where("purchaser_address=?", address).
		Order("purchased_at DESC").Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *ticketRepository) CountReservedByBuyer(ctx context.Context, roundID, buyer string) (int64, error) {
	var result int64
	err := xcontext.DB(ctx).Model(&entity.Ticket{}).
		Where("round_id=? AND purchaser_address=? AND status=?", roundID, buyer, entity.TicketReserved).
		Count(&result).Error
	if err != nil {
		return 0, err
	}

	return result, nil
}

func (r *ticketRepository) TryMarkPurchased(
	ctx context.Context, roundID string, index int, res Reservation,
) (*entity.Ticket, error) {
	tx := xcontext.DB(ctx).Model(&entity.Ticket{}).
		Where("round_id=? AND ticket_index=? AND is_available=?", roundID, index, true).
		Updates(map[string]any{
			"is_available":      false,
			"status":            entity.TicketReserved,
			"purchaser_address": res.Buyer,
			"purchase_price":    res.Price,
			"transaction_hash":  nullString(res.TxHash),
			"purchased_at":      res.At,
			"reservation_id":    res.ID,
			"reserved_at":       res.At,
		})
	if tx.Error != nil {
		return nil, tx.Error
	}

	if tx.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return r.GetByIndex(ctx, roundID, index)
}

// Confirm finalizes a reservation whose ledger transaction committed.
func (r *ticketRepository) Confirm(ctx context.Context, ticketID, txHash string) error {
	updates := map[string]any{"status": entity.TicketConfirmed}
	if txHash != "" {
		updates["transaction_hash"] = txHash
	}

	tx := xcontext.DB(ctx).Model(&entity.Ticket{}).
		Where("id=? AND status=?", ticketID, entity.TicketReserved).
		Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// Release rolls a reservation back to available. Only the holder of the
// reservation can release it and confirmed tickets are never released.
func (r *ticketRepository) Release(ctx context.Context, ticketID, reservationID string) error {
	tx := xcontext.DB(ctx).Model(&entity.Ticket{}).
		Where("id=? AND reservation_id=? AND status=?", ticketID, reservationID, entity.TicketReserved).
		Updates(map[string]any{
			"is_available":      true,
			"status":            entity.TicketAvailable,
			"purchaser_address": sql.NullString{},
			"purchase_price":    0,
			"transaction_hash":  sql.NullString{},
			"purchased_at":      sql.NullTime{},
			"reservation_id":    sql.NullString{},
			"reserved_at":       sql.NullTime{},
		})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// Backfill records a sale which only the ledger knows about.
func (r *ticketRepository) Backfill(
	ctx context.Context, ticketID, owner, txHash string, price float64, at time.Time,
) error {
	tx := xcontext.DB(ctx).Model(&entity.Ticket{}).
		Where("id=? AND is_available=?", ticketID, true).
		Updates(map[string]any{
			"is_available":      false,
			"status":            entity.TicketConfirmed,
			"purchaser_address": owner,
			"purchase_price":    price,
			"transaction_hash":  nullString(txHash),
			"purchased_at":      at,
		})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// Reassign overwrites the local owner with the one reported by the ledger.
func (r *ticketRepository) Reassign(ctx context.Context, ticketID, owner, txHash string) error {
	tx := xcontext.DB(ctx).Model(&entity.Ticket{}).
		Where("id=? AND is_available=?", ticketID, false).
		Updates(map[string]any{
			"status":            entity.TicketConfirmed,
			"purchaser_address": owner,
			"transaction_hash":  nullString(txHash),
			"reservation_id":    sql.NullString{},
		})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
