package entity

import (
	"database/sql"
)

type TicketStatus string

const (
	TicketAvailable TicketStatus = "available"
	TicketReserved  TicketStatus = "reserved"
	TicketConfirmed TicketStatus = "confirmed"
)

type Ticket struct {
	Base

	RoundID string `gorm:"uniqueIndex:idx_tickets_round_index"`
	Round   Round  `gorm:"foreignKey:RoundID"`

	// TicketNumber is the label shown to users, TicketIndex is the slot on the
	// ledger (1..N).
	TicketNumber string
	TicketIndex  int `gorm:"uniqueIndex:idx_tickets_round_index"`

	PurchaserAddress sql.NullString `gorm:"index"`
	PurchasePrice    float64
	TransactionHash  sql.NullString
	PurchasedAt      sql.NullTime

	IsAvailable   bool
	Status        TicketStatus
	ReservationID sql.NullString
	ReservedAt    sql.NullTime
}
