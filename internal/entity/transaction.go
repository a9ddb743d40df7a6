package entity

import (
	"database/sql"
)

type TransactionType string

const (
	TransactionPurchase TransactionType = "purchase"
	TransactionWin      TransactionType = "win"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionConfirmed TransactionStatus = "confirmed"
	TransactionFailed    TransactionStatus = "failed"
)

type Transaction struct {
	Base

	UserAddress string `gorm:"index"`
	Type        TransactionType
	Amount      float64

	// TicketID is empty for winnings.
	TicketID sql.NullString `gorm:"index"`

	TransactionHash string `gorm:"index"`
	Network         string
	Status          TransactionStatus
}
