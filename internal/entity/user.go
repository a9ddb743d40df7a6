package entity

import (
	"database/sql"
	"time"
)

type User struct {
	Address   string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	TotalSpent       float64
	TotalWon         float64
	TicketsPurchased int
	LastActive       sql.NullTime
}
