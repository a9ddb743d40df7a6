package entity

import (
	"database/sql"
	"time"
)

type Round struct {
	Base

	Network     string `gorm:"uniqueIndex:idx_rounds_network_number"`
	RoundNumber int64  `gorm:"uniqueIndex:idx_rounds_network_number"`

	StartTime   time.Time
	EndTime     time.Time
	PrizeAmount float64

	IsActive bool
	IsDrawn  bool

	WinningTicketID sql.NullString
	WinnerAddress   sql.NullString
}
