package entity

import (
	"context"
	"time"

	"github.com/scailotto/backend/pkg/xcontext"
)

type Base struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func MigrateTable(ctx context.Context) error {
	return xcontext.DB(ctx).AutoMigrate(
		&Round{},
		&Ticket{},
		&Transaction{},
		&User{},
	)
}
