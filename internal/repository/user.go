package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/scailotto/backend/internal/entity"
	"github.com/scailotto/backend/pkg/xcontext"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	GetByAddress(ctx context.Context, address string) (*entity.User, error)
	Touch(ctx context.Context, address string, at time.Time) error
	AddPurchase(ctx context.Context, address string, amount float64, at time.Time) error
	AddWinning(ctx context.Context, address string, amount float64, at time.Time) error
}

type userRepository struct{}

func NewUserRepository() *userRepository {
	return &userRepository{}
}

func (r *userRepository) GetByAddress(ctx context.Context, address string) (*entity.User, error) {
	var result entity.User
	if err := xcontext.DB(ctx).Take(&result, "address=?", address).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

// Touch creates the user on first sight, otherwise only refreshes its last
// active time.
func (r *userRepository) Touch(ctx context.Context, address string, at time.Time) error {
	user := entity.User{
		Address:    address,
		LastActive: sql.NullTime{Time: at, Valid: true},
	}

	return xcontext.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_active", "updated_at"}),
	}).Create(&user).Error
}

func (r *userRepository) AddPurchase(ctx context.Context, address string, amount float64, at time.Time) error {
	user := entity.User{
		Address:          address,
		TotalSpent:       amount,
		TicketsPurchased: 1,
		LastActive:       sql.NullTime{Time: at, Valid: true},
	}

	return xcontext.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total_spent":       gorm.Expr("users.total_spent + ?", amount),
			"tickets_purchased": gorm.Expr("users.tickets_purchased + ?", 1),
			"last_active":       at,
			"updated_at":        at,
		}),
	}).Create(&user).Error
}

func (r *userRepository) AddWinning(ctx context.Context, address string, amount float64, at time.Time) error {
	user := entity.User{
		Address:    address,
		TotalWon:   amount,
		LastActive: sql.NullTime{Time: at, Valid: true},
	}

	return xcontext.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total_won":  gorm.Expr("users.total_won + ?", amount),
			"updated_at": at,
		}),
	}).Create(&user).Error
}
