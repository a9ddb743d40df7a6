package repository

import (
	"context"
	"database/sql"

	"github.com/scailotto/backend/internal/entity"
	"github.com/scailotto/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type RoundRepository interface {
	Create(ctx context.Context, round *entity.Round) error
	GetByID(ctx context.Context, id string) (*entity.Round, error)
	GetByNumber(ctx context.Context, network string, number int64) (*entity.Round, error)
	GetCurrent(ctx context.Context, network string) (*entity.Round, error)
	GetLast(ctx context.Context, network string) (*entity.Round, error)
	GetPast(ctx context.Context, network string, limit int) ([]entity.Round, error)
	UpdatePrize(ctx context.Context, id string, prize float64) error
	Draw(ctx context.Context, id string, prize float64, winningTicketID, winner sql.NullString) error
}

type roundRepository struct{}

func NewRoundRepository() *roundRepository {
	return &roundRepository{}
}

func (r *roundRepository) Create(ctx context.Context, round *entity.Round) error {
	return xcontext.DB(ctx).Create(round).Error
}

func (r *roundRepository) GetByID(ctx context.Context, id string) (*entity.Round, error) {
	var result entity.Round
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *roundRepository) GetByNumber(ctx context.Context, network string, number int64) (*entity.Round, error) {
	var result entity.Round
	err := xcontext.DB(ctx).
		Take(&result, "network=? AND round_number=?", network, number).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *roundRepository) GetCurrent(ctx context.Context, network string) (*entity.Round, error) {
	var result entity.Round
	err := xcontext.DB(ctx).
		Where("network=? AND is_active=? AND is_drawn=?", network, true, false).
		Order("round_number DESC").
		Take(&result).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *roundRepository) GetLast(ctx context.Context, network string) (*entity.Round, error) {
	var result entity.Round
	err := xcontext.DB(ctx).Where("network=?", network).
		Order("round_number DESC").Take(&result).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *roundRepository) GetPast(ctx context.Context, network string, limit int) ([]entity.Round, error) {
	var result []entity.Round
	err := xcontext.DB(ctx).
		Where("network=? AND is_drawn=?", network, true).
		Order("end_time DESC").
		Limit(limit).
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *roundRepository) UpdatePrize(ctx context.Context, id string, prize float64) error {
	return xcontext.DB(ctx).Model(&entity.Round{}).
		Where("id=? AND is_drawn=?", id, false).
		Update("prize_amount", prize).Error
}

// Draw closes a round exactly once. A round which has already been drawn
// results in gorm.ErrRecordNotFound.
func (r *roundRepository) Draw(
	ctx context.Context, id string, prize float64, winningTicketID, winner sql.NullString,
) error {
	tx := xcontext.DB(ctx).Model(&entity.Round{}).
		Where("id=? AND is_drawn=?", id, false).
		Updates(map[string]any{
			"is_active":         false,
			"is_drawn":          true,
			"prize_amount":      prize,
			"winning_ticket_id": winningTicketID,
			"winner_address":    winner,
		})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
