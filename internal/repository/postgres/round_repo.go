package postgres

import (
	"context"
	"time"

	"github.com/dom/stream-games/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type roundRepository struct {
	db *gorm.DB
}

func NewRoundRepository(db *gorm.DB) *roundRepository {
	return &roundRepository{db: db}
}

func (r *roundRepository) Open(ctx context.Context, round *domain.Round) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := advisoryLock(tx, roundLockKey); err != nil {
			return err
		}

		now := time.Now()
		err := tx.Model(&domain.Round{}).
			Where("is_open = ?", true).
			Updates(map[string]interface{}{
				"is_open":    false,
				"closed_at":  now,
				"updated_at": now,
			}).Error
		if err != nil {
			return err
		}

		round.IsOpen = true
		round.ClosedAt = nil
		return tx.Create(round).Error
	})
}

func (r *roundRepository) CloseOpen(ctx context.Context) (*domain.Round, error) {
	var round domain.Round
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("is_open = ?", true).
			First(&round).Error
		if err != nil {
			return err
		}

		now := time.Now()
		round.IsOpen = false
		round.ClosedAt = &now
		round.UpdatedAt = now
		return tx.Model(&round).Updates(map[string]interface{}{
			"is_open":    false,
			"closed_at":  now,
			"updated_at": now,
		}).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &round, nil
}

func (r *roundRepository) Latest(ctx context.Context) (*domain.Round, error) {
	var round domain.Round
	err := r.db.WithContext(ctx).Order("created_at DESC").First(&round).Error
	if err != nil {
		return nil, translate(err)
	}
	return &round, nil
}

func (r *roundRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Round, error) {
	var round domain.Round
	err := r.db.WithContext(ctx).First(&round, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &round, nil
}
