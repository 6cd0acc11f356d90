package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/dom/stream-games/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type guessRepository struct {
	db *gorm.DB
}

func NewGuessRepository(db *gorm.DB) *guessRepository {
	return &guessRepository{db: db}
}

func (r *guessRepository) Upsert(ctx context.Context, guess *domain.Guess) (*domain.Guess, error) {
	now := time.Now()
	if guess.ID == uuid.Nil {
		guess.ID = uuid.New()
	}
	guess.CreatedAt = now
	guess.UpdatedAt = now

	var stored domain.Guess
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SHARE on the round row waits out a concurrent close or open and
		// keeps the round open until this guess commits.
		var round domain.Round
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Where("id = ? AND is_open = ?", guess.RoundID, true).
			First(&round).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrRoundClosed
			}
			return err
		}

		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "round_id"}, {Name: "name_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "value_cents", "raw_text", "updated_at"}),
		}).Create(guess).Error
		if err != nil {
			return err
		}

		return tx.Where("round_id = ? AND name_key = ?", guess.RoundID, guess.NameKey).
			First(&stored).Error
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *guessRepository) ListByRound(ctx context.Context, roundID uuid.UUID, limit int) ([]*domain.Guess, error) {
	var guesses []*domain.Guess
	err := r.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("updated_at DESC, created_at DESC, id").
		Limit(limit).
		Find(&guesses).Error
	if err != nil {
		return nil, err
	}
	return guesses, nil
}

func (r *guessRepository) CountByRound(ctx context.Context, roundID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Guess{}).Where("round_id = ?", roundID).Count(&count).Error
	return count, err
}

func (r *guessRepository) DeleteByRound(ctx context.Context, roundID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&domain.Guess{}, "round_id = ?", roundID)
	return res.RowsAffected, res.Error
}
