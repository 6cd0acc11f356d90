package postgres

import (
	"context"
	"time"

	"github.com/dom/stream-games/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type operatorRepository struct {
	db *gorm.DB
}

func NewOperatorRepository(db *gorm.DB) *operatorRepository {
	return &operatorRepository{db: db}
}

func (r *operatorRepository) Create(ctx context.Context, operator *domain.Operator) error {
	return r.db.WithContext(ctx).Create(operator).Error
}

func (r *operatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	var operator domain.Operator
	err := r.db.WithContext(ctx).First(&operator, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &operator, nil
}

func (r *operatorRepository) GetByUsername(ctx context.Context, username string) (*domain.Operator, error) {
	var operator domain.Operator
	err := r.db.WithContext(ctx).First(&operator, "username = ?", username).Error
	if err != nil {
		return nil, translate(err)
	}
	return &operator, nil
}

// UpsertCredentials creates the operator or replaces its password hash.
func (r *operatorRepository) UpsertCredentials(ctx context.Context, username, passwordHash string) (*domain.Operator, error) {
	now := time.Now()
	operator := &domain.Operator{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "updated_at"}),
	}).Create(operator).Error
	if err != nil {
		return nil, err
	}

	return r.GetByUsername(ctx, username)
}
