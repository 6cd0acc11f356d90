package postgres

import (
	"errors"

	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Advisory lock keys serializing the "only one open/active" transitions.
const (
	roundLockKey      int64 = 7301
	tournamentLockKey int64 = 7302
)

func NewConnection(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Operator{},
		&domain.OperatorSession{},
		&domain.Round{},
		&domain.Guess{},
		&domain.Tournament{},
		&domain.Phase{},
		&domain.Participant{},
		&domain.Choice{},
	)
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		Operator:    NewOperatorRepository(db),
		Session:     NewSessionRepository(db),
		Round:       NewRoundRepository(db),
		Guess:       NewGuessRepository(db),
		Tournament:  NewTournamentRepository(db),
		Participant: NewParticipantRepository(db),
	}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	return err
}

func advisoryLock(tx *gorm.DB, key int64) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", key).Error
}
