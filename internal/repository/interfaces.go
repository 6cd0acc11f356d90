package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dom/stream-games/internal/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

type OperatorRepository interface {
	Create(ctx context.Context, operator *domain.Operator) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error)
	GetByUsername(ctx context.Context, username string) (*domain.Operator, error)
	UpsertCredentials(ctx context.Context, username, passwordHash string) (*domain.Operator, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.OperatorSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.OperatorSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type RoundRepository interface {
	// Open closes any open round and inserts round as the open one, serialized
	// against concurrent callers.
	Open(ctx context.Context, round *domain.Round) error
	// CloseOpen closes the open round and returns it, or ErrNotFound.
	CloseOpen(ctx context.Context) (*domain.Round, error)
	Latest(ctx context.Context) (*domain.Round, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Round, error)
}

type GuessRepository interface {
	// Upsert inserts or overwrites the guess keyed by (round, name key) and
	// returns the stored row. It fails with domain.ErrRoundClosed unless the
	// round is still open when the write happens.
	Upsert(ctx context.Context, guess *domain.Guess) (*domain.Guess, error)
	// ListByRound returns guesses most recently updated first.
	ListByRound(ctx context.Context, roundID uuid.UUID, limit int) ([]*domain.Guess, error)
	CountByRound(ctx context.Context, roundID uuid.UUID) (int64, error)
	DeleteByRound(ctx context.Context, roundID uuid.UUID) (int64, error)
}

// PointsEntry is an operator-supplied points value for a free-text team reference.
type PointsEntry struct {
	Team   string
	Points int
}

type DecideResult struct {
	Tournament *domain.Tournament
	Phase      *domain.Phase
	Winner     domain.Team
	Survivors  int
	Eliminated int
}

type TournamentRepository interface {
	// Start creates an ACTIVE tournament with phase 1 open, or fails with
	// domain.ErrTournamentAlreadyActive.
	Start(ctx context.Context, tournament *domain.Tournament, teams []domain.Team) (*domain.Phase, error)
	GetActive(ctx context.Context) (*domain.Tournament, error)
	// GetLatest returns the active tournament, or the most recently created one.
	GetLatest(ctx context.Context) (*domain.Tournament, error)
	GetPhase(ctx context.Context, tournamentID uuid.UUID, number int) (*domain.Phase, error)
	ClosePhase(ctx context.Context) (*domain.Tournament, *domain.Phase, error)
	UpdateTeams(ctx context.Context, teams []domain.Team) (*domain.Tournament, *domain.Phase, error)
	SetPoints(ctx context.Context, entries []PointsEntry) (*domain.Tournament, *domain.Phase, error)
	// DecidePhase resolves the winner and eliminates every alive participant
	// who did not pick it, in one transaction.
	DecidePhase(ctx context.Context, teamInput string) (*DecideResult, error)
	OpenNextPhase(ctx context.Context, teams []domain.Team) (*domain.Tournament, *domain.Phase, error)
	// Finish marks the active tournament FINISHED and returns up to limit
	// alive participants.
	Finish(ctx context.Context, limit int) (*domain.Tournament, []*domain.Participant, error)
}

type JoinInput struct {
	Name        string
	NameKey     string
	DisplayName *string
	TeamInput   string
}

type JoinResult struct {
	Tournament  *domain.Tournament
	Phase       *domain.Phase
	Team        domain.Team
	Participant *domain.Participant
}

// TeamMember is a participant listed under the team they picked.
type TeamMember struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type ParticipantRepository interface {
	// Join upserts the participant and their choice for the current phase.
	Join(ctx context.Context, input JoinInput) (*JoinResult, error)
	Get(ctx context.Context, tournamentID uuid.UUID, nameKey string) (*domain.Participant, error)
	CountChoices(ctx context.Context, tournamentID uuid.UUID, phase int) (map[string]int64, error)
	ListChoosers(ctx context.Context, tournamentID uuid.UUID, phase int) (map[string][]TeamMember, error)
	// ListAlive returns alive participants most recently updated first.
	ListAlive(ctx context.Context, tournamentID uuid.UUID, limit int) ([]*domain.Participant, error)
}

type Repositories struct {
	Operator    OperatorRepository
	Session     SessionRepository
	Round       RoundRepository
	Guess       GuessRepository
	Tournament  TournamentRepository
	Participant ParticipantRepository
}
