package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dom/stream-games/internal/announce"
	"github.com/dom/stream-games/internal/broadcast"
	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/engine"
	"github.com/dom/stream-games/internal/repository"
	"github.com/google/uuid"
)

const (
	stateEntriesLimit   = 500
	consoleEntriesLimit = 24
	rankingEntriesLimit = 1000
)

// PredictionService runs the closest-guess game. Round status and guesses
// live in the database; the resolved result is process state.
type PredictionService struct {
	roundRepo repository.RoundRepository
	guessRepo repository.GuessRepository
	publisher Publisher
	announcer announce.Announcer
	logger    *slog.Logger

	mu         sync.Mutex
	resolution *resolution
}

type resolution struct {
	roundID    uuid.UUID
	actual     int64
	winners    []domain.RankedGuess
	resolvedAt time.Time
}

func NewPredictionService(roundRepo repository.RoundRepository, guessRepo repository.GuessRepository, publisher Publisher, announcer announce.Announcer, logger *slog.Logger) *PredictionService {
	return &PredictionService{
		roundRepo: roundRepo,
		guessRepo: guessRepo,
		publisher: publisher,
		announcer: announcer,
		logger:    logger,
	}
}

type OpenRoundInput struct {
	BuyThresholdCents int64
	// WinnersWanted of zero means domain.DefaultWinners.
	WinnersWanted int
}

// PredictionState is the full view served to the overlay and the operator.
type PredictionState struct {
	RoundID       *uuid.UUID           `json:"roundId"`
	IsOpen        bool                 `json:"isOpen"`
	BuyThreshold  int64                `json:"buyThreshold"`
	WinnersWanted int                  `json:"winnersWanted"`
	CreatedAt     *time.Time           `json:"createdAt"`
	Total         int64                `json:"total"`
	Entries       []*domain.Guess      `json:"entries"`
	ActualResult  *int64               `json:"actualResult"`
	Winners       []domain.RankedGuess `json:"winners"`
	ResolvedAt    *time.Time           `json:"resolvedAt"`
}

type ConsoleGuess struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ConsoleState is the operator console's compact view. Amounts are in
// currency units.
type ConsoleState struct {
	Open         bool           `json:"open"`
	BuyThreshold float64        `json:"buyThreshold"`
	TotalGuesses int64          `json:"totalGuesses"`
	LastGuesses  []ConsoleGuess `json:"lastGuesses"`
}

type GuessResult struct {
	Entry *domain.Guess `json:"entry"`
	Total int64         `json:"total"`
}

type WinnersResult struct {
	RoundID      uuid.UUID            `json:"roundId"`
	ActualResult int64                `json:"actualResult"`
	WinnersCount int                  `json:"winnersCount"`
	Winners      []domain.RankedGuess `json:"winners"`
}

func (s *PredictionService) Open(ctx context.Context, input OpenRoundInput) (*domain.Round, error) {
	if input.BuyThresholdCents < 0 {
		return nil, domain.ErrInvalidValue
	}
	wanted := input.WinnersWanted
	if wanted == 0 {
		wanted = domain.DefaultWinners
	}

	now := time.Now()
	round := &domain.Round{
		ID:            uuid.New(),
		BuyThreshold:  input.BuyThresholdCents,
		WinnersWanted: engine.ClampInt(wanted, domain.MinWinners, domain.MaxWinners),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.roundRepo.Open(ctx, round); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.resolution = nil
	s.mu.Unlock()

	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	s.publisher.PublishJSON(broadcast.PoolOverlay, broadcast.EventPredictionOpen, state)
	s.publishConsoleState(ctx)
	s.publisher.PublishJSON(broadcast.PoolGlobal, broadcast.EventPredictionChanged, broadcast.ChangeNotice{Reason: "open", Extra: state})
	s.announce(ctx, announce.RoundOpened())

	return round, nil
}

// Close closes the open round. It returns nil without error when no round is open.
func (s *PredictionService) Close(ctx context.Context) (*domain.Round, error) {
	round, err := s.roundRepo.CloseOpen(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	s.publishClosed(ctx)
	s.announce(ctx, announce.RoundClosed())
	return round, nil
}

func (s *PredictionService) publishClosed(ctx context.Context) {
	state, err := s.State(ctx)
	if err != nil {
		s.logger.Error("[PredictionService.Close] loading state failed", "error", err)
		return
	}
	s.publisher.PublishJSON(broadcast.PoolOverlay, broadcast.EventPredictionClose, state)
	s.publishConsoleState(ctx)
	s.publisher.PublishJSON(broadcast.PoolGlobal, broadcast.EventPredictionChanged, broadcast.ChangeNotice{Reason: "close", Extra: state})
}

// Clear deletes every guess of the latest round and forgets its result. The
// round keeps its open/closed status.
func (s *PredictionService) Clear(ctx context.Context) (int64, error) {
	round, err := s.roundRepo.Latest(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	deleted, err := s.guessRepo.DeleteByRound(ctx, round.ID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.resolution = nil
	s.mu.Unlock()

	state, err := s.State(ctx)
	if err != nil {
		return deleted, err
	}
	s.publisher.PublishJSON(broadcast.PoolOverlay, broadcast.EventPredictionClear, state)
	s.publisher.PublishJSON(broadcast.PoolConsole, broadcast.EventClear, struct{}{})
	s.publishConsoleState(ctx)
	s.publisher.PublishJSON(broadcast.PoolGlobal, broadcast.EventPredictionChanged, broadcast.ChangeNotice{Reason: "clear", Extra: state})
	return deleted, nil
}

// SubmitGuess records participant's latest guess for the open round.
func (s *PredictionService) SubmitGuess(ctx context.Context, participant, rawValue string) (*GuessResult, error) {
	round, err := s.roundRepo.Latest(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNoRound
		}
		return nil, err
	}
	if !round.IsOpen {
		return nil, domain.ErrRoundClosed
	}

	cents, err := engine.ParseMoneyToCents(rawValue)
	if err != nil {
		return nil, domain.ErrInvalidValue
	}
	if round.BuyThreshold > 0 && cents <= round.BuyThreshold {
		return nil, domain.ErrBelowThreshold
	}

	name := engine.SanitizeName(participant, engine.MaxParticipantName)
	key := engine.NormalizeName(name)
	if name == "" || key == "" {
		return nil, domain.ErrInvalidParticipant
	}

	entry, err := s.guessRepo.Upsert(ctx, &domain.Guess{
		RoundID:    round.ID,
		Name:       name,
		NameKey:    key,
		ValueCents: cents,
		RawText:    engine.SafeText(rawValue, engine.MaxRawText),
	})
	if err != nil {
		return nil, err
	}

	total, err := s.guessRepo.CountByRound(ctx, round.ID)
	if err != nil {
		return nil, err
	}

	result := &GuessResult{Entry: entry, Total: total}
	s.publisher.PublishJSON(broadcast.PoolOverlay, broadcast.EventPredictionGuess, result)
	s.publisher.PublishJSON(broadcast.PoolConsole, broadcast.EventGuess, map[string]interface{}{
		"name":         entry.Name,
		"value":        engine.CentsToUnits(entry.ValueCents),
		"totalGuesses": total,
	})
	s.publishConsoleState(ctx)
	s.publisher.PublishJSON(broadcast.PoolGlobal, broadcast.EventPredictionChanged, broadcast.ChangeNotice{Reason: "guess", Entry: entry})

	return result, nil
}

// ResolveWinners ranks the latest round's guesses against actual and closes
// the round. winnersCount of zero uses the round's WinnersWanted.
func (s *PredictionService) ResolveWinners(ctx context.Context, actual int64, winnersCount int) (*WinnersResult, error) {
	round, err := s.roundRepo.Latest(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNoRound
		}
		return nil, err
	}
	if actual < 0 {
		return nil, domain.ErrInvalidValue
	}

	count := winnersCount
	if count == 0 {
		count = round.WinnersWanted
	}
	count = engine.ClampInt(count, domain.MinWinners, domain.MaxWinners)

	guesses, err := s.guessRepo.ListByRound(ctx, round.ID, rankingEntriesLimit)
	if err != nil {
		return nil, err
	}
	if len(guesses) == 0 {
		return nil, domain.ErrNoGuesses
	}

	winners := engine.Rank(guesses, actual, count)

	if round.IsOpen {
		if _, err := s.roundRepo.CloseOpen(ctx); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	s.mu.Lock()
	s.resolution = &resolution{
		roundID:    round.ID,
		actual:     actual,
		winners:    winners,
		resolvedAt: time.Now(),
	}
	s.mu.Unlock()

	result := &WinnersResult{
		RoundID:      round.ID,
		ActualResult: actual,
		WinnersCount: count,
		Winners:      winners,
	}

	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	s.publisher.PublishJSON(broadcast.PoolOverlay, broadcast.EventPredictionWinners, state)
	s.publishConsoleState(ctx)
	s.publisher.PublishJSON(broadcast.PoolGlobal, broadcast.EventPredictionChanged, broadcast.ChangeNotice{Reason: "winners", Extra: result})

	return result, nil
}

// State returns the full snapshot of the latest round.
func (s *PredictionService) State(ctx context.Context) (*PredictionState, error) {
	state := &PredictionState{
		WinnersWanted: domain.DefaultWinners,
		Entries:       []*domain.Guess{},
		Winners:       []domain.RankedGuess{},
	}

	round, err := s.roundRepo.Latest(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return state, nil
		}
		return nil, err
	}

	state.RoundID = &round.ID
	state.IsOpen = round.IsOpen
	state.BuyThreshold = round.BuyThreshold
	state.WinnersWanted = round.WinnersWanted
	state.CreatedAt = &round.CreatedAt

	entries, err := s.guessRepo.ListByRound(ctx, round.ID, stateEntriesLimit)
	if err != nil {
		return nil, err
	}
	if entries != nil {
		state.Entries = entries
	}
	if state.Total, err = s.guessRepo.CountByRound(ctx, round.ID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if res := s.resolution; res != nil && res.roundID == round.ID {
		actual := res.actual
		resolvedAt := res.resolvedAt
		state.ActualResult = &actual
		state.Winners = res.winners
		state.ResolvedAt = &resolvedAt
	}
	s.mu.Unlock()

	return state, nil
}

func (s *PredictionService) ConsoleState(ctx context.Context) (*ConsoleState, error) {
	state := &ConsoleState{LastGuesses: []ConsoleGuess{}}

	round, err := s.roundRepo.Latest(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return state, nil
		}
		return nil, err
	}

	state.Open = round.IsOpen
	state.BuyThreshold = engine.CentsToUnits(round.BuyThreshold)

	entries, err := s.guessRepo.ListByRound(ctx, round.ID, consoleEntriesLimit)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		state.LastGuesses = append(state.LastGuesses, ConsoleGuess{
			Name:  e.Name,
			Value: engine.CentsToUnits(e.ValueCents),
		})
	}
	if state.TotalGuesses, err = s.guessRepo.CountByRound(ctx, round.ID); err != nil {
		return nil, err
	}
	return state, nil
}

// OverlaySnapshot is sent to overlay subscribers when they connect.
func (s *PredictionService) OverlaySnapshot(ctx context.Context) (broadcast.Event, error) {
	state, err := s.State(ctx)
	if err != nil {
		return broadcast.Event{}, err
	}
	return broadcast.NewEvent(broadcast.EventPredictionInit, state)
}

// ConsoleSnapshot is sent to console subscribers when they connect.
func (s *PredictionService) ConsoleSnapshot(ctx context.Context) (broadcast.Event, error) {
	state, err := s.ConsoleState(ctx)
	if err != nil {
		return broadcast.Event{}, err
	}
	return broadcast.NewEvent(broadcast.EventState, state)
}

func (s *PredictionService) publishConsoleState(ctx context.Context) {
	state, err := s.ConsoleState(ctx)
	if err != nil {
		s.logger.Error("[PredictionService.publishConsoleState] loading console state failed", "error", err)
		return
	}
	s.publisher.PublishJSON(broadcast.PoolConsole, broadcast.EventState, state)
}

func (s *PredictionService) announce(ctx context.Context, text string) {
	announceText(ctx, s.announcer, s.logger, text)
}
