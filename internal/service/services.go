package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dom/stream-games/internal/announce"
	"github.com/dom/stream-games/internal/broadcast"
	"github.com/dom/stream-games/internal/config"
	"github.com/dom/stream-games/internal/repository"
)

const announceTimeout = 3 * time.Second

// Publisher pushes an event to every subscriber of a pool.
type Publisher interface {
	PublishJSON(pool broadcast.Pool, name string, payload interface{})
}

type Services struct {
	Auth       *AuthService
	Prediction *PredictionService
	Tournament *TournamentService
}

func NewServices(repos *repository.Repositories, publisher Publisher, announcer announce.Announcer, cfg *config.Config, logger *slog.Logger) *Services {
	return &Services{
		Auth:       NewAuthService(repos.Operator, repos.Session, cfg),
		Prediction: NewPredictionService(repos.Round, repos.Guess, publisher, announcer, logger),
		Tournament: NewTournamentService(repos.Tournament, repos.Participant, publisher, announcer, logger),
	}
}

// announceText sends text to chat, detached from the request's cancellation.
// Failures are logged only.
func announceText(ctx context.Context, a announce.Announcer, logger *slog.Logger, text string) {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), announceTimeout)
	defer cancel()
	if err := a.Announce(ctx, text); err != nil {
		logger.Warn("announcement failed", "error", err)
	}
}
