package handlers

import (
	"context"
	"net/http"

	"github.com/dom/stream-games/internal/broadcast"
	"github.com/dom/stream-games/internal/service"
)

// StreamHandler serves the operator's global change feed.
type StreamHandler struct {
	hub        *broadcast.Hub
	prediction *service.PredictionService
	tournament *service.TournamentService
}

func NewStreamHandler(hub *broadcast.Hub, prediction *service.PredictionService, tournament *service.TournamentService) *StreamHandler {
	return &StreamHandler{hub: hub, prediction: prediction, tournament: tournament}
}

type globalSnapshot struct {
	Prediction *service.PredictionState `json:"prediction"`
	Tournament *service.TournamentState `json:"tournament"`
}

func (h *StreamHandler) snapshot(ctx context.Context) (broadcast.Event, error) {
	prediction, err := h.prediction.State(ctx)
	if err != nil {
		return broadcast.Event{}, err
	}
	tournament, err := h.tournament.PublicState(ctx)
	if err != nil {
		return broadcast.Event{}, err
	}
	return broadcast.NewEvent(broadcast.EventState, globalSnapshot{Prediction: prediction, Tournament: tournament})
}

func (h *StreamHandler) Global(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeSSE(w, r, broadcast.PoolGlobal, h.snapshot)
}

func (h *StreamHandler) GlobalWS(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r, broadcast.PoolGlobal, h.snapshot)
}
