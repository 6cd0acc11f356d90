package handlers

import (
	"log/slog"
	"net/http"

	"github.com/dom/stream-games/internal/broadcast"
	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/service"
)

type PredictionHandler struct {
	predictionService *service.PredictionService
	hub               *broadcast.Hub
	logger            *slog.Logger
}

func NewPredictionHandler(predictionService *service.PredictionService, hub *broadcast.Hub, logger *slog.Logger) *PredictionHandler {
	return &PredictionHandler{
		predictionService: predictionService,
		hub:               hub,
		logger:            logger,
	}
}

type OpenRoundRequest struct {
	BuyThreshold      Money  `json:"buyThreshold"`
	BuyThresholdCents *int64 `json:"buyThresholdCents"`
	WinnersWanted     int    `json:"winnersWanted"`
}

type RoundResponse struct {
	Round *domain.Round `json:"round"`
}

type ClearResponse struct {
	Deleted int64 `json:"deleted"`
}

type GuessRequest struct {
	User    string `json:"user"`
	Value   Money  `json:"value"`
	Guess   Money  `json:"guess"`
	RawText Money  `json:"rawText"`
}

// rawValue picks the first of value, guess, rawText that was sent.
func (g GuessRequest) rawValue() string {
	for _, m := range []Money{g.Value, g.Guess, g.RawText} {
		if m.IsSet() {
			return m.Raw()
		}
	}
	return ""
}

type ResolveWinnersRequest struct {
	ActualResult      Money  `json:"actualResult"`
	ActualResultCents *int64 `json:"actualResultCents"`
	WinnersCount      int    `json:"winnersCount"`
}

func (h *PredictionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenRoundRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, "[PredictionHandler.Open]", err)
		return
	}

	threshold, err := centsOrUnits(req.BuyThresholdCents, req.BuyThreshold)
	if err != nil {
		respondError(w, h.logger, "[PredictionHandler.Open]", err)
		return
	}

	round, err := h.predictionService.Open(r.Context(), service.OpenRoundInput{
		BuyThresholdCents: threshold,
		WinnersWanted:     req.WinnersWanted,
	})
	if err != nil {
		respondError(w, h.logger, "[PredictionHandler.Open]", err)
		return
	}

	writeJSON(w, http.StatusOK, RoundResponse{Round: round})
}

func (h *PredictionHandler) Close(w http.ResponseWriter, r *http.Request) {
	round, err := h.predictionService.Close(r.Context())
	if err != nil {
		respondError(w, h.logger, "[PredictionHandler.Close]", err)
		return
	}

	writeJSON(w, http.StatusOK, RoundResponse{Round: round})
}

func (h *PredictionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.predictionService.Clear(r.Context())
	if err != nil {
		respondError(w, h.logger, "[PredictionHandler.Clear]", err)
		return
	}

	writeJSON(w, http.StatusOK, ClearResponse{Deleted: deleted})
}

func (h *PredictionHandler) Winners(w http.ResponseWriter, r *http.Request) {
	var req ResolveWinnersRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, "[PredictionHandler.Winners]", err)
		return
	}
	if req.ActualResultCents == nil && !req.ActualResult.IsSet() {
		respondError(w, h.logger, "[PredictionHandler.Winners]", domain.ErrInvalidValue)
		return
	}

	actual, err := centsOrUnits(req.ActualResultCents, req.ActualResult)
	if err != nil {
		respondError(w, h.logger, "[PredictionHandler.Winners]", err)
		return
	}

	result, err := h.predictionService.ResolveWinners(r.Context(), actual, req.WinnersCount)
	if err != nil {
		respondError(w, h.logger, "[PredictionHandler.Winners]", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// State serves the full snapshot to both the operator and the public overlay.
func (h *PredictionHandler) State(w http.ResponseWriter, r *http.Request) {
	state, err := h.predictionService.State(r.Context())
	if err != nil {
		respondError(w, h.logger, "[PredictionHandler.State]", err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func (h *PredictionHandler) Console(w http.ResponseWriter, r *http.Request) {
	state, err := h.predictionService.ConsoleState(r.Context())
	if err != nil {
		respondError(w, h.logger, "[PredictionHandler.Console]", err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func (h *PredictionHandler) Guess(w http.ResponseWriter, r *http.Request) {
	var req GuessRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, "[PredictionHandler.Guess]", err)
		return
	}

	result, err := h.predictionService.SubmitGuess(r.Context(), req.User, req.rawValue())
	if err != nil {
		respondError(w, h.logger, "[PredictionHandler.Guess]", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// OverlayStream is the public overlay's SSE feed.
func (h *PredictionHandler) OverlayStream(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeSSE(w, r, broadcast.PoolOverlay, h.predictionService.OverlaySnapshot)
}

func (h *PredictionHandler) OverlayWS(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r, broadcast.PoolOverlay, h.predictionService.OverlaySnapshot)
}

func (h *PredictionHandler) ConsoleStream(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeSSE(w, r, broadcast.PoolConsole, h.predictionService.ConsoleSnapshot)
}
