package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/repository"
	"github.com/dom/stream-games/internal/service"
)

type TournamentHandler struct {
	tournamentService *service.TournamentService
	logger            *slog.Logger
}

func NewTournamentHandler(tournamentService *service.TournamentService, logger *slog.Logger) *TournamentHandler {
	return &TournamentHandler{tournamentService: tournamentService, logger: logger}
}

// TeamsRequest carries a roster either as teams[] or the legacy three-slot
// teamA/teamB/teamC form.
type TeamsRequest struct {
	Teams []string `json:"teams"`
	TeamA string   `json:"teamA"`
	TeamB string   `json:"teamB"`
	TeamC string   `json:"teamC"`
}

func (t TeamsRequest) names() []string {
	if len(t.Teams) > 0 {
		return t.Teams
	}
	return []string{t.TeamA, t.TeamB, t.TeamC}
}

type StartTournamentRequest struct {
	Name string `json:"name"`
	TeamsRequest
}

type StartTournamentResponse struct {
	Tournament *domain.Tournament `json:"tournament"`
	Phase      *domain.Phase      `json:"phase"`
}

type PhaseResponse struct {
	Phase *domain.Phase `json:"phase"`
}

type DecideRequest struct {
	WinnerTeam string `json:"winnerTeam"`
	Winner     string `json:"winner"`
	Team       string `json:"team"`
}

func (d DecideRequest) team() string {
	return firstNonEmpty(d.WinnerTeam, d.Winner, d.Team)
}

type FinishRequest struct {
	Limit int `json:"limit"`
}

type FinishResponse struct {
	Tournament *domain.Tournament   `json:"tournament"`
	Winners    []service.WinnerView `json:"winners"`
}

type PointsRequest struct {
	Points json.RawMessage `json:"points"`
}

type JoinRequest struct {
	User        string `json:"user"`
	TwitchName  string `json:"twitchName"`
	DisplayName string `json:"displayName"`
	Display     string `json:"display"`
	Team        string `json:"team"`
	TeamName    string `json:"teamName"`
	Time        string `json:"time"`
}

func (h *TournamentHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartTournamentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, "[TournamentHandler.Start]", err)
		return
	}

	tournament, phase, err := h.tournamentService.Start(r.Context(), req.Name, req.names())
	if err != nil {
		respondError(w, h.logger, "[TournamentHandler.Start]", err)
		return
	}

	writeJSON(w, http.StatusOK, StartTournamentResponse{Tournament: tournament, Phase: phase})
}

func (h *TournamentHandler) ClosePhase(w http.ResponseWriter, r *http.Request) {
	phase, err := h.tournamentService.ClosePhase(r.Context())
	if err != nil {
		respondError(w, h.logger, "[TournamentHandler.ClosePhase]", err)
		return
	}

	writeJSON(w, http.StatusOK, PhaseResponse{Phase: phase})
}

func (h *TournamentHandler) UpdateTeams(w http.ResponseWriter, r *http.Request) {
	var req TeamsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, "[TournamentHandler.UpdateTeams]", err)
		return
	}

	phase, err := h.tournamentService.UpdateTeams(r.Context(), req.names())
	if err != nil {
		respondError(w, h.logger, "[TournamentHandler.UpdateTeams]", err)
		return
	}

	writeJSON(w, http.StatusOK, PhaseResponse{Phase: phase})
}

func (h *TournamentHandler) SetPoints(w http.ResponseWriter, r *http.Request) {
	var req PointsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, "[TournamentHandler.SetPoints]", err)
		return
	}

	entries, err := parsePoints(req.Points)
	if err != nil {
		respondError(w, h.logger, "[TournamentHandler.SetPoints]", err)
		return
	}

	phase, err := h.tournamentService.SetPoints(r.Context(), entries)
	if err != nil {
		respondError(w, h.logger, "[TournamentHandler.SetPoints]", err)
		return
	}

	writeJSON(w, http.StatusOK, PhaseResponse{Phase: phase})
}

func (h *TournamentHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req DecideRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, "[TournamentHandler.Decide]", err)
		return
	}

	result, err := h.tournamentService.Decide(r.Context(), req.team())
	if err != nil {
		respondError(w, h.logger, "[TournamentHandler.Decide]", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *TournamentHandler) OpenNext(w http.ResponseWriter, r *http.Request) {
	var req TeamsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, "[TournamentHandler.OpenNext]", err)
		return
	}

	phase, err := h.tournamentService.OpenNextPhase(r.Context(), req.names())
	if err != nil {
		respondError(w, h.logger, "[TournamentHandler.OpenNext]", err)
		return
	}

	writeJSON(w, http.StatusOK, PhaseResponse{Phase: phase})
}

func (h *TournamentHandler) Finish(w http.ResponseWriter, r *http.Request) {
	var req FinishRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, "[TournamentHandler.Finish]", err)
		return
	}

	tournament, winners, err := h.tournamentService.Finish(r.Context(), req.Limit)
	if err != nil {
		respondError(w, h.logger, "[TournamentHandler.Finish]", err)
		return
	}

	resp := FinishResponse{Tournament: tournament, Winners: make([]service.WinnerView, 0, len(winners))}
	for _, p := range winners {
		resp.Winners = append(resp.Winners, service.WinnerView{
			TwitchName:  p.Name,
			DisplayName: p.Label(),
			JoinedAt:    p.JoinedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TournamentHandler) Current(w http.ResponseWriter, r *http.Request) {
	state, err := h.tournamentService.OperatorState(r.Context())
	if err != nil {
		respondError(w, h.logger, "[TournamentHandler.Current]", err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func (h *TournamentHandler) Winners(w http.ResponseWriter, r *http.Request) {
	list, err := h.tournamentService.Winners(r.Context(), queryInt(r, "limit"))
	if err != nil {
		respondError(w, h.logger, "[TournamentHandler.Winners]", err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (h *TournamentHandler) PublicState(w http.ResponseWriter, r *http.Request) {
	state, err := h.tournamentService.PublicState(r.Context())
	if err != nil {
		respondError(w, h.logger, "[TournamentHandler.PublicState]", err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func (h *TournamentHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, "[TournamentHandler.Join]", err)
		return
	}

	result, err := h.tournamentService.Join(r.Context(), service.JoinInput{
		User:        firstNonEmpty(req.User, req.TwitchName),
		DisplayName: firstNonEmpty(req.DisplayName, req.Display),
		Team:        firstNonEmpty(req.Team, req.TeamName, req.Time),
	})
	if err != nil {
		respondError(w, h.logger, "[TournamentHandler.Join]", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// parsePoints accepts {"<team ref>": n} or [{"team": ref, "points": n}].
// Unreadable numbers count as zero.
func parsePoints(raw json.RawMessage) ([]repository.PointsEntry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, domain.ErrInvalidPoints
	}

	switch trimmed[0] {
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, domain.ErrInvalidPoints
		}
		entries := make([]repository.PointsEntry, 0, len(m))
		for ref, v := range m {
			entries = append(entries, repository.PointsEntry{Team: ref, Points: looseInt(v)})
		}
		return entries, nil

	case '[':
		var rows []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, domain.ErrInvalidPoints
		}
		entries := make([]repository.PointsEntry, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, repository.PointsEntry{
				Team:   firstNonEmpty(looseString(row["team"]), looseString(row["teamName"]), looseString(row["name"]), looseString(row["key"])),
				Points: looseInt(firstPresent(row, "points", "pontos", "value")),
			})
		}
		return entries, nil
	}

	return nil, domain.ErrInvalidPoints
}

func firstPresent(row map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			return v
		}
	}
	return nil
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func looseInt(raw json.RawMessage) int {
	s := strings.TrimSpace(looseString(raw))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Trunc(f))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
