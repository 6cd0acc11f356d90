package api

import (
	"encoding/json"
	"net/http"

	"github.com/dom/stream-games/internal/api/handlers"
	"github.com/dom/stream-games/internal/service"
	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

type apiOperation struct {
	method      string
	path        string
	summary     string
	request     interface{}
	response    interface{}
	contentType string
	errors      []int
}

var apiOperations = []apiOperation{
	{method: http.MethodGet, path: "/healthz", summary: "Dependency health", response: map[string]interface{}{}, errors: []int{http.StatusServiceUnavailable}},

	{method: http.MethodPost, path: "/api/v1/auth/login", summary: "Operator login; sets session and csrf cookies", request: handlers.LoginRequest{}, response: handlers.LoginResponse{}, errors: []int{http.StatusUnauthorized, http.StatusTooManyRequests}},
	{method: http.MethodPost, path: "/api/v1/auth/logout", summary: "Revoke the current session", errors: []int{http.StatusUnauthorized}},
	{method: http.MethodGet, path: "/api/v1/auth/me", summary: "Current operator", response: handlers.OperatorResponse{}, errors: []int{http.StatusUnauthorized}},

	{method: http.MethodGet, path: "/api/v1/public/prediction/state", summary: "Prediction snapshot", response: service.PredictionState{}, errors: []int{http.StatusForbidden}},
	{method: http.MethodGet, path: "/api/v1/public/prediction/stream", summary: "Overlay event stream", contentType: "text/event-stream", errors: []int{http.StatusForbidden}},
	{method: http.MethodGet, path: "/api/v1/public/prediction/ws", summary: "Overlay event stream over WebSocket", errors: []int{http.StatusForbidden}},
	{method: http.MethodPost, path: "/api/v1/public/prediction/guess", summary: "Submit or replace a guess", request: handlers.GuessRequest{}, response: service.GuessResult{}, errors: []int{http.StatusBadRequest, http.StatusConflict, http.StatusTooManyRequests}},
	{method: http.MethodGet, path: "/api/v1/public/tournament/state", summary: "Active tournament with counts", response: service.TournamentState{}, errors: []int{http.StatusForbidden}},
	{method: http.MethodPost, path: "/api/v1/public/tournament/join", summary: "Pick a team for the current phase", request: handlers.JoinRequest{}, response: service.JoinResult{}, errors: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict, http.StatusTooManyRequests}},

	{method: http.MethodGet, path: "/api/v1/stream", summary: "Global change stream", contentType: "text/event-stream", errors: []int{http.StatusUnauthorized}},
	{method: http.MethodGet, path: "/api/v1/stream/ws", summary: "Global change stream over WebSocket", errors: []int{http.StatusUnauthorized}},

	{method: http.MethodPost, path: "/api/v1/prediction/open", summary: "Open a new round", request: handlers.OpenRoundRequest{}, response: handlers.RoundResponse{}, errors: []int{http.StatusBadRequest}},
	{method: http.MethodPost, path: "/api/v1/prediction/close", summary: "Close the open round", response: handlers.RoundResponse{}},
	{method: http.MethodPost, path: "/api/v1/prediction/clear", summary: "Delete the latest round's guesses", response: handlers.ClearResponse{}},
	{method: http.MethodPost, path: "/api/v1/prediction/winners", summary: "Rank guesses against the actual result", request: handlers.ResolveWinnersRequest{}, response: service.WinnersResult{}, errors: []int{http.StatusBadRequest, http.StatusConflict}},
	{method: http.MethodGet, path: "/api/v1/prediction/state", summary: "Prediction snapshot", response: service.PredictionState{}},
	{method: http.MethodGet, path: "/api/v1/prediction/console", summary: "Compact console state", response: service.ConsoleState{}},
	{method: http.MethodGet, path: "/api/v1/prediction/console/stream", summary: "Console event stream", contentType: "text/event-stream"},

	{method: http.MethodPost, path: "/api/v1/tournament/start", summary: "Start a tournament", request: handlers.StartTournamentRequest{}, response: handlers.StartTournamentResponse{}, errors: []int{http.StatusConflict}},
	{method: http.MethodPost, path: "/api/v1/tournament/close-phase", summary: "Stop accepting picks", response: handlers.PhaseResponse{}, errors: []int{http.StatusConflict}},
	{method: http.MethodPost, path: "/api/v1/tournament/decide", summary: "Declare the winning team and eliminate", request: handlers.DecideRequest{}, response: service.DecideResult{}, errors: []int{http.StatusBadRequest, http.StatusConflict}},
	{method: http.MethodPost, path: "/api/v1/tournament/open-next", summary: "Open the next phase", request: handlers.TeamsRequest{}, response: handlers.PhaseResponse{}, errors: []int{http.StatusConflict}},
	{method: http.MethodPost, path: "/api/v1/tournament/finish", summary: "Finish and list winners", request: handlers.FinishRequest{}, response: handlers.FinishResponse{}, errors: []int{http.StatusConflict}},
	{method: http.MethodPatch, path: "/api/v1/tournament/teams", summary: "Replace the open phase's teams", request: handlers.TeamsRequest{}, response: handlers.PhaseResponse{}, errors: []int{http.StatusConflict}},
	{method: http.MethodPatch, path: "/api/v1/tournament/points", summary: "Set per-team points", request: handlers.PointsRequest{}, response: handlers.PhaseResponse{}, errors: []int{http.StatusBadRequest, http.StatusConflict}},
	{method: http.MethodGet, path: "/api/v1/tournament/current", summary: "Operator tournament view", response: service.TournamentState{}},
	{method: http.MethodGet, path: "/api/v1/tournament/winners", summary: "Surviving participants", response: service.WinnersList{}},
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Stream Games API"
	r.Spec.Info.Version = "1.0.0"
	r.Spec.Info.WithDescription("Live prediction rounds and elimination tournaments for stream chat.")

	for _, op := range apiOperations {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		if op.request != nil {
			oc.AddReqStructure(op.request)
		}
		switch {
		case op.contentType != "":
			oc.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK), openapi.WithContentType(op.contentType))
		default:
			oc.AddRespStructure(op.response, openapi.WithHTTPStatus(http.StatusOK))
		}
		for _, status := range op.errors {
			oc.AddRespStructure(handlers.ErrorResponse{}, openapi.WithHTTPStatus(status))
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
