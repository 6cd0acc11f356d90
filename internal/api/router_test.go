package api_test

import (
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/dom/stream-games/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Healthz(t *testing.T) {
	ts := testutil.NewTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.BaseURL()+"/healthz", nil)
	require.NoError(t, err)

	resp := testutil.Do(t, req)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var healthy map[string]map[string]string
	testutil.AssertJSONResponse(t, resp, &healthy)
	assert.Equal(t, "ok", healthy["announcer"]["status"])

	ts.Announcer.CheckErr = errors.New("nats down")

	req, err = http.NewRequest(http.MethodGet, ts.BaseURL()+"/healthz", nil)
	require.NoError(t, err)

	resp = testutil.Do(t, req)
	testutil.AssertStatusCode(t, resp, http.StatusServiceUnavailable)
	var unhealthy map[string]map[string]string
	testutil.AssertJSONResponse(t, resp, &unhealthy)
	assert.Equal(t, "error", unhealthy["announcer"]["status"])
}

func TestRouter_InfrastructureRoutes(t *testing.T) {
	ts := testutil.NewTestServer(t)

	// Generate one request so the HTTP collectors have a sample
	warmup, err := http.NewRequest(http.MethodGet, ts.APIURL("/public/prediction/state"), nil)
	require.NoError(t, err)
	testutil.Do(t, warmup)

	tests := []struct {
		name     string
		path     string
		contains []string
	}{
		{
			name:     "openapi document",
			path:     "/openapi.json",
			contains: []string{`"openapi"`, "Stream Games API", "/api/v1/public/prediction/guess", "/api/v1/tournament/decide"},
		},
		{
			name:     "prometheus metrics",
			path:     "/metrics",
			contains: []string{"http_requests_total"},
		},
		{
			name:     "swagger ui",
			path:     "/docs/",
			contains: []string{"<html"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, ts.BaseURL()+tt.path, nil)
			require.NoError(t, err)

			resp := testutil.Do(t, req)
			testutil.AssertStatusCode(t, resp, http.StatusOK)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, string(body), want)
			}
		})
	}
}

func TestRouter_OperatorRoutesRequireSession(t *testing.T) {
	ts := testutil.NewTestServer(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/prediction/open"},
		{http.MethodGet, "/prediction/console"},
		{http.MethodPost, "/tournament/start"},
		{http.MethodPatch, "/tournament/points"},
		{http.MethodGet, "/tournament/current"},
		{http.MethodGet, "/stream"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			req := testutil.OperatorRequest(t, rt.method, ts.APIURL(rt.path), nil, nil)
			resp := testutil.Do(t, req)
			testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "unauthorized")
		})
	}
}
