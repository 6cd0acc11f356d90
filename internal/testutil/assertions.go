package testutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/dom/stream-games/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertStatusCode verifies the HTTP response status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertJSONResponse decodes JSON response into v
func AssertJSONResponse(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	err = json.Unmarshal(body, v)
	require.NoError(t, err, "failed to unmarshal response: %s", string(body))
}

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// AssertErrorResponse verifies the status and the stable error code.
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedCode string) {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	var body ErrorBody
	AssertJSONResponse(t, resp, &body)
	assert.Equal(t, expectedCode, body.Error, "error code mismatch")
	assert.NotEmpty(t, body.Message)
}

// AssertDomainError checks the response against a domain error sentinel.
func AssertDomainError(t *testing.T, resp *http.Response, want *domain.Error) {
	t.Helper()
	AssertErrorResponse(t, resp, want.Status, want.Code)
}

// AssertErrorIs fails unless err carries the given domain error.
func AssertErrorIs(t *testing.T, err error, want *domain.Error) {
	t.Helper()

	require.Error(t, err)
	assert.True(t, errors.Is(err, want), "expected %s, got %v", want.Code, err)
}
