package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/dom/stream-games/internal/api/handlers"
	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_Login(t *testing.T) {
	ts := testutil.NewTestServer(t)

	operator, rawPassword := testutil.NewOperatorBuilder().
		WithUsername("streamer").
		WithPassword("correctpassword").
		Build(t, ts.DB.DB)

	tests := []struct {
		name           string
		request        map[string]string
		expectedStatus int
		expectedCode   string
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name: "successful login",
			request: map[string]string{
				"username": operator.Username,
				"password": rawPassword,
			},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result handlers.LoginResponse
				testutil.AssertJSONResponse(t, resp, &result)
				assert.Equal(t, operator.Username, result.Operator.Username)
				assert.NotEmpty(t, result.Token)
				assert.NotEmpty(t, result.CSRFToken)

				cookies := map[string]*http.Cookie{}
				for _, c := range resp.Cookies() {
					cookies[c.Name] = c
				}
				require.Contains(t, cookies, "session")
				require.Contains(t, cookies, "csrf")
				assert.True(t, cookies["session"].HttpOnly)
				assert.False(t, cookies["csrf"].HttpOnly)
				assert.Equal(t, result.CSRFToken, cookies["csrf"].Value)
			},
		},
		{
			name: "invalid password",
			request: map[string]string{
				"username": operator.Username,
				"password": "wrongpassword",
			},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "unauthorized",
		},
		{
			name: "unknown operator",
			request: map[string]string{
				"username": "nobody",
				"password": "anypassword",
			},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "unauthorized",
		},
		{
			name:           "empty request body",
			request:        map[string]string{},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.request)
			resp, err := http.Post(ts.APIURL("/auth/login"), "application/json", bytes.NewBuffer(body))
			require.NoError(t, err)
			defer resp.Body.Close()

			if tt.expectedCode != "" {
				testutil.AssertErrorResponse(t, resp, tt.expectedStatus, tt.expectedCode)
				return
			}
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.checkResponse != nil {
				tt.checkResponse(t, resp)
			}
		})
	}
}

func TestAuthHandler_LoginRejectsMalformedBody(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp, err := http.Post(ts.APIURL("/auth/login"), "application/json", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	testutil.AssertDomainError(t, resp, domain.ErrInvalidBody)
}

func TestAuthHandler_MeAndLogout(t *testing.T) {
	ts := testutil.NewTestServer(t)
	operator, session := testutil.NewOperatorBuilder().BuildAndLogin(t, ts)

	t.Run("me with cookie", func(t *testing.T) {
		resp := testutil.Do(t, testutil.OperatorRequest(t, http.MethodGet, ts.APIURL("/auth/me"), nil, session))
		testutil.AssertStatusCode(t, resp, http.StatusOK)

		var body map[string]handlers.OperatorResponse
		testutil.AssertJSONResponse(t, resp, &body)
		assert.Equal(t, operator.Username, body["operator"].Username)
	})

	t.Run("me with bearer", func(t *testing.T) {
		resp := testutil.Do(t, testutil.BearerRequest(t, http.MethodGet, ts.APIURL("/auth/me"), nil, session.Token))
		testutil.AssertStatusCode(t, resp, http.StatusOK)
	})

	t.Run("me without credentials", func(t *testing.T) {
		resp := testutil.Do(t, testutil.BearerRequest(t, http.MethodGet, ts.APIURL("/auth/me"), nil, ""))
		testutil.AssertDomainError(t, resp, domain.ErrUnauthorized)
	})

	t.Run("cookie mutation without csrf header", func(t *testing.T) {
		noCSRF := *session
		noCSRF.CSRFToken = ""
		resp := testutil.Do(t, testutil.OperatorRequest(t, http.MethodPost, ts.APIURL("/auth/logout"), nil, &noCSRF))
		testutil.AssertDomainError(t, resp, domain.ErrInvalidCSRF)
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		resp := testutil.Do(t, testutil.OperatorRequest(t, http.MethodPost, ts.APIURL("/auth/logout"), nil, session))
		testutil.AssertStatusCode(t, resp, http.StatusOK)

		resp = testutil.Do(t, testutil.BearerRequest(t, http.MethodGet, ts.APIURL("/auth/me"), nil, session.Token))
		testutil.AssertDomainError(t, resp, domain.ErrUnauthorized)
	})
}
