package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIClient posts audience commands to the public API
type APIClient struct {
	baseURL    string
	appKey     string
	httpClient *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL, appKey string) *APIClient {
	return &APIClient{
		baseURL: baseURL + "/api/v1/public",
		appKey:  appKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// GuessResult is the part of the guess response the bridge reports.
type GuessResult struct {
	Entry struct {
		User       string `json:"user"`
		ValueCents int64  `json:"valueCents"`
	} `json:"entry"`
	Total int64 `json:"total"`
}

// JoinResult is the part of the join response the bridge reports.
type JoinResult struct {
	Phase    int    `json:"phase"`
	TeamName string `json:"teamName"`
}

// SubmitGuess forwards a !palpite command
func (c *APIClient) SubmitGuess(user, value string) (*GuessResult, error) {
	body := map[string]string{
		"user":    user,
		"value":   value,
		"rawText": value,
	}

	var result GuessResult
	if err := c.post("/prediction/guess", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Join forwards a !time command
func (c *APIClient) Join(user, team string) (*JoinResult, error) {
	body := map[string]string{
		"user": user,
		"team": team,
	}

	var result JoinResult
	if err := c.post("/tournament/join", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) post(path string, body, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-App-Key", c.appKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		var e apiError
		if json.Unmarshal(bodyBytes, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", e.Error, e.Message)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
