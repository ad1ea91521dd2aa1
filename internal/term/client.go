// Package term implements the terminal surface: a Bubble Tea client that a
// calling agent launches as a detached process to show one pending question.
// It talks to the engine's terminal endpoints over HTTP and never holds
// session state of its own.
package term

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/askgate-dev/askgate/internal/server"
)

// Client wraps the engine's terminal endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the engine at baseURL,
// e.g. "http://127.0.0.1:8765".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// State fetches the current view of the session.
func (c *Client) State(sessionID string) (server.SessionState, error) {
	var state server.SessionState

	resp, err := c.http.Get(c.baseURL + "/terminal/" + sessionID)
	if err != nil {
		return state, fmt.Errorf("fetching session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return state, fmt.Errorf("session %s not found", sessionID)
	}
	if resp.StatusCode != http.StatusOK {
		return state, fmt.Errorf("fetching session: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return state, fmt.Errorf("decoding session: %w", err)
	}
	return state, nil
}

// Submit posts an action for the session and returns the engine's verdict.
func (c *Client) Submit(sessionID string, req server.SubmitRequest) (server.SubmitResponse, error) {
	var result server.SubmitResponse

	body, err := json.Marshal(req)
	if err != nil {
		return result, fmt.Errorf("encoding submission: %w", err)
	}

	resp, err := c.http.Post(c.baseURL+"/terminal/"+sessionID+"/submit", "application/json", bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("submitting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return result, fmt.Errorf("session %s not found", sessionID)
	}
	if resp.StatusCode == http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return result, fmt.Errorf("rejected: %s", apiErr.Error)
		}
		return result, fmt.Errorf("submitting: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("submitting: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("decoding response: %w", err)
	}
	return result, nil
}
