// Package engine provides the REST client for the external turn-based
// game engine that hosts wheel matches.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// Client is the REST client for the game engine API. It implements
// domain.Engine.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new engine REST client.
//
// baseURL is the API root, e.g. "http://engine:8090/api/v1". apiKey may be
// empty when the engine runs unauthenticated on a private network. A zero
// timeout defaults to 30 seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type matchPayload struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	CurrentTurn string   `json:"current_turn"`
	Winners     []string `json:"winners"`
}

func (p matchPayload) toDomain() domain.EngineMatch {
	return domain.EngineMatch{
		ID:          p.ID,
		Status:      domain.EngineMatchStatus(p.Status),
		CurrentTurn: p.CurrentTurn,
		Winners:     p.Winners,
	}
}

// CreateMatch asks the engine to open a match between two actors and
// returns the engine's match ID.
func (c *Client) CreateMatch(ctx context.Context, actorA, actorB string, gameType domain.GameType, wager int64) (string, error) {
	req := struct {
		GameType string   `json:"game_type"`
		Players  []string `json:"players"`
		Wager    int64    `json:"wager"`
	}{
		GameType: string(gameType),
		Players:  []string{actorA, actorB},
		Wager:    wager,
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/matches", req)
	if err != nil {
		return "", fmt.Errorf("engine: create match: %w", err)
	}

	var resp struct {
		Match matchPayload `json:"match"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("engine: decode create match: %w", err)
	}
	if resp.Match.ID == "" {
		return "", fmt.Errorf("engine: create match: empty match id")
	}

	return resp.Match.ID, nil
}

// PlayTurn asks the engine to play one turn for the actor holding it.
func (c *Client) PlayTurn(ctx context.Context, matchID, actorID string) (domain.TurnResult, error) {
	path := fmt.Sprintf("/matches/%s/turns", url.PathEscape(matchID))
	req := struct {
		ActorID string `json:"actor_id"`
	}{ActorID: actorID}

	body, err := c.doRequest(ctx, http.MethodPost, path, req)
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("engine: play turn %s: %w", matchID, err)
	}

	var resp struct {
		Move struct {
			ActorID   string `json:"actor_id"`
			TurnIndex int    `json:"turn_index"`
			Action    string `json:"action"`
			Rationale string `json:"rationale"`
			Amount    int64  `json:"amount"`
		} `json:"move"`
		IsComplete bool `json:"is_complete"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.TurnResult{}, fmt.Errorf("engine: decode turn: %w", err)
	}

	return domain.TurnResult{
		Move: domain.MoveRecord{
			MatchID:   matchID,
			ActorID:   resp.Move.ActorID,
			TurnIndex: resp.Move.TurnIndex,
			Action:    resp.Move.Action,
			Rationale: resp.Move.Rationale,
			Amount:    resp.Move.Amount,
			PlayedAt:  time.Now().UTC(),
		},
		IsComplete: resp.IsComplete,
	}, nil
}

// GetMatch returns the engine's current snapshot of a match.
func (c *Client) GetMatch(ctx context.Context, matchID string) (domain.EngineMatch, error) {
	path := fmt.Sprintf("/matches/%s", url.PathEscape(matchID))

	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.EngineMatch{}, fmt.Errorf("engine: get match %s: %w", matchID, err)
	}

	var resp struct {
		Match matchPayload `json:"match"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.EngineMatch{}, fmt.Errorf("engine: decode match: %w", err)
	}

	return resp.Match.toDomain(), nil
}

// CancelMatch asks the engine to abandon a match, e.g. when it is stuck.
func (c *Client) CancelMatch(ctx context.Context, matchID, requestingActorID string) error {
	path := fmt.Sprintf("/matches/%s/cancel", url.PathEscape(matchID))
	req := struct {
		ActorID string `json:"actor_id"`
	}{ActorID: requestingActorID}

	if _, err := c.doRequest(ctx, http.MethodPost, path, req); err != nil {
		return fmt.Errorf("engine: cancel match %s: %w", matchID, err)
	}
	return nil
}

// doRequest builds, sends, and reads an HTTP request against the engine API.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to errors.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Message
	if msg == "" {
		msg = apiErr.Error
	}

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("engine: not found: %s", msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("engine: unauthorized: %s", msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("engine: rate limited: %s", msg)
	case http.StatusBadRequest:
		return fmt.Errorf("engine: bad request: %s", msg)
	case http.StatusConflict:
		return fmt.Errorf("engine: conflict: %s", msg)
	default:
		return fmt.Errorf("engine: HTTP %d: %s", statusCode, msg)
	}
}

var _ domain.Engine = (*Client)(nil)
