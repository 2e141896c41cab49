// Package remote talks to the spot backend over its JSON API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jengzang/spotmap-go/internal/models"
)

// ErrUnauthorized is returned when the backend rejects the session
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-2xx answer from the backend
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
}

// envelope mirrors pkg/response.Response
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client is a backend client that carries the current session token
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the backend at baseURL. Timeouts are left
// to the caller's context.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// SetToken installs a session token, e.g. one restored from the device cache
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current session token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// ListPublicSpots fetches the full public collection
func (c *Client) ListPublicSpots(ctx context.Context) ([]models.Spot, error) {
	var rows []models.PublicSpot
	if err := c.do(ctx, http.MethodGet, "/api/v1/spots/public", nil, false, &rows); err != nil {
		return nil, err
	}

	spots := make([]models.Spot, 0, len(rows))
	for _, row := range rows {
		spots = append(spots, row.ToSpot())
	}
	return spots, nil
}

// InsertPublicSpot publishes a spot under the current session
func (c *Client) InsertPublicSpot(ctx context.Context, spot models.Spot) error {
	lat, lon := spot.Latitude, spot.Longitude
	body := models.PublicSpotInput{
		Name:        spot.Name,
		Description: spot.Description,
		Latitude:    &lat,
		Longitude:   &lon,
		Type:        spot.Type,
	}
	return c.do(ctx, http.MethodPost, "/api/v1/spots/public", body, true, nil)
}

// UpsertUser signs the email in, keeps the returned token and returns the session
func (c *Client) UpsertUser(ctx context.Context, email string) (models.Session, error) {
	var session models.Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/session", map[string]string{"email": email}, false, &session); err != nil {
		return models.Session{}, err
	}
	c.SetToken(session.Token)
	return session, nil
}

// SessionUser returns the email of the current session. ok is false when
// there is no token or the backend no longer accepts it.
func (c *Client) SessionUser(ctx context.Context) (email string, ok bool, err error) {
	if c.Token() == "" {
		return "", false, nil
	}

	var me struct {
		Email string `json:"email"`
	}
	err = c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, true, &me)
	if errors.Is(err, ErrUnauthorized) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return me.Email, me.Email != "", nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, authenticated bool, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		token := c.Token()
		if token == "" {
			return fmt.Errorf("%s %s: %w: no session", method, path, ErrUnauthorized)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("backend error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", env.Message))
		statusErr := &StatusError{Code: resp.StatusCode, Message: env.Message}
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%s %s: %w: %v", method, path, ErrUnauthorized, statusErr)
		}
		return fmt.Errorf("%s %s: %w", method, path, statusErr)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: failed to decode data: %w", method, path, err)
		}
	}
	return nil
}
