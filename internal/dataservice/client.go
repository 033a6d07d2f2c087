package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/petra184/mobile-app-sub002/internal/model"
)

// TokenSource returns the bearer token for the current session, or "".
type TokenSource func() string

// Client talks to the data service over HTTP+JSON.
type Client struct {
	baseURL    string
	token      TokenSource
	httpClient *http.Client
}

// NewClient creates a Client rooted at baseURL. token may be nil for
// unauthenticated calls such as IssueToken.
func NewClient(baseURL string, token TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type pointsRequest struct {
	Delta     int                   `json:"delta"`
	Direction model.PointsDirection `json:"direction"`
}

type tokenRequest struct {
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func userPath(userID, suffix string) string {
	return "/v1/users/" + url.PathEscape(userID) + suffix
}

func (c *Client) FetchProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	if err := c.do(ctx, "fetch profile", http.MethodGet, userPath(userID, "/profile"), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ApplyPointsDelta(ctx context.Context, userID string, delta int, direction model.PointsDirection) error {
	req := pointsRequest{Delta: delta, Direction: direction}
	return c.do(ctx, "apply points delta", http.MethodPost, userPath(userID, "/points"), req, nil)
}

func (c *Client) FetchPreferences(ctx context.Context, userID string) (model.Preferences, error) {
	var p model.Preferences
	if err := c.do(ctx, "fetch preferences", http.MethodGet, userPath(userID, "/preferences"), nil, &p); err != nil {
		return model.Preferences{}, err
	}
	return p, nil
}

func (c *Client) PersistPreferences(ctx context.Context, userID string, prefs model.Preferences) error {
	return c.do(ctx, "persist preferences", http.MethodPut, userPath(userID, "/preferences"), prefs, nil)
}

func (c *Client) FetchScanHistory(ctx context.Context, userID string) ([]model.ScanEntry, error) {
	var entries []model.ScanEntry
	if err := c.do(ctx, "fetch scan history", http.MethodGet, userPath(userID, "/scans"), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) AppendScan(ctx context.Context, userID string, scan model.ScanEntry) error {
	return c.do(ctx, "append scan", http.MethodPost, userPath(userID, "/scans"), scan, nil)
}

// IssueToken exchanges an email for an access token. The twin server signs
// tokens for any address; a production backend sits behind its own auth flow.
func (c *Client) IssueToken(ctx context.Context, email string) (string, error) {
	var resp tokenResponse
	if err := c.do(ctx, "issue token", http.MethodPost, "/v1/auth/token", tokenRequest{Email: email}, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("issue token: empty access token")
	}
	return resp.AccessToken, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case resp.StatusCode >= 400:
		var er errorResponse
		json.NewDecoder(resp.Body).Decode(&er)
		return &StatusError{Op: op, Status: resp.StatusCode, Message: er.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
