package upstream

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

	"go.uber.org/zap"

	"kilnworks-backend/internal/firing"
	"kilnworks-backend/internal/model"
)

// Client is a firing.Backend backed by a remote studio service speaking
// authenticated HTTP+JSON. It never retries.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ firing.Backend = (*Client)(nil)

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ListKilns fetches GET /studios/{id}/kilns.
func (c *Client) ListKilns(ctx context.Context, studioID string) ([]model.Kiln, error) {
	var resp kilnList
	if err := c.do(ctx, http.MethodGet, c.studioPath(studioID, "kilns"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ListFirings fetches GET /studios/{id}/firings.
func (c *Client) ListFirings(ctx context.Context, studioID string) ([]model.Firing, error) {
	var resp firingList
	if err := c.do(ctx, http.MethodGet, c.studioPath(studioID, "firings"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CreateFiring posts to /studios/{id}/firings.
func (c *Client) CreateFiring(ctx context.Context, studioID string, f *model.Firing) (*model.Firing, error) {
	var resp firingItem
	if err := c.do(ctx, http.MethodPost, c.studioPath(studioID, "firings"), f, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UpdateFiring patches /studios/{id}/firings/{firingID}.
func (c *Client) UpdateFiring(ctx context.Context, studioID, firingID string, patch firing.FiringPatch) (*model.Firing, error) {
	var resp firingItem
	if err := c.do(ctx, http.MethodPatch, c.studioPath(studioID, "firings", firingID), patch, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UpdateKiln patches /studios/{id}/kilns/{kilnID}.
func (c *Client) UpdateKiln(ctx context.Context, studioID string, kilnID int64, patch firing.KilnPatch) (*model.Kiln, error) {
	var resp kilnItem
	if err := c.do(ctx, http.MethodPatch, c.studioPath(studioID, "kilns", fmt.Sprint(kilnID)), patch, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *Client) studioPath(studioID string, parts ...string) string {
	segs := []string{c.baseURL, "studios", url.PathEscape(studioID)}
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	return strings.Join(segs, "/")
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := firing.CredentialFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("upstream call",
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal api response: %w", err)
	}
	return nil
}

// statusError maps an upstream failure onto the lifecycle errors where the
// upstream says which one it is.
func statusError(status int, body []byte) error {
	var env ApiResponse[json.RawMessage]
	_ = json.Unmarshal(body, &env)

	var code, msg string
	if env.Error != nil {
		code, msg = env.Error.Code, env.Error.Message
	}

	switch {
	case status == http.StatusNotFound || code == CodeNotFound:
		return fmt.Errorf("upstream: %s: %w", msg, firing.ErrNotFound)
	case code == CodeKilnBusy:
		return fmt.Errorf("%w: %s", firing.ErrKilnBusy, msg)
	case code == CodeInvalidTransition:
		return fmt.Errorf("%w: %s", firing.ErrInvalidTransition, msg)
	}
	return fmt.Errorf("received non-2xx status code: %d %s", status, strings.TrimSpace(msg))
}
