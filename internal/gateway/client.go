// Package gateway implements courier.Gateway over the backend's REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperengineering/courier"
	"github.com/rs/zerolog"
)

const (
	userAgent      = "courier-client/1.0"
	headerDeviceID = "X-Courier-Device-ID"
	headerRequest  = "X-Request-ID"
	maxErrorBody   = 200
)

// HTTPClient implements courier.Gateway using net/http.
type HTTPClient struct {
	baseURL    string
	deviceID   string
	httpClient *http.Client
	log        zerolog.Logger
}

var _ courier.Gateway = (*HTTPClient)(nil)

// NewHTTPClient creates a backend client. deviceID is optional; if non-empty
// it is sent as X-Courier-Device-ID on every request. A non-positive timeout
// uses courier.DefaultRequestTimeout.
func NewHTTPClient(baseURL, deviceID string, timeout time.Duration, log zerolog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = courier.DefaultRequestTimeout
	}
	return &HTTPClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		deviceID: deviceID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("component", "gateway").Logger(),
	}
}

// WithHTTPClient sets a custom http.Client (for testing or custom transports).
func (c *HTTPClient) WithHTTPClient(client *http.Client) *HTTPClient {
	c.httpClient = client
	return c
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequest, uuid.NewString())
	if strings.TrimSpace(c.deviceID) != "" {
		req.Header.Set(headerDeviceID, c.deviceID)
	}
}

func newRejection(op string, statusCode int, body []byte) *courier.BackendRejection {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return &courier.BackendRejection{
		Operation:  op,
		StatusCode: statusCode,
		Message:    msg,
	}
}

// do sends one request and decodes a JSON response into out.
// Transport failures become *courier.TransportError; any non-2xx status or
// an undecodable body becomes *courier.BackendRejection.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &courier.TransportError{Operation: op, Err: err}
	}
	c.setHeaders(req)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("op", op).Str("method", method).Str("path", path).Msg("request failed")
		return &courier.TransportError{Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("request_id", req.Header.Get(headerRequest)).
		Dur("took", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return newRejection(op, resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &courier.BackendRejection{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    "malformed response: " + err.Error(),
		}
	}
	return nil
}

// SyncPreferences posts a batch of preference changes.
func (c *HTTPClient) SyncPreferences(ctx context.Context, req *courier.PreferenceSyncRequest) (*courier.PreferenceSyncResponse, error) {
	var result courier.PreferenceSyncResponse
	if err := c.do(ctx, "sync_preferences", http.MethodPost, "/preferences/sync", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchPreferences returns the backend's preference map for userID.
// Each value is decoded on its own: a null or non-scalar value comes back as
// the invalid Value instead of failing the whole response.
func (c *HTTPClient) FetchPreferences(ctx context.Context, userID int64) (map[string]courier.Value, error) {
	var raw map[string]json.RawMessage
	path := "/preferences/" + strconv.FormatInt(userID, 10)
	if err := c.do(ctx, "fetch_preferences", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	result := make(map[string]courier.Value, len(raw))
	for key, data := range raw {
		var v courier.Value
		if err := json.Unmarshal(data, &v); err != nil {
			c.log.Debug().Err(err).Str("key", key).Msg("undecodable preference value")
			v = courier.Value{}
		}
		result[key] = v
	}
	return result, nil
}

// PushHistory uploads one call or SMS record.
func (c *HTTPClient) PushHistory(ctx context.Context, rec *courier.HistoryRecord) (*courier.HistoryResponse, error) {
	var result courier.HistoryResponse
	if err := c.do(ctx, "push_history", http.MethodPost, "/history", rec, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck validates connectivity.
func (c *HTTPClient) HealthCheck(ctx context.Context) (*courier.BackendHealth, error) {
	var result courier.BackendHealth
	if err := c.do(ctx, "health_check", http.MethodGet, "/health", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
