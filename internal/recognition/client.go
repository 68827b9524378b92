package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/your-org/facegate/internal/observability"
)

// Backend classifications returned by Check.
const (
	TypeExisting = "existing"
	TypeNew      = "new"
)

// ErrBackendUnavailable covers transport errors, unreadable or malformed
// bodies and non-2xx responses that carry no error text.
var ErrBackendUnavailable = errors.New("recognition backend unavailable")

// BackendError is a response whose error field is populated, whatever its
// HTTP status. The backend rejected the request; it is not unreachable.
type BackendError struct {
	Op      string
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return e.Message
}

// Client is the recognition backend capability used by the gateway.
type Client interface {
	Check(ctx context.Context, req CheckRequest) (*CheckResponse, error)
	Enroll(ctx context.Context, req EnrollRequest) (*EnrollResponse, error)
}

type CheckRequest struct {
	Base64Image       string  `json:"base64Image"`
	TopK              int     `json:"topK"`
	Threshold         float64 `json:"threshold"`
	IncludeThumbnails bool    `json:"includeThumbnails"`
}

// Candidate is one scored comparison reported by the backend.
type Candidate struct {
	ExternalID string  `json:"externalId"`
	Score      float64 `json:"score"`
	Thumbnail  string  `json:"thumbnail,omitempty"`
}

type CheckResponse struct {
	Error     string      `json:"error,omitempty"`
	Type      string      `json:"type"`
	BestScore float64     `json:"bestScore"`
	Threshold float64     `json:"threshold"`
	Message   string      `json:"message,omitempty"`
	Matches   []Candidate `json:"matches"`
}

type EnrollRequest struct {
	Base64Image string `json:"base64Image"`
	ExternalID  string `json:"externalId"`
}

type EnrollResponse struct {
	Error      string    `json:"error,omitempty"`
	Message    string    `json:"message,omitempty"`
	ExternalID string    `json:"externalId"`
	Embedding  []float32 `json:"embedding"`
	Thumbnail  string    `json:"thumbnail,omitempty"`
	Count      *int      `json:"count,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Count  int    `json:"count"`
}

// HTTPClient talks JSON over HTTP to the recognition backend.
// It is safe for concurrent use and meant to be shared by the whole process.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Check(ctx context.Context, req CheckRequest) (*CheckResponse, error) {
	var resp CheckResponse
	if err := c.post(ctx, "check", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &BackendError{Op: "check", Status: http.StatusOK, Message: resp.Error}
	}
	if resp.Type != TypeExisting && resp.Type != TypeNew {
		return nil, fmt.Errorf("%w: check returned type %q", ErrBackendUnavailable, resp.Type)
	}
	return &resp, nil
}

func (c *HTTPClient) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResponse, error) {
	var resp EnrollResponse
	if err := c.post(ctx, "enroll", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &BackendError{Op: "enroll", Status: http.StatusOK, Message: resp.Error}
	}
	// The indexed token must be the one the local row will carry.
	if resp.ExternalID != "" && resp.ExternalID != req.ExternalID {
		return nil, fmt.Errorf("%w: enroll returned externalId %q, sent %q",
			ErrBackendUnavailable, resp.ExternalID, req.ExternalID)
	}
	return &resp, nil
}

// Health queries the backend liveness endpoint.
func (c *HTTPClient) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var resp HealthResponse
	if err := c.do(req, "health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping reports whether the backend answers its health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

func (c *HTTPClient) post(ctx context.Context, op string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+op, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, op, out)
}

func (c *HTTPClient) do(req *http.Request, op string, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		observability.BackendDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %w", ErrBackendUnavailable, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg := errorField(body); msg != "" {
			return &BackendError{Op: op, Status: resp.StatusCode, Message: msg}
		}
		return fmt.Errorf("%w: %s returned status %d: %s", ErrBackendUnavailable, op, resp.StatusCode, describeBody(body))
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%w: %s returned no data", ErrBackendUnavailable, op)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %w", ErrBackendUnavailable, op, err)
	}
	return nil
}

// errorField returns the backend's error text, or "" when body is not a
// JSON object carrying one.
func errorField(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Error)
}

// describeBody returns a bounded excerpt of a body for error messages.
func describeBody(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
