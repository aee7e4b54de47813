package client

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

	"github.com/Agentopians/WeAi/pkg/common/types"
)

const maxErrorBody = 4 << 10

// StatusError is a non-200 reply from the aggregator.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("aggregator returned %d", e.StatusCode)
	}
	return fmt.Sprintf("aggregator returned %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the same request may succeed later. A 404
// means the task has not been initialized on the aggregator yet.
func (e *StatusError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusNotFound,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// IsRetryable classifies a SubmitSignature error. Transport errors are
// retryable, rejections by status depend on the code, context errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

type Config struct {
	// BaseURL of the aggregator, e.g. http://localhost:8090
	BaseURL string
	// Timeout bounds a single request
	Timeout time.Duration
	// HTTPClient is optional
	HTTPClient *http.Client
}

// Client posts signed attestations to the aggregator's intake endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[AggregatorClient] config is nil")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("[AggregatorClient] aggregator url is empty")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{endpoint: base + "/signature", http: hc}, nil
}

// SubmitSignature delivers one signed verdict.
func (c *Client) SubmitSignature(ctx context.Context, req *types.SignatureRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("[AggregatorClient] failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("[AggregatorClient] failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("[AggregatorClient] failed to post signature: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("[AggregatorClient] failed to read response: %w", err)
	}

	var out types.SignatureResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if !out.Success {
		return &StatusError{StatusCode: resp.StatusCode, Message: "aggregator did not report success"}
	}
	return nil
}
