package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/courierhq/courier/internal/tlsutil"
)

// Registry client errors. The pool decides retry vs drop from these.
var (
	// ErrMessageNotFound means the registry has no row for the message.
	// The queue entry is an orphan and must be dropped.
	ErrMessageNotFound = errors.New("message not found")
	// ErrTerminalState means the message is already delivered or failed.
	ErrTerminalState = errors.New("message already in terminal state")
	// ErrRegistryUnavailable means the registry could not be reached or
	// answered with a server error. Worth retrying.
	ErrRegistryUnavailable = errors.New("registry unavailable")
)

// RegistryClient talks to the registry's internal surface on behalf of
// the workers.
type RegistryClient struct {
	baseURL string
	http    *http.Client
}

// NewRegistryClient creates a client for the registry internal API.
func NewRegistryClient(baseURL string, tlsCfg *tlsutil.ClientConfig, timeout time.Duration) (*RegistryClient, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsCfg != nil {
		cfg, err := tlsutil.NewClientTLSConfig(tlsCfg)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = cfg
	}

	return &RegistryClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

// Deliver confirms delivery of a message. Delivery is terminal: a second
// confirmation returns ErrTerminalState.
func (c *RegistryClient) Deliver(ctx context.Context, messageID, workerID string) error {
	path := fmt.Sprintf("/internal/messages/%s/deliver", messageID)
	resp, err := c.do(ctx, http.MethodPost, path, map[string]string{"worker_id": workerID})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrMessageNotFound
	case http.StatusConflict:
		return ErrTerminalState
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrRegistryUnavailable, resp.StatusCode)
	}
}

// UpdateStatus records a retry or a terminal failure for a message.
func (c *RegistryClient) UpdateStatus(ctx context.Context, messageID, status string, attemptCount int, lastError string) error {
	payload := map[string]any{
		"status":        status,
		"attempt_count": attemptCount,
	}
	if lastError != "" {
		payload["last_error"] = lastError
	}

	path := fmt.Sprintf("/internal/messages/%s/status", messageID)
	resp, err := c.do(ctx, http.MethodPatch, path, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrMessageNotFound
	case http.StatusConflict:
		return ErrTerminalState
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrRegistryUnavailable, resp.StatusCode)
	}
}

func (c *RegistryClient) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}
