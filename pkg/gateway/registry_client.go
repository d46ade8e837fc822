package gateway

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

// Registry client errors. The handler maps these onto wire responses.
var (
	// ErrDuplicateMessage means the message_id is already registered.
	ErrDuplicateMessage = errors.New("message already registered")
	// ErrRegistryUnavailable means the registry could not be reached or
	// answered with a server error.
	ErrRegistryUnavailable = errors.New("registry unavailable")
)

// RegistryClient talks to the registry's internal surface.
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

// registerMessagePayload mirrors the registry's RegisterMessageRequest.
type registerMessagePayload struct {
	MessageID    string `json:"message_id"`
	ClientID     string `json:"client_id"`
	SenderNumber string `json:"sender_number"`
	MessageBody  string `json:"message_body"`
	Domain       string `json:"domain,omitempty"`
}

// RegisterMessage creates the durable registry row for a message. Must
// succeed before the message is enqueued.
func (c *RegistryClient) RegisterMessage(ctx context.Context, messageID, clientID, senderNumber, body, domain string) error {
	payload := registerMessagePayload{
		MessageID:    messageID,
		ClientID:     clientID,
		SenderNumber: senderNumber,
		MessageBody:  body,
		Domain:       domain,
	}

	resp, err := c.post(ctx, "/internal/messages", payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		return ErrDuplicateMessage
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrRegistryUnavailable, resp.StatusCode)
	}
}

// ClientValidation is the registry's verdict on a client identity.
type ClientValidation struct {
	Valid  bool   `json:"valid"`
	Status string `json:"status,omitempty"`
	Domain string `json:"domain,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ValidateClient asks the registry whether the client may submit traffic.
// Revocations recorded in the registry take effect here immediately, well
// before the client's certificate expires.
func (c *RegistryClient) ValidateClient(ctx context.Context, clientID, fingerprint, sourceIP string, headerIdentity bool) (*ClientValidation, error) {
	payload := map[string]any{
		"client_id":       clientID,
		"fingerprint":     fingerprint,
		"source_ip":       sourceIP,
		"header_identity": headerIdentity,
	}

	resp, err := c.post(ctx, "/internal/clients/validate", payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRegistryUnavailable, resp.StatusCode)
	}

	var verdict ClientValidation
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	return &verdict, nil
}

func (c *RegistryClient) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}
