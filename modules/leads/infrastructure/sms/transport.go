package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iota-uz/leadflow/pkg/phone"
)

const DefaultTimeout = 10 * time.Second

type ErrorKind string

const (
	KindTimeout  ErrorKind = "timeout"
	KindHTTP     ErrorKind = "http"
	KindParse    ErrorKind = "parse"
	KindRejected ErrorKind = "rejected"
)

// TransportError classifies a failed gateway call. Gateway text carried in Err has phone
// numbers masked.
type TransportError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sms transport %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("sms transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Message struct {
	To       string            `json:"to"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type gatewayResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Transport interface {
	// Send dispatches msg and returns the gateway message id.
	Send(ctx context.Context, msg Message) (string, error)
}

type HTTPTransport struct {
	url     string
	token   string
	timeout time.Duration
	client  *http.Client
}

func NewHTTPTransport(url, token string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPTransport{
		url:     url,
		token:   token,
		timeout: timeout,
		client:  &http.Client{},
	}
}

func (t *HTTPTransport) Send(ctx context.Context, msg Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body, err := json.Marshal(msg)
	if err != nil {
		return "", &TransportError{Kind: KindParse, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Kind: KindHTTP, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &TransportError{Kind: KindTimeout, Err: err}
		}
		return "", &TransportError{Kind: KindHTTP, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &TransportError{Kind: KindTimeout, Err: err}
		}
		return "", &TransportError{Kind: KindHTTP, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransportError{Kind: KindHTTP, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", phone.Redact(string(bytes.TrimSpace(raw))))}
	}

	var out gatewayResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &TransportError{Kind: KindParse, StatusCode: resp.StatusCode, Err: err}
	}
	if !out.Success {
		reason := phone.Redact(out.Error)
		if reason == "" {
			reason = "gateway reported failure"
		}
		return "", &TransportError{Kind: KindRejected, StatusCode: resp.StatusCode, Err: errors.New(reason)}
	}
	return out.MessageID, nil
}
