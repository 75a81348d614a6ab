package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/lead"
	"github.com/iota-uz/leadflow/pkg/composables"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint64
	// InitialInterval is the first retry delay; doubled on every attempt.
	InitialInterval time.Duration
}

// HTTPClient talks to a JSON CRM API:
//
//	POST /contacts               {lead fields}  -> {"id": "..."}
//	POST /contacts/{id}/status   {"status": ..}
//	POST /contacts/{id}/notes    {"text": ..}
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	config  Config
	client  *http.Client
}

func NewHTTPClient(config Config) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("invalid CRM base url %q", config.BaseURL)
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.InitialInterval <= 0 {
		config.InitialInterval = 500 * time.Millisecond
	}
	return &HTTPClient{
		baseURL: base,
		apiKey:  config.APIKey,
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
	}, nil
}

type contactPayload struct {
	ExternalID      string `json:"externalId"`
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	City            string `json:"city,omitempty"`
	ServiceInterest string `json:"serviceInterest,omitempty"`
	ProjectDetails  string `json:"projectDetails,omitempty"`
	Timeline        string `json:"timeline,omitempty"`
	Status          string `json:"status"`
	Temperature     string `json:"temperature,omitempty"`
	Source          string `json:"source,omitempty"`
	TextingConsent  bool   `json:"textingConsent"`
}

type contactResponse struct {
	ID string `json:"id"`
}

func (c *HTTPClient) UpsertContact(ctx context.Context, l lead.Lead) (string, error) {
	payload := contactPayload{
		ExternalID:      l.ID,
		Name:            l.Name,
		Email:           l.Email,
		Phone:           l.Phone,
		City:            l.City,
		ServiceInterest: l.ServiceInterest,
		ProjectDetails:  l.ProjectDetails,
		Timeline:        l.Timeline,
		Status:          string(l.Status),
		Temperature:     string(l.Temperature),
		Source:          l.Source,
		TextingConsent:  l.TextingConsent,
	}
	var out contactResponse
	if err := c.do(ctx, payload, &out, "contacts"); err != nil {
		return "", errors.Wrap(err, "upsert contact")
	}
	if out.ID == "" {
		return "", errors.New("upsert contact: empty contact id in response")
	}
	return out.ID, nil
}

func (c *HTTPClient) UpdateStatus(ctx context.Context, contactID string, status lead.Status) error {
	if err := c.do(ctx, map[string]string{"status": string(status)}, nil, "contacts", contactID, "status"); err != nil {
		return errors.Wrap(err, "update status")
	}
	return nil
}

func (c *HTTPClient) AddNote(ctx context.Context, contactID, text string) error {
	if err := c.do(ctx, map[string]string{"text": text}, nil, "contacts", contactID, "notes"); err != nil {
		return errors.Wrap(err, "add note")
	}
	return nil
}

// do POSTs payload with exponential backoff. 4xx responses other than 429 are not retried.
func (c *HTTPClient) do(ctx context.Context, payload, out any, elem ...string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return backoff.Permanent(err)
	}
	endpoint := c.baseURL.JoinPath(elem...)
	path := endpoint.Path
	logger := composables.UseLogger(ctx)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.config.InitialInterval
	var b backoff.BackOff = policy
	b = backoff.WithMaxRetries(b, c.config.MaxRetries)
	b = backoff.WithContext(b, ctx)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return errors.Errorf("crm responded %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(errors.Errorf("crm responded %d: %s", resp.StatusCode, bytes.TrimSpace(raw)))
		}
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return backoff.Permanent(errors.Wrap(err, "decode crm response"))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.WithFields(logrus.Fields{
			"path":  path,
			"retry": wait,
		}).WithError(err).Warn("crm call failed, retrying")
	}
	return backoff.RetryNotify(operation, b, notify)
}
