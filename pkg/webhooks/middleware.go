package webhooks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/iota-uz/leadflow/pkg/composables"
	"github.com/iota-uz/leadflow/pkg/httpapi"
)

type SignatureVerifier interface {
	Verify(ctx context.Context, r *http.Request, body []byte) error
}

type ReplayProtector interface {
	Check(ctx context.Context, r *http.Request, body []byte) error
}

var ErrReplayDetected = errors.New("webhook replay detected")

var errBodyTooLarge = errors.New("webhook payload too large")

type Option func(*options)

type options struct {
	MaxBodyBytes int64
}

func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		o.MaxBodyBytes = n
	}
}

// Bind mounts a subrouter under prefix whose routes require a valid signature and
// a delivery that has not been seen before.
func Bind(router *mux.Router, prefix string, verifier SignatureVerifier, protector ReplayProtector, opts ...Option) *mux.Router {
	if router == nil {
		return nil
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "/webhooks"
	}
	sub := router.PathPrefix(prefix).Subrouter()
	sub.Use(Middleware(verifier, protector, opts...))
	return sub
}

func Middleware(verifier SignatureVerifier, protector ReplayProtector, opts ...Option) mux.MiddlewareFunc {
	resolved := &options{MaxBodyBytes: httpapi.DefaultMaxBodyBytes}
	for _, opt := range opts {
		if opt != nil {
			opt(resolved)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := composables.UseLogger(r.Context())
			if verifier == nil || protector == nil {
				logger.Error("webhook route mounted without verifier or replay protector")
				_ = httpapi.WriteError(w, http.StatusInternalServerError, "WEBHOOK_MISCONFIGURED", "webhook middleware misconfigured", nil)
				return
			}

			body, err := readAndRestoreBody(r, resolved.MaxBodyBytes)
			if err != nil {
				status := http.StatusBadRequest
				code := "WEBHOOK_BAD_REQUEST"
				if errors.Is(err, errBodyTooLarge) {
					status = http.StatusRequestEntityTooLarge
					code = "WEBHOOK_PAYLOAD_TOO_LARGE"
				}
				_ = httpapi.WriteError(w, status, code, "invalid webhook payload", map[string]string{"error": err.Error()})
				return
			}

			if err := verifier.Verify(r.Context(), r, body); err != nil {
				logger.WithError(err).Warn("webhook signature rejected")
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "WEBHOOK_UNAUTHORIZED", "invalid webhook signature", map[string]string{"error": err.Error()})
				return
			}

			if err := protector.Check(r.Context(), r, body); err != nil {
				if errors.Is(err, ErrReplayDetected) {
					logger.Info("webhook replay dropped")
					_ = httpapi.WriteError(w, http.StatusConflict, "WEBHOOK_REPLAY", "webhook replay detected", nil)
					return
				}
				logger.WithError(err).Error("webhook replay check failed")
				_ = httpapi.WriteError(w, http.StatusServiceUnavailable, "WEBHOOK_UNAVAILABLE", "webhook replay check failed", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func readAndRestoreBody(r *http.Request, maxBytes int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, errBodyTooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}
