package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	SignatureHeader = "X-Signature"
	TimestampHeader = "X-Timestamp"
	IDHeader        = "X-Webhook-Id"

	signaturePrefix = "sha256="
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("webhook signature mismatch")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside the allowed skew")
)

// HMACVerifier checks "sha256=<hex>" signatures over "<unix timestamp>.<body>".
type HMACVerifier struct {
	secret  []byte
	maxSkew time.Duration
	clock   clockwork.Clock
}

func NewHMACVerifier(secret string, maxSkew time.Duration, clock clockwork.Clock) *HMACVerifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxSkew <= 0 {
		maxSkew = 5 * time.Minute
	}
	return &HMACVerifier{secret: []byte(secret), maxSkew: maxSkew, clock: clock}
}

// Sign produces the header value a sender attaches for body at ts.
func Sign(secret string, ts int64, body []byte) string {
	return signaturePrefix + hex.EncodeToString(mac([]byte(secret), ts, body))
}

func mac(secret []byte, ts int64, body []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte("."))
	h.Write(body)
	return h.Sum(nil)
}

func (v *HMACVerifier) Verify(_ context.Context, r *http.Request, body []byte) error {
	sig := strings.TrimSpace(r.Header.Get(SignatureHeader))
	rawTS := strings.TrimSpace(r.Header.Get(TimestampHeader))
	if sig == "" || rawTS == "" {
		return ErrMissingSignature
	}
	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return ErrStaleTimestamp
	}
	skew := v.clock.Now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return ErrStaleTimestamp
	}
	got, err := hex.DecodeString(strings.TrimPrefix(sig, signaturePrefix))
	if err != nil || !hmac.Equal(got, mac(v.secret, ts, body)) {
		return ErrInvalidSignature
	}
	return nil
}
