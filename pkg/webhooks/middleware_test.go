package webhooks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "s3cret"

var epoch = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func signedRequest(t *testing.T, path, body string, ts time.Time, id string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "http://example.com"+path, bytes.NewBufferString(body))
	req.Header.Set(TimestampHeader, strconv.FormatInt(ts.Unix(), 10))
	req.Header.Set(SignatureHeader, Sign(secret, ts.Unix(), []byte(body)))
	if id != "" {
		req.Header.Set(IDHeader, id)
	}
	return req
}

func echoRouter(verifier SignatureVerifier, protector ReplayProtector, opts ...Option) *mux.Router {
	router := mux.NewRouter()
	sub := Bind(router, "/webhooks/v1", verifier, protector, opts...)
	sub.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(body)
	}).Methods(http.MethodPost)
	return router
}

func TestHMACVerifier(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	v := NewHMACVerifier(secret, 5*time.Minute, clock)
	body := []byte(`{"lead_id":"l-1"}`)

	t.Run("valid", func(t *testing.T) {
		req := signedRequest(t, "/x", string(body), epoch.Add(-time.Minute), "")
		assert.NoError(t, v.Verify(context.Background(), req, body))
	})

	t.Run("tampered body", func(t *testing.T) {
		req := signedRequest(t, "/x", string(body), epoch, "")
		assert.ErrorIs(t, v.Verify(context.Background(), req, []byte(`{"lead_id":"l-2"}`)), ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := signedRequest(t, "/x", string(body), epoch, "")
		other := NewHMACVerifier("other", time.Minute, clock)
		assert.ErrorIs(t, other.Verify(context.Background(), req, body), ErrInvalidSignature)
	})

	t.Run("stale", func(t *testing.T) {
		req := signedRequest(t, "/x", string(body), epoch.Add(-6*time.Minute), "")
		assert.ErrorIs(t, v.Verify(context.Background(), req, body), ErrStaleTimestamp)
	})

	t.Run("from the future", func(t *testing.T) {
		req := signedRequest(t, "/x", string(body), epoch.Add(6*time.Minute), "")
		assert.ErrorIs(t, v.Verify(context.Background(), req, body), ErrStaleTimestamp)
	})

	t.Run("missing headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		assert.ErrorIs(t, v.Verify(context.Background(), req, body), ErrMissingSignature)
	})
}

func TestMemoryReplayProtector_ExpiresAfterTTL(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	p := NewMemoryReplayProtector(time.Minute, clock)
	req := signedRequest(t, "/x", "{}", epoch, "evt-1")

	require.NoError(t, p.Check(context.Background(), req, []byte("{}")))
	require.ErrorIs(t, p.Check(context.Background(), req, []byte("{}")), ErrReplayDetected)

	clock.Advance(time.Minute)
	assert.NoError(t, p.Check(context.Background(), req, []byte("{}")))
}

func TestMemoryReplayProtector_FallsBackToBodyDigest(t *testing.T) {
	p := NewMemoryReplayProtector(time.Minute, clockwork.NewFakeClockAt(epoch))
	a := httptest.NewRequest(http.MethodPost, "/webhooks/v1/events", nil)

	require.NoError(t, p.Check(context.Background(), a, []byte(`{"n":1}`)))
	assert.ErrorIs(t, p.Check(context.Background(), a, []byte(`{"n":1}`)), ErrReplayDetected)
	assert.NoError(t, p.Check(context.Background(), a, []byte(`{"n":2}`)))

	b := httptest.NewRequest(http.MethodPost, "/webhooks/v1/messages", nil)
	assert.NoError(t, p.Check(context.Background(), b, []byte(`{"n":1}`)))
}

func TestRedisReplayProtector(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	p := NewRedisReplayProtector(client, "", time.Minute)
	req := signedRequest(t, "/x", "{}", epoch, "evt-9")

	require.NoError(t, p.Check(context.Background(), req, nil))
	require.ErrorIs(t, p.Check(context.Background(), req, nil), ErrReplayDetected)
	assert.True(t, mr.Exists("leadflow:webhooks:seen:id:evt-9"))

	mr.FastForward(time.Minute + time.Second)
	assert.NoError(t, p.Check(context.Background(), req, nil))
}

func TestMiddleware_AllowsAndRestoresBody(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	router := echoRouter(NewHMACVerifier(secret, time.Minute, clock), NewMemoryReplayProtector(time.Minute, clock))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, signedRequest(t, "/webhooks/v1/events", `{"type":"estimate_sent"}`, epoch, "evt-1"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"type":"estimate_sent"}`, rr.Body.String())
}

func TestMiddleware_DeniesInvalidSignature(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	router := echoRouter(NewHMACVerifier(secret, time.Minute, clock), NewMemoryReplayProtector(time.Minute, clock))

	req := signedRequest(t, "/webhooks/v1/events", "{}", epoch, "evt-1")
	req.Header.Set(SignatureHeader, "sha256=00")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "WEBHOOK_UNAUTHORIZED")
}

func TestMiddleware_DeniesReplay(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	router := echoRouter(NewHMACVerifier(secret, time.Minute, clock), NewMemoryReplayProtector(time.Minute, clock))

	first := httptest.NewRecorder()
	router.ServeHTTP(first, signedRequest(t, "/webhooks/v1/events", "{}", epoch, "evt-1"))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, signedRequest(t, "/webhooks/v1/events", "{}", epoch, "evt-1"))
	require.Equal(t, http.StatusConflict, second.Code)
}

type failingProtector struct{}

func (failingProtector) Check(context.Context, *http.Request, []byte) error {
	return errors.New("redis down")
}

func TestMiddleware_UnavailableWhenReplayCheckFails(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	router := echoRouter(NewHMACVerifier(secret, time.Minute, clock), failingProtector{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, signedRequest(t, "/webhooks/v1/events", "{}", epoch, "evt-1"))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMiddleware_RejectsOversizedBody(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	router := echoRouter(NewHMACVerifier(secret, time.Minute, clock), NewMemoryReplayProtector(time.Minute, clock), WithMaxBodyBytes(8))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, signedRequest(t, "/webhooks/v1/events", `{"too":"long"}`, epoch, "evt-1"))
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestMiddleware_DeniesWhenMisconfigured(t *testing.T) {
	router := echoRouter(nil, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, signedRequest(t, "/webhooks/v1/events", "{}", epoch, "evt-1"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
