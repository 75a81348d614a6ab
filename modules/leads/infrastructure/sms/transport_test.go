package sms_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/leadflow/modules/leads/infrastructure/sms"
)

func TestHTTPTransport_Send(t *testing.T) {
	t.Parallel()
	var got sms.Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"messageId":"msg-42"}`))
	}))
	t.Cleanup(srv.Close)

	transport := sms.NewHTTPTransport(srv.URL, "secret", time.Second)
	id, err := transport.Send(context.Background(), sms.Message{
		To:       "+15551234567",
		Message:  "hello",
		Metadata: map[string]string{"leadId": "lead-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "msg-42", id)
	assert.Equal(t, "+15551234567", got.To)
	assert.Equal(t, "lead-1", got.Metadata["leadId"])
}

func TestHTTPTransport_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    sms.ErrorKind
		status  int
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
			kind:   sms.KindHTTP,
			status: http.StatusBadGateway,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"success":`))
			},
			kind:   sms.KindParse,
			status: http.StatusOK,
		},
		{
			name: "rejected",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"success":false,"error":"blocked number"}`))
			},
			kind:   sms.KindRejected,
			status: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			t.Cleanup(srv.Close)

			_, err := sms.NewHTTPTransport(srv.URL, "", time.Second).Send(context.Background(), sms.Message{To: "+15551234567", Message: "hi"})

			var terr *sms.TransportError
			require.True(t, errors.As(err, &terr), "got %v", err)
			assert.Equal(t, tt.kind, terr.Kind)
			assert.Equal(t, tt.status, terr.StatusCode)
		})
	}
}

func TestHTTPTransport_Timeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	_, err := sms.NewHTTPTransport(srv.URL, "", 50*time.Millisecond).Send(context.Background(), sms.Message{To: "+15551234567", Message: "hi"})

	var terr *sms.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, sms.KindTimeout, terr.Kind)
}

func TestHTTPTransport_ErrorsMaskNumbers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    sms.ErrorKind
	}{
		{
			name: "non-2xx body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"number +15551234567 is not reachable"}`))
			},
			kind: sms.KindHTTP,
		},
		{
			name: "rejected reason",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"success":false,"error":"5551234567 opted out"}`))
			},
			kind: sms.KindRejected,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			t.Cleanup(srv.Close)

			_, err := sms.NewHTTPTransport(srv.URL, "", time.Second).Send(context.Background(), sms.Message{To: "+15551234567", Message: "hi"})
			var terr *sms.TransportError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, tc.kind, terr.Kind)
			assert.NotContains(t, err.Error(), "5551234567")
			assert.Contains(t, err.Error(), "4567")
		})
	}
}
