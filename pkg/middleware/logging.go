package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/leadflow/pkg/composables"
	"github.com/iota-uz/leadflow/pkg/httpapi"
	"github.com/iota-uz/leadflow/pkg/phone"
)

type LoggerOptions struct {
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodyLength   int

	RequestIDHeader string
	RealIPHeader    string
	Repanic         bool
}

func NewLoggerOptions(logRequestBody bool, logResponseBody bool, maxBodyLength int) LoggerOptions {
	return LoggerOptions{
		LogRequestBody:  logRequestBody,
		LogResponseBody: logResponseBody,
		MaxBodyLength:   maxBodyLength,
	}
}

// DefaultLoggerOptions logs JSON bodies, which carry phone numbers and message text,
// only after redaction.
func DefaultLoggerOptions() LoggerOptions {
	return NewLoggerOptions(true, false, 512)
}

type responseCaptureWriter struct {
	http.ResponseWriter
	statusCode    int
	statusWritten bool
	body          *bytes.Buffer
}

func (w *responseCaptureWriter) WriteHeader(code int) {
	if !w.statusWritten {
		w.statusCode = code
		w.statusWritten = true
		w.ResponseWriter.WriteHeader(code)
	}
}

// Status returns the HTTP status code
func (w *responseCaptureWriter) Status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}

func (w *responseCaptureWriter) Write(b []byte) (int, error) {
	if !w.statusWritten {
		w.WriteHeader(http.StatusOK)
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseCaptureWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *responseCaptureWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}

func wrapResponseWriter(w http.ResponseWriter) *responseCaptureWriter {
	return &responseCaptureWriter{
		ResponseWriter: w,
		body:           &bytes.Buffer{},
	}
}

func headerOr(r *http.Request, name, fallback string) string {
	if name != "" {
		if v := r.Header.Get(name); v != "" {
			return v
		}
	}
	return fallback
}

var tracer = otel.Tracer("leadflow-middleware")

func TracedMiddleware(name string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(
				r.Context(),
				"middleware."+name,
				trace.WithAttributes(
					attribute.String("middleware.name", name),
					attribute.String("http.method", r.Method),
				),
			)
			defer span.End()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

var sensitiveKeys = map[string]bool{
	"phone":   true,
	"to":      true,
	"message": true,
	"text":    true,
	"email":   true,
}

// redact walks a decoded JSON value and masks fields that carry personal data.
func redact(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			s, isString := val.(string)
			switch {
			case !sensitiveKeys[strings.ToLower(k)]:
				t[k] = redact(val)
			case isString && (strings.EqualFold(k, "phone") || strings.EqualFold(k, "to")):
				t[k] = phone.Mask(s)
			case isString:
				t[k] = fmt.Sprintf("[%d chars]", len(s))
			}
		}
		return t
	case []interface{}:
		for i := range t {
			t[i] = redact(t[i])
		}
		return t
	default:
		return v
	}
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func WithLogger(logger *logrus.Logger, opts LoggerOptions) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				start := time.Now()
				requestID := headerOr(r, opts.RequestIDHeader, uuid.New().String())
				ip := headerOr(r, opts.RealIPHeader, r.RemoteAddr)

				fieldsLogger := logger.WithFields(logrus.Fields{
					"request-id": requestID,
					"path":       r.URL.Path,
					"method":     r.Method,
				})

				fieldsLogger.WithFields(logrus.Fields{
					"ip":         ip,
					"user-agent": r.UserAgent(),
				}).Info("request started")

				if opts.LogRequestBody && r.Body != nil && strings.Contains(r.Header.Get("Content-Type"), "application/json") {
					bodyBuf := new(bytes.Buffer)
					if _, err := io.Copy(bodyBuf, r.Body); err != nil {
						fieldsLogger.WithError(err).Error("failed to read request-body")
						_ = httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidRequest, "failed to read request body", nil)
						return
					}
					r.Body = io.NopCloser(bytes.NewReader(bodyBuf.Bytes()))
					var parsed interface{}
					if err := json.Unmarshal(bodyBuf.Bytes(), &parsed); err == nil {
						fieldsLogger.WithField("request-body", redact(parsed)).Info("JSON request-body parsed")
					} else {
						fieldsLogger.WithField("request-body", truncate(bodyBuf.String(), opts.MaxBodyLength)).Debug("unparsable request-body")
					}
				}

				propagator := propagation.TraceContext{}
				ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

				ctx, span := tracer.Start(
					ctx,
					"http.request",
					trace.WithAttributes(
						attribute.String("http.method", r.Method),
						attribute.String("http.route", r.URL.Path),
						attribute.String("http.user_agent", r.UserAgent()),
						attribute.String("http.request_id", requestID),
						attribute.String("net.peer.ip", ip),
					),
				)
				defer span.End()

				propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))

				if spanContext := span.SpanContext(); spanContext.HasTraceID() {
					traceID := spanContext.TraceID().String()
					w.Header().Set("X-Trace-Id", traceID)
					fieldsLogger = fieldsLogger.WithField("trace-id", traceID)
				}
				w.Header().Set("X-Request-Id", requestID)

				ctx = composables.WithLogger(ctx, fieldsLogger)
				ctx = composables.WithRequestStart(ctx, start)
				wrappedWriter := wrapResponseWriter(w)
				ctx = composables.WithParams(ctx, &composables.Params{
					IP:        ip,
					UserAgent: r.UserAgent(),
					RequestID: requestID,
					Request:   r,
					Writer:    wrappedWriter,
				})

				// Recover from panics, log them with full context, and return a stable response.
				defer func() {
					if recovered := recover(); recovered != nil {
						fieldsLogger.WithFields(logrus.Fields{
							"panic":    recovered,
							"stack":    string(debug.Stack()),
							"status":   http.StatusInternalServerError,
							"duration": time.Since(start),
						}).Error("panic recovered in request handler")

						if !wrappedWriter.statusWritten {
							_ = httpapi.WriteError(wrappedWriter, http.StatusInternalServerError, httpapi.CodeInternal, "internal server error", map[string]string{
								"request_id": requestID,
								"path":       r.URL.Path,
							})
						}

						if opts.Repanic {
							panic(recovered)
						}
					}
				}()

				next.ServeHTTP(wrappedWriter, r.WithContext(ctx))

				statusCode := wrappedWriter.Status()
				duration := time.Since(start)
				fieldsLogger.WithFields(logrus.Fields{
					"duration":     duration,
					"completed":    true,
					"status-code":  statusCode,
					"status-class": statusCode / 100,
				}).Info("request completed")

				span.SetAttributes(
					attribute.Int64("http.request_duration_ms", duration.Milliseconds()),
					attribute.Int("http.status_code", statusCode),
				)

				if opts.LogResponseBody && strings.Contains(wrappedWriter.Header().Get("Content-Type"), "application/json") {
					var parsed interface{}
					if err := json.Unmarshal(wrappedWriter.body.Bytes(), &parsed); err == nil {
						fieldsLogger.WithField("response-body", redact(parsed)).Info("JSON response-body parsed")
					}
				}
			},
		)
	}
}
