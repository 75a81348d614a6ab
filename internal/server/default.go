package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/iota-uz/leadflow/pkg/application"
	"github.com/iota-uz/leadflow/pkg/configuration"
	"github.com/iota-uz/leadflow/pkg/httpapi"
	"github.com/iota-uz/leadflow/pkg/middleware"
	"github.com/iota-uz/leadflow/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
}

func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	loggerOpts := middleware.DefaultLoggerOptions()
	loggerOpts.RequestIDHeader = conf.RequestIDHeader
	loggerOpts.RealIPHeader = conf.RealIPHeader

	middlewares := []mux.MiddlewareFunc{
		// creates the root span for each request
		middleware.WithLogger(options.Logger, loggerOpts),

		middleware.TracedMiddleware("cors"),
		middleware.Cors(conf.Origins()...),
	}

	if conf.RateLimit.Enabled {
		var store limiter.Store
		var err error

		switch conf.RateLimit.Storage {
		case "redis":
			store, err = middleware.NewRedisStore(conf.RateLimit.RedisURL)
			if err != nil {
				options.Logger.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
				store = middleware.NewMemoryStore()
			}
		default:
			store = middleware.NewMemoryStore()
		}

		middlewares = append(middlewares,
			middleware.TracedMiddleware("rateLimit"),
			middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerPeriod: conf.RateLimit.GlobalRPS,
				Period:            time.Second,
				Store:             store,
			}),
		)
	}

	app.RegisterMiddleware(middlewares...)

	return server.NewHTTPServer(app, http.HandlerFunc(notFound), http.HandlerFunc(methodNotAllowed)), nil
}

func notFound(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteError(w, http.StatusNotFound, httpapi.CodeNotFound, "route not found", map[string]string{"path": r.URL.Path})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, httpapi.CodeInvalidRequest, "method not allowed", map[string]string{
		"path":   r.URL.Path,
		"method": r.Method,
	})
}
