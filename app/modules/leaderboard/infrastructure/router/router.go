package leaderboardrouter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	leaderboardhandlers "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/handlers"
	"github.com/thpsrun/website-sub000/app/observability/attr"
)

const (
	TestEnvironmentFlag  = "APP_ENV"
	TestEnvironmentValue = "test"

	shutdownTimeout = 10 * time.Second
)

// LeaderboardRouter serves the read API, health and metrics endpoints.
type LeaderboardRouter struct {
	logger             *slog.Logger
	Router             *chi.Mux
	tracer             trace.Tracer
	prometheusRegistry *prometheus.Registry
	requestDuration    *prometheus.HistogramVec
	limiter            *leaderboardhandlers.ClientRateLimiter
	metricsEnabled     bool
}

// NewLeaderboardRouter creates a new instance of the router. Request metrics
// are registered unless running under APP_ENV=test.
func NewLeaderboardRouter(
	logger *slog.Logger,
	tracer trace.Tracer,
	prometheusRegistry *prometheus.Registry,
) *LeaderboardRouter {
	inTestEnv := os.Getenv(TestEnvironmentFlag) == TestEnvironmentValue
	metricsEnabled := prometheusRegistry != nil && !inTestEnv

	var requestDuration *prometheus.HistogramVec
	if metricsEnabled {
		requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "srl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"})
		prometheusRegistry.MustRegister(requestDuration)
	}

	return &LeaderboardRouter{
		logger:             logger,
		Router:             chi.NewRouter(),
		tracer:             tracer,
		prometheusRegistry: prometheusRegistry,
		requestDuration:    requestDuration,
		limiter:            leaderboardhandlers.NewClientRateLimiter(rate.Limit(10), 20),
		metricsEnabled:     metricsEnabled,
	}
}

// Configure sets up the middlewares and registers every route.
func (r *LeaderboardRouter) Configure(ctx context.Context, handlers leaderboardhandlers.Handlers) error {
	r.Router.Use(
		middleware.RequestID,
		middleware.RealIP,
		r.traceRequests,
		middleware.Recoverer,
	)
	if r.metricsEnabled {
		r.logger.InfoContext(ctx, "Adding Prometheus request metrics middleware")
		r.Router.Use(r.measureRequests)
	}

	r.Router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	if r.prometheusRegistry != nil {
		r.Router.Handle("/metrics", promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{}))
	}

	return r.RegisterHandlers(ctx, handlers)
}

// RegisterHandlers binds the read API routes.
func (r *LeaderboardRouter) RegisterHandlers(ctx context.Context, handlers leaderboardhandlers.Handlers) error {
	r.logger.InfoContext(ctx, "Registering run history HTTP handlers")

	r.Router.Group(func(api chi.Router) {
		api.Use(leaderboardhandlers.RateLimitMiddleware(r.limiter))

		api.Get("/runs/{runID}/history", handlers.HandleRunHistory)
		api.Get("/runs/{runID}/history.png", handlers.HandleRunHistoryChart)
		api.Get("/leaderboards", handlers.HandleListLeaderboards)
		api.Get("/games/{game}/history.xlsx", handlers.HandleExportGame)
	})
	return nil
}

func (r *LeaderboardRouter) traceRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx, span := r.tracer.Start(req.Context(), req.Method+" "+req.URL.Path, trace.WithAttributes(
			attribute.String("http.method", req.Method),
		))
		defer span.End()
		ctx = attr.WithCorrelationID(ctx, middleware.GetReqID(req.Context()))
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func (r *LeaderboardRouter) measureRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		r.requestDuration.WithLabelValues(route, strconv.Itoa(ww.Status())).Observe(time.Since(start).Seconds())
	})
}

// Run serves HTTP on addr until ctx is canceled, then shuts down gracefully.
func (r *LeaderboardRouter) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.InfoContext(ctx, "HTTP server listening", attr.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Close is a no-op; Run owns the server lifecycle.
func (r *LeaderboardRouter) Close() error {
	return nil
}
