package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-tracking/internal/cache"
	"github.com/noah-isme/backend-tracking/internal/common"
	"github.com/noah-isme/backend-tracking/internal/config"
	"github.com/noah-isme/backend-tracking/internal/fetch"
	"github.com/noah-isme/backend-tracking/internal/health"
	"github.com/noah-isme/backend-tracking/internal/obs"
	"github.com/noah-isme/backend-tracking/internal/provider"
	"github.com/noah-isme/backend-tracking/internal/ratelimit"
	"github.com/noah-isme/backend-tracking/internal/resilience"
	"github.com/noah-isme/backend-tracking/internal/router"
	"github.com/noah-isme/backend-tracking/internal/security"
	"github.com/noah-isme/backend-tracking/internal/tracking"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "tracking")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	httpMetrics := obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(envOrDefault("OBS_HTTP_BUCKETS_MS", "")), nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", false)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "tracking-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		if tracingEnabled {
			if err := redisotel.InstrumentTracing(redisClient); err != nil {
				logger.Error().Err(err).Msg("instrument redis tracing")
			}
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("ping redis")
		}
		cancel()
	}

	registry := buildRegistry(cfg, logger)
	if registry.Len() == 0 {
		logger.Fatal().Msg("no providers configured")
	}

	failures := router.NewFailureTracker(cfg.FailureQuiet)
	selector := router.NewSelector(registry.Profiles(), failures, logger)

	breakers := make(map[string]*resilience.Breaker, registry.Len())
	for _, profile := range registry.Profiles() {
		breakers[profile.ID] = resilience.NewBreaker(5, 0.6, 30*time.Second).
			WithProvider(profile.ID).
			WithLogger(logger)
	}

	envelope := &fetch.Envelope{
		Policy:   fetch.RetryPolicy{BaseDelay: cfg.RetryBaseDelay, CapDelay: cfg.RetryCapDelay},
		Breakers: breakers,
		Logger:   logger,
	}
	orchestrator := &fetch.Orchestrator{
		Registry: registry,
		Envelope: envelope,
		Router:   selector,
		Logger:   logger,
	}

	var store cache.Store
	if redisClient != nil {
		store = &cache.RedisStore{
			Client:     redisClient,
			Prefix:     "tracking:",
			MaxEntries: cfg.CacheMaxEntries,
			StaleFor:   cfg.CacheStaleFor,
		}
	} else {
		store = cache.NewMemoryStore(cfg.CacheMaxEntries)
	}

	svc := &tracking.Service{
		Store: store,
		TTL: cache.TTLPolicy{
			Terminal: cfg.CacheTTLTerminal,
			Transit:  cfg.CacheTTLTransit,
			Default:  cfg.CacheTTLDefault,
		},
		Selector:     selector,
		Orchestrator: orchestrator,
		Logger:       logger,
	}
	handler := &tracking.Handler{Svc: svc, Validate: validator.New()}

	healthHandler := health.Handler{Checker: readinessChecker{redis: redisClient, registry: registry}}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v chi.Router) {
		if redisClient != nil && cfg.RateLimitMax > 0 {
			limiter := ratelimit.Handler{
				Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "tracking:rl:"},
				Config: ratelimit.Config{
					Key:    func(r *http.Request) string { return common.ClientIP(r) },
					Window: cfg.RateLimitWindow,
					Max:    cfg.RateLimitMax,
				},
				OnError: func(err error) {
					logger.Error().Err(err).Msg("rate limiter unavailable")
				},
			}
			v.Use(limiter.Middleware)
		}
		v.Get("/track", handler.Get)
		v.With(security.BodyLimit{Max: 64 << 10}.Middleware).Post("/track/batch", handler.Batch)
		v.Delete("/track", handler.Invalidate)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Int("providers", registry.Len()).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// carrierProfiles declares the static provider metadata consumed once at
// startup. Registration order doubles as the merge tie-break order.
func carrierProfiles(timeout time.Duration) []provider.Profile {
	all := []provider.TrackingType{provider.TypeContainer, provider.TypeBooking, provider.TypeBOL}
	containerBooking := []provider.TrackingType{provider.TypeContainer, provider.TypeBooking}
	return []provider.Profile{
		{ID: "maersk", CostUnits: 10, BaseReliability: 0.95, SupportedTypes: all, Tier: provider.TierPrimary, Timeout: timeout},
		{ID: "msc", CostUnits: 8, BaseReliability: 0.90, SupportedTypes: containerBooking, Tier: provider.TierPrimary, Timeout: timeout},
		{ID: "cma-cgm", CostUnits: 8, BaseReliability: 0.88, SupportedTypes: all, Tier: provider.TierPrimary, Timeout: timeout},
		{ID: "hapag-lloyd", CostUnits: 9, BaseReliability: 0.90, SupportedTypes: containerBooking, Tier: provider.TierPrimary, Timeout: timeout},
		{ID: "one-line", CostUnits: 7, BaseReliability: 0.85, SupportedTypes: containerBooking, Tier: provider.TierPrimary, Timeout: timeout},
		{ID: "generic", CostUnits: 0, BaseReliability: 0.60, SupportedTypes: all, Tier: provider.TierAggregator, Timeout: timeout},
	}
}

// buildRegistry wires one adapter per configured carrier. Carriers with a
// PROVIDER_<ID>_URL env var get a live HTTP adapter; without any configured
// endpoint the service falls back to mock adapters for development.
func buildRegistry(cfg *config.Config, logger zerolog.Logger) *provider.Registry {
	registry := provider.NewRegistry()
	configured := 0
	for _, profile := range carrierProfiles(cfg.ProviderTimeout) {
		envKey := "PROVIDER_" + strings.ToUpper(strings.ReplaceAll(profile.ID, "-", "_"))
		baseURL := strings.TrimSpace(os.Getenv(envKey + "_URL"))
		if baseURL == "" {
			continue
		}
		apiKey := strings.TrimSpace(os.Getenv(envKey + "_KEY"))
		if err := registry.Register(provider.NewHTTPAdapter(profile, baseURL, apiKey)); err != nil {
			logger.Fatal().Err(err).Str("provider", profile.ID).Msg("register provider")
		}
		configured++
	}
	if configured > 0 {
		return registry
	}

	logger.Warn().Msg("no provider endpoints configured, falling back to mock adapters")
	for _, profile := range carrierProfiles(cfg.ProviderTimeout) {
		if err := registry.Register(&provider.Mock{Profile: profile}); err != nil {
			logger.Fatal().Err(err).Str("provider", profile.ID).Msg("register provider")
		}
	}
	return registry
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	redis    *redis.Client
	registry *provider.Registry
}

func (c readinessChecker) PingCache(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		// in-process cache has nothing to probe
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func (c readinessChecker) ProviderCount() int {
	if c.registry == nil {
		return 0
	}
	return c.registry.Len()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}
