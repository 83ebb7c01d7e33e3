package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"airquality-go/internal/analysis"
	"airquality-go/internal/api"
	"airquality-go/internal/config"
	"airquality-go/internal/logging"
	"airquality-go/internal/metrics"
	"airquality-go/internal/service"
	"airquality-go/internal/state"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stderr,
	})

	dashCfg, err := service.NewDashboardConfig(cfg.Analysis)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid analysis configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load the dataset; a missing or malformed table is fatal
	snap, err := analysis.Load(ctx, cfg.Data)
	if err != nil {
		var loadErr *analysis.LoadError
		if errors.As(err, &loadErr) {
			logging.Fatal().Err(err).Str("source", loadErr.Source).Int("line", loadErr.Line).Msg("Failed to load dataset")
		}
		logging.Fatal().Err(err).Msg("Failed to load dataset")
	}
	store := state.NewStore(snap)
	metrics.DatasetRows.Set(float64(snap.Table.Len()))

	// Initialize Handler
	handler := api.NewHandler(store, service.NewDashboard(dashCfg), analysis.NewCSVService(), cfg.Server)

	// Router Setup
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger)
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)

	// CORS - Allow frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.Server.RateLimitReqs > 0 && cfg.Server.RateLimitWindow > 0 {
		r.Use(httprate.LimitByIP(cfg.Server.RateLimitReqs, cfg.Server.RateLimitWindow))
	}

	// Root endpoint
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Air Quality Backend is Running"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Register all API Routes
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	logging.Info().
		Str("addr", cfg.Addr()).
		Strs("cors_origins", cfg.Server.CORSOrigins).
		Str("upload_dir", cfg.Server.UploadDir).
		Str("dataset", snap.Source).
		Int("decomposition_period", dashCfg.Period).
		Msg("Starting air quality backend")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal().Err(err).Msg("Server failed to start")
	}
	logging.Info().Msg("Server stopped")
}
