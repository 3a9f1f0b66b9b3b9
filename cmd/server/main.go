package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"patungan/internal/config"
	"patungan/internal/middleware"
	"patungan/internal/observability"
	"patungan/internal/ocr"
	"patungan/internal/service"
	"patungan/internal/session"
	"patungan/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.IsProduction())

	store := session.NewStore()
	recognizer := ocr.NewClient(cfg.OCREndpoint, cfg.OCRTimeout)
	metrics := observability.NewMetrics()
	bills := service.NewBillService(store, recognizer, metrics, cfg.MaxUploadBytes)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORS)
	r.Use(metrics.Middleware)

	// Recognition uploads are the only expensive call; rate-limit them per IP.
	uploadLimiter := httprate.LimitByIP(cfg.UploadRateLimit, time.Minute)
	r.Mount("/api/sessions", bills.Routes(uploadLimiter))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// h2c allows HTTP/2 without TLS for clients that want multiplexing.
	handler := h2c.NewHandler(r, &http2.Server{})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      handler,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server starting", "address", cfg.AppAddr, "ocr_endpoint", cfg.OCREndpoint)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}
