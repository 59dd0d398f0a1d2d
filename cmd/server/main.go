package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacobkus/intelligent-hr-assistant/internal/chat"
	"github.com/jacobkus/intelligent-hr-assistant/internal/config"
	"github.com/jacobkus/intelligent-hr-assistant/internal/embedder"
	"github.com/jacobkus/intelligent-hr-assistant/internal/llm"
	"github.com/jacobkus/intelligent-hr-assistant/internal/metrics"
	"github.com/jacobkus/intelligent-hr-assistant/internal/middleware"
	"github.com/jacobkus/intelligent-hr-assistant/internal/retrieval"
	"github.com/jacobkus/intelligent-hr-assistant/internal/router"
	"github.com/jacobkus/intelligent-hr-assistant/internal/vectorstore"
)

const Version = "0.1.0"

// exit codes per the documented operational contract: 0 normal shutdown,
// 1 configuration or startup-dependency failure, 2 listener bind failure.
const (
	exitOK          = 0
	exitConfigError = 1
	exitBindFailure = 2
)

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		return exitConfigError
	}
	configureLogging(cfg.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := vectorstore.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		slog.Error("failed to connect to vector store", "err", err)
		return exitConfigError
	}
	defer pool.Close()
	store := vectorstore.New(pool)

	embedAdapter, err := embedder.New(ctx, cfg.GCPProject, cfg.GCPLocation, cfg.EmbeddingModel)
	if err != nil {
		slog.Error("failed to initialize embedder", "err", err)
		return exitConfigError
	}

	llmAdapter, err := llm.New(ctx, cfg.GCPProject, cfg.GCPLocation, cfg.LLMModel)
	if err != nil {
		slog.Error("failed to initialize language model client", "err", err)
		return exitConfigError
	}
	defer llmAdapter.Close()

	retrievalSvc := retrieval.New(embedAdapter, store)
	orchestrator := chat.New(retrievalSvc, llmAdapter)

	metricsReg := metrics.NewRegistry()
	promReg := prometheus.NewRegistry()
	promMetrics := middleware.NewMetrics(promReg)

	r := router.New(&router.Dependencies{
		Store:          store,
		Extensions:     store,
		Embedder:       embedAdapter,
		RetrievalSvc:   retrievalSvc,
		Orchestrator:   orchestrator,
		MetricsReg:     metricsReg,
		PromReg:        promReg,
		PromMetrics:    promMetrics,
		AllowedOrigins: cfg.AllowedOrigins,
		APISecretToken: cfg.APISecretToken,
		RateLimiter:    middleware.NewRateLimiter(),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: middleware.LLMStreamingIdleTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := listen(srv.Addr)
	if err != nil {
		slog.Error("failed to bind listener", "addr", srv.Addr, "err", err)
		return exitBindFailure
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("intelligent-hr-assistant starting", "version", Version, "addr", srv.Addr, "environment", cfg.Environment)
		if serveErr := srv.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received signal, shutting down gracefully", "signal", sig.String())
	case serveErr := <-errCh:
		slog.Error("server error", "err", serveErr)
		return exitConfigError
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "err", err)
		return exitConfigError
	}

	slog.Info("server stopped")
	return exitOK
}

func listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// configureLogging switches the default slog handler to JSON outside
// development, matching the teacher's ambient logging shape without
// touching the per-request fields middleware.Logging already emits.
func configureLogging(environment string) {
	if environment == "development" {
		return
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
}

func main() {
	os.Exit(run())
}
