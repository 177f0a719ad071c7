// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpin "github.com/austyngo/ICO/internal/adapters/in/http"
	"github.com/austyngo/ICO/internal/infra/config"
	"github.com/austyngo/ICO/internal/platform/di"
	"github.com/austyngo/ICO/internal/platform/otel"
)

const serviceName = "ico-api"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[boot] config: %v", err)
	}

	// ─────────────────────────────────────────────────────────────
	// Log output: LOG_FILE があれば stdout と両方に出す
	// ─────────────────────────────────────────────────────────────
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644); err == nil {
			defer f.Close()
			log.SetOutput(io.MultiWriter(os.Stdout, f))
			log.Printf("[boot] log output = stdout + %s", cfg.LogFile)
		} else {
			log.Printf("[boot] WARN: could not open %s: %v", cfg.LogFile, err)
		}
	}

	shutdownTracing, err := otel.Setup(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		log.Printf("[boot] WARN: otel setup failed: %v (tracing disabled)", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Printf("[boot] otel shutdown: %v", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────
	// Lightweight healthz first so PORT is LISTENed quickly
	// ─────────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ─────────────────────────────────────────────────────────────
	// DI container (RPC dial / signers); keep /healthz even on failure
	// ─────────────────────────────────────────────────────────────
	if cont, err := di.Build(ctx, cfg); err != nil {
		log.Printf("[boot] WARN: di init failed: %v (serving /healthz only)", err)
	} else {
		defer cont.Close()

		deps := cont.RouterDeps()
		if deps.ActionUC == nil {
			log.Printf("[boot] RouterDeps.ActionUC is NIL (read-only)")
		}
		mux.Handle("/", httpin.NewRouter(deps))
	}

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// 確定待ちのレスポンスを切らないように ACTION_TIMEOUT + 余裕
		WriteTimeout: cfg.ActionTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		sig := <-c
		log.Printf("[boot] received signal: %v; shutting down...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[boot] server shutdown error: %v", err)
		}
		close(idleConnsClosed)
	}()

	log.Printf("[boot] listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[boot] server error: %v", err)
	}

	<-idleConnsClosed
	log.Printf("[boot] server stopped")
}
