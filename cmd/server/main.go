package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"gitea.jw6.us/james/caldavgw/internal/auth"
	"gitea.jw6.us/james/caldavgw/internal/backend"
	"gitea.jw6.us/james/caldavgw/internal/config"
	"gitea.jw6.us/james/caldavgw/internal/dav"
	httpserver "gitea.jw6.us/james/caldavgw/internal/http"
	"gitea.jw6.us/james/caldavgw/internal/http/ratelimit"
	"gitea.jw6.us/james/caldavgw/internal/store"
)

func main() {
	log.Println("Starting CalDAV gateway...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to create db pool: %v", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	stor := store.New(pool)
	provider := backend.NewProvider(cfg, stor, auth.NewService(stor))
	handler := dav.NewHandler(cfg, provider)

	opsSrv := &http.Server{
		Addr:         cfg.OpsListenAddr,
		Handler:      httpserver.NewRouter(cfg, stor),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Printf("ops server listening on %s", cfg.OpsListenAddr)
		if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ops server error: %v", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", cfg.ListenAddr, err)
	}
	limiter := ratelimit.New(rate.Limit(cfg.ConnLimit.Rate), cfg.ConnLimit.Burst, 5*time.Minute, nil)
	caldav := newConnServer(handler, limiter, cfg.ClientTimeout)

	log.Printf("caldav listening on %s", cfg.ListenAddr)
	if err := caldav.serve(ctx, ln); err != nil {
		log.Printf("caldav listener stopped: %v", err)
		stop()
	}

	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := caldav.shutdown(shutdownCtx); err != nil {
		log.Printf("caldav connections did not finish: %v", err)
	}
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
