package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"puzzled.app/internal/auth"
	"puzzled.app/internal/config"
	"puzzled.app/internal/httpapi"
	"puzzled.app/internal/obs"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	if cfg.KeyFromFallback {
		obs.Log("warn", "dev_signing_key", map[string]any{
			"env":    cfg.Env,
			"detail": "PUZZLED_AUTH_SECRET is not set, using the development key",
		})
	}

	store, db, err := openStore(context.Background(), cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	tokens, err := auth.NewTokenService(cfg.SigningKey, auth.WithTokenLifetime(cfg.TokenTTL))
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	svc, err := auth.NewService(store, auth.NewHasher(cfg.Iterations), tokens)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc, httpapi.Options{
		AllowedOrigins:    cfg.AllowedOrigins,
		AllowLocalOrigins: !cfg.Production(),
		RateBurst:         cfg.RateBurst,
		RatePerSec:        cfg.RatePerSec,
		TrustedProxies:    cfg.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	obs.Log("info", "starting", map[string]any{
		"service": "puzzled-api",
		"version": version,
		"addr":    srv.Addr,
		"env":     cfg.Env,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.Log("info", "shutting_down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	obs.Log("info", "stopped", nil)
}
