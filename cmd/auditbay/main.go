package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auditbay/internal/auditor"
	"auditbay/internal/auth"
	"auditbay/internal/bus"
	"auditbay/internal/config"
	"auditbay/internal/db"
	httpx "auditbay/internal/http"
	"auditbay/internal/notify"
	"auditbay/internal/queue"
)

func main() {
	cfg, _ := config.Load()

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatal(err)
	}
	if err := auth.EnsureAdmin(gdb, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal(err)
	}

	jwtSvc := auth.NewJWT(cfg.JWTSecret)

	repo := &queue.Repo{DB: gdb}
	exec := &queue.Executor{
		DB:         gdb,
		Repo:       repo,
		Processor:  auditor.New(cfg.AuditorURL),
		Notifier:   notify.New(cfg.NotifyWebhookURL),
		Timeout:    cfg.ProcessTimeout,
		MaxRetries: cfg.MaxRetries,
	}
	dispatch := &queue.Dispatcher{Repo: repo, Exec: exec}

	// Optional redis-backed wake signals; without them the poller still
	// guarantees progress, just with more latency.
	var busClient *bus.Client
	var consumer *bus.Consumer
	if cfg.RedisAddr != "" {
		busClient = bus.NewClient(cfg.RedisAddr)
		dispatch.Signal = busClient

		consumer = bus.NewConsumer(cfg.RedisAddr, dispatch)
		if err := consumer.Start(); err != nil {
			log.Fatal(err)
		}
	}

	r := httpx.NewRouter(cfg, gdb, jwtSvc, repo, dispatch)

	ctx, cancel := context.WithCancel(context.Background())
	poller := &queue.Poller{Dispatch: dispatch, Interval: cfg.PollInterval}
	go poller.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s\n", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	if consumer != nil {
		consumer.Shutdown()
	}
	if busClient != nil {
		_ = busClient.Close()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
