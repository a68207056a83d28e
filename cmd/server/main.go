package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/Trandung-02/mail-job-manager/internal/api"
	"github.com/Trandung-02/mail-job-manager/internal/classify"
	"github.com/Trandung-02/mail-job-manager/internal/config"
	"github.com/Trandung-02/mail-job-manager/internal/dispatch"
	"github.com/Trandung-02/mail-job-manager/internal/pkg/distlock"
	"github.com/Trandung-02/mail-job-manager/internal/pkg/logger"
	"github.com/Trandung-02/mail-job-manager/internal/profile"
	"github.com/Trandung-02/mail-job-manager/internal/repository/postgres"
	"github.com/Trandung-02/mail-job-manager/internal/runstatus"
	"github.com/Trandung-02/mail-job-manager/internal/service/job"
	"github.com/Trandung-02/mail-job-manager/internal/transport"
	"github.com/Trandung-02/mail-job-manager/internal/validator"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifeMins) * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Database ping failed: %v", err)
	}
	pingCancel()
	logger.Info("database connected")

	// Redis is optional: without it, run-status tracking is disabled and
	// send locks fall back to PG advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis connection failed, falling back to PG advisory locks",
				"addr", cfg.Redis.Addr, "error", err.Error())
			redisClient.Close()
			redisClient = nil
		} else {
			logger.Info("redis connected", "addr", cfg.Redis.Addr)
		}
		pingCancel()
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Wiring
	jobRepo := postgres.NewJobRepo(db)
	outcomeRepo := postgres.NewOutcomeRepo(db)

	profiles := profile.NewStore(cfg.Profiles.Dir)
	if refresh := cfg.Profiles.Refresh(); refresh > 0 {
		go func() {
			t := time.NewTicker(refresh)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					profiles.Reload()
				}
			}
		}()
	}

	tracker := runstatus.NewTracker(redisClient)

	orchestrator := dispatch.New(
		validator.New(validator.WithDNSTimeout(cfg.Dispatch.DNSTimeout())),
		classify.New(),
		transport.NewFactory(transport.Config{
			SMTPHost:       cfg.Dispatch.SMTPHost,
			SMTPPort:       cfg.Dispatch.SMTPPort,
			SMTPDisableTLS: cfg.Dispatch.SMTPDisableTLS,
			SMTPTimeout:    cfg.Dispatch.SMTPTimeout(),
		}),
		dispatch.Config{InterSendDelay: cfg.Dispatch.InterSendDelay()},
		dispatch.WithOutcomeStore(outcomeRepo),
		dispatch.WithProfileLookup(profiles),
		dispatch.WithTracker(tracker),
	)

	locks := func(key string, ttl time.Duration) distlock.DistLock {
		return distlock.NewLock(redisClient, db, key, ttl)
	}
	jobService := job.NewService(jobRepo, outcomeRepo, orchestrator, locks, cfg.Dispatch.LockTTL())

	handlers := api.NewHandlers(jobService, profiles, tracker)
	router := api.SetupRoutes(handlers)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // synchronous dispatch runs are slow by design
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err.Error())
	}
	logger.Info("server stopped")
}
