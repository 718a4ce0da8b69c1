package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/chora/internal/config"
	"github.com/dukerupert/chora/internal/database"
	"github.com/dukerupert/chora/internal/docstore"
	"github.com/dukerupert/chora/internal/logging"
	"github.com/dukerupert/chora/internal/server"
)

func main() {
	cfg, err := config.FromEnvironment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	docs, err := openStore(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to open document store", "store", cfg.Store, "error", err)
		os.Exit(1)
	}
	defer docs.Close()

	srv := server.New(docs, cfg, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: /ws connections are long-lived.
	}

	// Background cleanup goroutines
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go srv.RateLimiter().RunCleanup(cleanupCtx, 10*time.Minute)
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.CleanupSessions(cleanupCtx); err != nil {
					slog.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					slog.Info("cleaned up expired sessions", "count", n)
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("chora starting", "addr", ":"+cfg.Port, "store", cfg.Store, "week_start", cfg.WeekStart.String())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg config.Config) (docstore.Store, error) {
	switch cfg.Store {
	case config.StoreFirestore:
		fsCfg := docstore.FirestoreConfig{ProjectID: cfg.FirestoreProject}
		if cfg.FirestoreCredentials != "" {
			raw, err := os.ReadFile(cfg.FirestoreCredentials)
			if err != nil {
				return nil, fmt.Errorf("read firestore credentials: %w", err)
			}
			fsCfg.CredentialsJSON = string(raw)
		}
		fs, err := docstore.NewFirestore(ctx, fsCfg)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.StoreMongo:
		m, err := docstore.NewMongo(ctx, docstore.MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return docstore.NewSQLite(db), nil
	}
}
