package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/tournament-divisions/config"
	"github.com/Dosada05/tournament-divisions/db"
	"github.com/Dosada05/tournament-divisions/divisions"
	"github.com/Dosada05/tournament-divisions/handlers"
	"github.com/Dosada05/tournament-divisions/models"
	"github.com/Dosada05/tournament-divisions/realtime"
	"github.com/Dosada05/tournament-divisions/repositories"
	"github.com/Dosada05/tournament-divisions/routes"
	"github.com/Dosada05/tournament-divisions/services"
	"github.com/Dosada05/tournament-divisions/storage"
	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rules, err := loadRules(cfg.RulesFile)
	if err != nil {
		return err
	}
	logger.Info("rule table loaded", slog.String("source", rulesSource(cfg.RulesFile)), slog.Int("categories", len(rules.Categories)))

	dbConn, err := db.Connect(cfg.DatabaseURL, cfg.DBConnectTimeout)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.EnsureSchema(ctx, dbConn); err != nil {
		return err
	}
	logger.Info("database connection established")

	var snapshots services.SnapshotStore
	if cfg.R2.Enabled() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, cfg.R2)
		if err != nil {
			return fmt.Errorf("initialize Cloudflare R2 uploader: %w", err)
		}
		snapshots = storage.NewSnapshotArchive(uploader)
		logger.Info("snapshot archive enabled", slog.String("bucket", cfg.R2.BucketName))
	} else {
		logger.Info("snapshot archive disabled")
	}

	hub := realtime.NewHub(logger.With(slog.String("component", "realtime")))
	go hub.Run(ctx)

	tx := repositories.NewPostgresTransactor(dbConn, logger)
	divisionRepo := repositories.NewPostgresDivisionRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)

	divisionService := services.NewDivisionService(tx, divisionRepo, hub, snapshots, logger)
	bracketService := services.NewBracketService(tx, divisionRepo, matchRepo, hub, snapshots, logger)
	matchService := services.NewMatchService(tx, divisionRepo, matchRepo, hub, logger)

	router := chi.NewRouter()
	routes.SetupRoutes(router, routes.Handlers{
		Division:  handlers.NewDivisionHandler(divisionService, rules),
		Bracket:   handlers.NewBracketHandler(bracketService),
		Match:     handlers.NewMatchHandler(matchService),
		WebSocket: handlers.NewWebSocketHandler(hub, cfg.CORSAllowedOrigins, logger),
	}, cfg.CORSAllowedOrigins, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
	if err := server.Shutdown(shutdownCtx); err != nil {
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server shutdown complete")
	return nil
}

func loadRules(path string) (models.RuleTable, error) {
	if path == "" {
		return divisions.DefaultRuleTable(), nil
	}
	return divisions.LoadRuleTable(path)
}

func rulesSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
