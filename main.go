package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/crispinterview/backend/repository"
	"github.com/crispinterview/backend/services"
)

func main() {
	// Setup structured logging with JSON format
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	config := services.LoadConfig()

	server := services.NewServer(config)

	store, rawDB := initStore(config)
	server.SetStore(store, rawDB)

	if err := server.InitializeServices(); err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	if config.Database.Seed {
		seeder := services.NewDatabaseSeeder(store)
		if err := seeder.SeedDatabase(); err != nil {
			slog.Error("Database seeding failed", "error", err)
		}
	}

	// Restore any interrupted interview and offer it for resumption.
	coordinator := server.Coordinator()
	if err := coordinator.LoadSession(context.Background()); err != nil {
		slog.Error("Failed to restore session", "error", err)
	}
	if resumable, err := coordinator.DetectResumable(context.Background()); err != nil {
		slog.Error("Failed to detect resumable interview", "error", err)
	} else if resumable != nil {
		slog.Info("Offering resumable interview",
			"interview_id", resumable.Interview.ID,
			"candidate", resumable.Candidate.Name,
			"progress", resumable.Answered)
	}

	server.Start()
}

// initStore opens the configured database, runs migrations and returns the
// persistence backend. Without a database URL the engine runs on an
// in-memory store and loses state on restart.
func initStore(config *services.Config) (repository.Store, interface{}) {
	if config.Database.URL == "" {
		slog.Warn("Database URL not configured, using in-memory store")
		return repository.NewMemoryStore(), nil
	}

	// Verify connectivity before handing the URL to GORM.
	pool, err := pgxpool.New(context.Background(), config.Database.URL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("Database ping failed", "error", err)
		os.Exit(1)
	}
	pool.Close()
	slog.Info("Connected to database")

	db, err := gorm.Open(postgres.Open(config.Database.URL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(config.Database.LogLevel)),
	})
	if err != nil {
		slog.Error("Failed to open GORM connection", "error", err)
		os.Exit(1)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxIdleConns(config.Database.MaxIdleConns)
		sqlDB.SetMaxOpenConns(config.Database.MaxOpenConns)
	}

	repo := repository.NewGORMRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	return repo, db
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "info":
		return gormlogger.Info
	case "warn":
		return gormlogger.Warn
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Silent
	}
}
