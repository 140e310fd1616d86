package core

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/aniways/anipush/internal/config"
	"github.com/aniways/anipush/internal/db"
	"github.com/aniways/anipush/internal/pushtarget"
)

// App holds the core components of the application that are shared
// between the server and the processing pipeline.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Targets *pushtarget.Handle
}

// New sets up and returns a new App instance. It handles loading the
// configuration, creating the data directory, loading the push target
// file, opening the database and verifying the table layout.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	targets, err := pushtarget.Load(filepath.Join(cfg.DataDir, "target.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to load push targets: %w", err)
	}

	database, err := db.Shared(cfg.Database.Path, cfg.Database.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// A table whose columns drifted from the declared layout is dropped
	// and recreated. We can't proceed on a half-matching schema.
	if err := db.ValidateSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to validate database schema: %w", err)
	}

	log.Println("Core application setup complete.")
	return &App{
		Config:  cfg,
		DB:      database,
		Targets: targets,
	}, nil
}

// Close gracefully closes the application's resources, like the DB connection.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
