// A shared test server setup utility, which simplifies all API tests.

package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/aniways/anipush/internal/api"
	"github.com/aniways/anipush/internal/config"
	"github.com/aniways/anipush/internal/core"
	"github.com/aniways/anipush/internal/pushtarget"
)

// SetupTestApp builds a core.App over an in-memory database and a
// push-target file inside a temp directory.
func SetupTestApp(t *testing.T) *core.App {
	t.Helper()
	database := SetupTestDB(t)

	targets, err := pushtarget.Load(filepath.Join(t.TempDir(), "target.json"))
	if err != nil {
		t.Fatalf("Failed to load test push targets: %v", err)
	}

	cfg := &config.Config{}
	cfg.DataDir = t.TempDir()
	return &core.App{
		Config:  cfg,
		DB:      database,
		Targets: targets,
	}
}

// SetupTestServer initializes a full core.App and api.Server for integration testing.
func SetupTestServer(t *testing.T, pipeline api.Runner) (*api.Server, *sql.DB) {
	t.Helper()
	app := SetupTestApp(t)
	server := api.NewServer(app, pipeline)
	return server, app.DB
}
