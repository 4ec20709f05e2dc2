package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/jonesrussell/godigest/internal/logger"
)

// RunMigrations executes every SQL migration file, in order, on a database
// connection. Intended for integration tests against a local PostgreSQL
// instance.
func RunMigrations(ctx context.Context, db *sql.DB, log logger.Logger) error {
	_, filename, _, _ := runtime.Caller(0)
	migrationsPath := filepath.Join(filepath.Dir(filename), "..", "..", "migrations")

	files, err := filepath.Glob(filepath.Join(migrationsPath, "*.sql"))
	if err != nil {
		return fmt.Errorf("list migration files: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		sqlBytes, readErr := os.ReadFile(file)
		if readErr != nil {
			return fmt.Errorf("read migration file %s: %w", file, readErr)
		}
		if _, execErr := db.ExecContext(ctx, string(sqlBytes)); execErr != nil {
			return fmt.Errorf("execute migration %s: %w", file, execErr)
		}
	}

	if log != nil {
		log.Info("Migrations applied successfully",
			logger.Int("migration_files", len(files)),
		)
	}
	return nil
}
