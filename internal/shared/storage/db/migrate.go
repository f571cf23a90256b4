package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/pressly/goose/v3"

	"esign-backend/internal/shared/telemetry"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var migrateCommands = map[string]bool{
	"up": true, "up-by-one": true, "up-to": true, "down": true, "down-to": true,
	"redo": true, "reset": true, "status": true, "version": true,
}

// RunMigrations applies every pending embedded migration. A nil database is a no-op.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	return Migrate(ctx, database, "up")
}

// Migrate runs a goose command against the embedded migrations.
func Migrate(ctx context.Context, database *sql.DB, command string, args ...string) error {
	command = strings.TrimSpace(command)
	if !migrateCommands[command] {
		return fmt.Errorf("unknown migrate command %q", command)
	}
	if database == nil {
		return nil
	}
	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, database, "migrations", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// gooseLogger sends goose output through telemetry.
type gooseLogger struct{}

func (gooseLogger) Print(v ...any)   { gooseLog(fmt.Sprint(v...)) }
func (gooseLogger) Println(v ...any) { gooseLog(fmt.Sprintln(v...)) }

func (gooseLogger) Printf(format string, v ...any) { gooseLog(fmt.Sprintf(format, v...)) }

func (gooseLogger) Fatal(v ...any) {
	telemetry.Error("db.migrate.fatal", map[string]any{"detail": strings.TrimSpace(fmt.Sprint(v...))})
	os.Exit(1)
}

func (gooseLogger) Fatalf(format string, v ...any) {
	telemetry.Error("db.migrate.fatal", map[string]any{"detail": strings.TrimSpace(fmt.Sprintf(format, v...))})
	os.Exit(1)
}

func gooseLog(line string) {
	if line = strings.TrimSpace(line); line != "" {
		telemetry.Info("db.migrate", map[string]any{"detail": line})
	}
}
