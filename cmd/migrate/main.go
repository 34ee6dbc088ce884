package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/config"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/database"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/telemetry"
)

var migrationName = regexp.MustCompile(`^[a-z0-9_]+$`)

func main() {
	var (
		action     = flag.String("action", "up", "Migration action: up, down, status, create")
		name       = flag.String("name", "", "Migration name (for create action)")
		steps      = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
		dir        = flag.String("dir", database.DefaultMigrationsDir, "Migrations directory")
		configPath = flag.String("config", config.DefaultPath, "Path to configuration file")
	)
	flag.Parse()

	if *action == "create" {
		if *name == "" {
			slog.Error("migration name is required for create action")
			os.Exit(1)
		}
		up, down, err := createMigration(*dir, *name)
		if err != nil {
			slog.Error("failed to create migration", "error", err)
			os.Exit(1)
		}
		slog.Info("created migration", "up", up, "down", down)
		return
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := telemetry.NewZapLogger(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	migrator, err := database.NewMigrator(cfg.Database.URL, *dir, logger)
	if err != nil {
		slog.Error("failed to open migrator", "error", err)
		os.Exit(1)
	}
	defer migrator.Close()

	switch *action {
	case "up":
		err = migrator.Up(*steps)
	case "down":
		err = migrator.Down(*steps)
	case "status":
		err = printStatus(migrator)
	default:
		err = fmt.Errorf("unknown action %q", *action)
	}

	if err != nil {
		slog.Error("migration failed", "action", *action, "error", err)
		os.Exit(1)
	}
}

func printStatus(m *database.Migrator) error {
	version, dirty, ok, err := m.Version()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("No migrations applied")
		return nil
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Printf("Version %d (%s)\n", version, state)
	return nil
}

// createMigration writes an empty up/down pair numbered after the highest
// existing migration in dir
func createMigration(dir, name string) (string, string, error) {
	if !migrationName.MatchString(name) {
		return "", "", fmt.Errorf("migration name %q must be lower snake case", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create migrations directory: %w", err)
	}

	next, err := nextSequence(dir)
	if err != nil {
		return "", "", err
	}

	base := filepath.Join(dir, fmt.Sprintf("%06d_%s", next, name))
	up, down := base+".up.sql", base+".down.sql"
	header := fmt.Sprintf("-- Migration: %s\n-- Created at: %s\n\n", name, time.Now().UTC().Format(time.RFC3339))

	if err := os.WriteFile(up, []byte(header), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to create migration file: %w", err)
	}
	if err := os.WriteFile(down, []byte(header), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to create migration file: %w", err)
	}
	return up, down, nil
}

func nextSequence(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	highest := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		prefix, _, found := strings.Cut(e.Name(), "_")
		if !found {
			continue
		}
		n, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}
