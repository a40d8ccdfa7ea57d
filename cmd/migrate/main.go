// Command migrate applies, inspects and rolls back the database schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"ctfarena/internal/config"
	"ctfarena/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: migrate <up|auto|status|down> [version]")
}

func run() error {
	timeout := flag.Duration("timeout", 5*time.Minute, "Abort if the operation takes longer than this")
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{SkipSchema: true})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
		log.Println("sql migrations applied")
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
		log.Printf("automigrated %d models", len(database.PersistentModels()))
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status: %w", err)
		}
		log.Printf("mode=%s env=%s sql=%t auto=%t applied=%v", status.Mode, status.Environment,
			status.WillRunSQL, status.WillRunAutoMigrate, status.AppliedVersions)
		if len(status.PendingMigrations) == 0 {
			log.Println("schema is up to date")
		}
		for _, m := range status.PendingMigrations {
			log.Printf("pending %s", m.String())
		}
	case "down":
		if flag.NArg() < 2 {
			return fmt.Errorf("usage: migrate down <version>")
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", flag.Arg(1), err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback %d: %w", version, err)
		}
		log.Printf("rolled back migration %d", version)
	default:
		return usage()
	}
	return nil
}
