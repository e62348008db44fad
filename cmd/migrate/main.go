package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"fdss/internal/config"
	"fdss/internal/logger"
	"fdss/internal/storage/postgres"
	"fdss/internal/storage/sqlite"

	"github.com/golang-migrate/migrate/v4"
)

func main() {
	cfg := config.Load()

	cmd := flag.String("op", "", "operation: up, down, version, force")
	steps := flag.Int("steps", 0, "number of steps for up/down (0 = all), or the version for force")
	backend := flag.String("backend", cfg.SessionBackend, "session backend: sqlite or postgres")
	dbPath := flag.String("db", cfg.SQLitePath, "path to sqlite database file")
	dbURL := flag.String("database-url", cfg.DatabaseURL, "postgres connection string")
	flag.Parse()

	if *cmd == "" {
		fmt.Println("Usage: go run ./cmd/migrate -op=[up|down|version|force] -steps=[n] -backend=[sqlite|postgres]")
		os.Exit(1)
	}

	appLog := logger.New(cfg)

	var (
		m   *migrate.Migrate
		err error
	)
	switch *backend {
	case config.BackendSQLite:
		db, openErr := sqlite.NewSqliteDB(*dbPath, appLog)
		if openErr != nil {
			log.Fatal(openErr)
		}
		m, err = sqlite.NewMigrator(db)
	case config.BackendPostgres:
		pool, openErr := postgres.InitDB(context.Background(), *dbURL, appLog)
		if openErr != nil {
			log.Fatal(openErr)
		}
		defer pool.Close()
		m, err = postgres.NewMigrator(pool)
	default:
		log.Fatalf("backend %q has no schema to migrate", *backend)
	}
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	switch *cmd {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-(*steps))
		} else {
			err = m.Down()
		}
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Version: %d, Dirty: %v\n", v, dirty)
		return
	case "force":
		if *steps == 0 {
			log.Fatal("please specify version to force")
		}
		err = m.Force(*steps)
	default:
		log.Fatal("unknown command")
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("No changes detected.")
		} else {
			log.Fatalf("Migration failed: %v", err)
		}
	} else {
		fmt.Println("Migration success!")
	}
}
