package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/tumbleweedd/eshop_saga/internal/config"
)

// Applies migrations/ to the database of one service. Without -storage-path
// the connection is built from the service configuration (CONFIG_PATH or
// POSTGRES_* variables).
func main() {
	var storagePath, migrationsPath, configPath string
	var down bool

	flag.StringVar(&storagePath, "storage-path", "", "user:password@host:port/db?sslmode=disable")
	flag.StringVar(&migrationsPath, "migrations-path", "", "path to migrations")
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.BoolVar(&down, "down", false, "roll every migration back")
	flag.Parse()

	if storagePath == "" {
		storagePath = os.Getenv("STORAGE_PATH")
	}
	if storagePath == "" {
		storagePath = storageFromConfig(configPath)
	}

	if migrationsPath == "" {
		migrationsPath = os.Getenv("MIGRATIONS_PATH")
		if migrationsPath == "" {
			migrationsPath = "migrations"
		}
	}

	m, err := migrate.New(
		"file://"+migrationsPath,
		fmt.Sprintf("postgres://%s", storagePath),
	)
	if err != nil {
		panic(err)
	}

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}
		panic(err)
	}

	fmt.Println("migrations applied")
}

func storageFromConfig(path string) string {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		panic(err)
	}

	pg := cfg.Postgres
	if pg.DbName == "" {
		panic("empty storage path")
	}

	return fmt.Sprintf("%s:%s@%s:%s/%s?sslmode=%s", pg.User, pg.Pwd, pg.Host, pg.Port, pg.DbName, pg.SslMode)
}
