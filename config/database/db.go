package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"docsync/config"
	"docsync/pkg/logger"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS folders (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	folder_id  TEXT NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS documents_folder_id_idx ON documents(folder_id);
CREATE TABLE IF NOT EXISTS history (
	document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	visited_at  BIGINT NOT NULL
);`

func Connect(cfg *config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database_url is not set")
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}
	if err := waitForPing(db, cfg.DBConnectRetries, cfg.DBRetryDelay); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// waitForPing retries in case of temporary DNS or network blips.
func waitForPing(db *sql.DB, retries int, delay time.Duration) error {
	var err error
	for i := 0; i < retries; i++ {
		if err = db.Ping(); err == nil {
			logger.Sugar.Info("Successfully connected to the database")
			return nil
		}
		logger.Sugar.Infof("Database connection failed, retrying in %s... (%v)", delay, err)
		time.Sleep(delay)
	}
	return fmt.Errorf("could not connect to database after %d attempts: %w", retries, err)
}

// Migrate creates the tables when they do not exist yet.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		logger.Sugar.Errorf("Failed to migrate schema: %v", err)
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
