package database

import (
	"database/sql"
	"time"

	"coscribe/pkg/logger"

	_ "github.com/lib/pq"
)

// Connect opens the Postgres pool and verifies it with a few ping retries
// to ride out DNS or network blips at startup.
func Connect(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	for i := 0; i < 5; i++ {
		if err = db.Ping(); err == nil {
			logger.Sugar.Info("Successfully connected to the database")
			return db, nil
		}
		logger.Sugar.Infof("Database connection failed, retrying in 2s... (%v)", err)
		time.Sleep(2 * time.Second)
	}
	db.Close()
	return nil, err
}

// Migrate creates the schema if it does not exist yet.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT UNIQUE NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name  TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			owner_id   TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS collaborators (
			document_id TEXT NOT NULL,
			user_id     TEXT NOT NULL,
			PRIMARY KEY (document_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS document_history (
			id               BIGSERIAL PRIMARY KEY,
			document_id      TEXT NOT NULL,
			editor_id        TEXT NOT NULL,
			content_snapshot TEXT NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS invite_tokens (
			token       TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			created_by  TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_document ON document_history (document_id, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_collaborators_user ON collaborators (user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
