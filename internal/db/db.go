// internal/db/db.go
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Connect opens a Postgres connection pool and verifies it with a ping.
func Connect(databaseURL string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return conn, nil
}

// Migrate creates the schema when it does not exist yet.
func Migrate(conn *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS campaigns (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			workspace_id TEXT NOT NULL DEFAULT '',
			target_channel TEXT NOT NULL,
			message_template TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'draft',
			schedule_start TIMESTAMPTZ,
			schedule_end TIMESTAMPTZ,
			frequency TEXT NOT NULL DEFAULT 'once',
			total_messages INT NOT NULL DEFAULT 0,
			successful_replies INT NOT NULL DEFAULT 0,
			response_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			conversion_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_variants (
			id TEXT NOT NULL,
			campaign_id INT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			template TEXT NOT NULL,
			distribution INT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			position INT NOT NULL DEFAULT 0,
			PRIMARY KEY (campaign_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_recipients (
			campaign_id INT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			position INT NOT NULL DEFAULT 0,
			sent_at TIMESTAMPTZ,
			converted_at TIMESTAMPTZ,
			PRIMARY KEY (campaign_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL,
			campaign_id INT NOT NULL,
			channel_id TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			role TEXT NOT NULL,
			sentiment DOUBLE PRECISION NOT NULL DEFAULT 0,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recipients_status ON campaign_recipients (campaign_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_campaign_user ON messages (campaign_id, user_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
