package sqlstore

import (
	"context"
	"fmt"
)

// migration is one named schema change. Each dialect gets its own DDL; the
// name is what gets recorded in schema_migrations.
type migration struct {
	name     string
	sqlite   string
	postgres string
}

// migrations run in order. Never edit an applied migration; append a new one.
var migrations = []migration{
	{
		name: "0001_users",
		sqlite: `
			CREATE TABLE users (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				username      TEXT NOT NULL UNIQUE,
				bio           TEXT,
				profile_url   TEXT,
				external_uid  TEXT UNIQUE,
				password_hash TEXT,
				created_at    DATETIME NOT NULL
			);`,
		postgres: `
			CREATE TABLE users (
				id            BIGSERIAL PRIMARY KEY,
				username      VARCHAR(50) NOT NULL UNIQUE,
				bio           TEXT,
				profile_url   VARCHAR(500),
				external_uid  VARCHAR(100) UNIQUE,
				password_hash TEXT,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);`,
	},
	{
		name: "0002_tweets",
		sqlite: `
			CREATE TABLE tweets (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				body            TEXT NOT NULL,
				likes           INTEGER NOT NULL DEFAULT 0,
				replies         INTEGER NOT NULL DEFAULT 0,
				restacks        INTEGER NOT NULL DEFAULT 0,
				saves           INTEGER NOT NULL DEFAULT 0,
				is_comment      BOOLEAN NOT NULL DEFAULT 0,
				parent_tweet_id INTEGER REFERENCES tweets(id) ON DELETE CASCADE,
				user_id         INTEGER REFERENCES users(id) ON DELETE SET NULL,
				created_at      DATETIME NOT NULL
			);
			CREATE INDEX idx_tweets_feed ON tweets(is_comment, created_at);
			CREATE INDEX idx_tweets_parent ON tweets(parent_tweet_id);`,
		postgres: `
			CREATE TABLE tweets (
				id              BIGSERIAL PRIMARY KEY,
				body            TEXT NOT NULL,
				likes           BIGINT NOT NULL DEFAULT 0,
				replies         BIGINT NOT NULL DEFAULT 0,
				restacks        BIGINT NOT NULL DEFAULT 0,
				saves           BIGINT NOT NULL DEFAULT 0,
				is_comment      BOOLEAN NOT NULL DEFAULT FALSE,
				parent_tweet_id BIGINT REFERENCES tweets(id) ON DELETE CASCADE,
				user_id         BIGINT REFERENCES users(id) ON DELETE SET NULL,
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX idx_tweets_feed ON tweets(is_comment, created_at);
			CREATE INDEX idx_tweets_parent ON tweets(parent_tweet_id);`,
	},
	{
		name: "0003_sessions",
		sqlite: `
			CREATE TABLE sessions (
				token_hash TEXT PRIMARY KEY,
				user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL
			);
			CREATE INDEX idx_sessions_user_id ON sessions(user_id);
			CREATE INDEX idx_sessions_expires_at ON sessions(expires_at);`,
		postgres: `
			CREATE TABLE sessions (
				token_hash CHAR(64) PRIMARY KEY,
				user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at TIMESTAMPTZ NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL
			);
			CREATE INDEX idx_sessions_user_id ON sessions(user_id);
			CREATE INDEX idx_sessions_expires_at ON sessions(expires_at);`,
	},
	{
		name: "0004_asteroid_scores",
		sqlite: `
			CREATE TABLE asteroid_scores (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id     INTEGER REFERENCES users(id) ON DELETE SET NULL,
				player_name TEXT NOT NULL,
				score       INTEGER NOT NULL,
				created_at  DATETIME NOT NULL
			);
			CREATE INDEX idx_asteroid_scores_score ON asteroid_scores(score);`,
		postgres: `
			CREATE TABLE asteroid_scores (
				id          BIGSERIAL PRIMARY KEY,
				user_id     BIGINT REFERENCES users(id) ON DELETE SET NULL,
				player_name VARCHAR(50) NOT NULL,
				score       BIGINT NOT NULL,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX idx_asteroid_scores_score ON asteroid_scores(score DESC);`,
	},
	{
		name: "0005_color_game_scores",
		sqlite: `
			CREATE TABLE color_game_scores (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				room_code    TEXT NOT NULL,
				nickname     TEXT NOT NULL,
				role         TEXT NOT NULL,
				points       INTEGER NOT NULL DEFAULT 0,
				guess_number INTEGER,
				target_cell  TEXT,
				created_at   DATETIME NOT NULL
			);
			CREATE INDEX idx_color_game_scores_room ON color_game_scores(room_code);`,
		postgres: `
			CREATE TABLE color_game_scores (
				id           BIGSERIAL PRIMARY KEY,
				room_code    VARCHAR(16) NOT NULL,
				nickname     VARCHAR(50) NOT NULL,
				role         VARCHAR(20) NOT NULL,
				points       BIGINT NOT NULL DEFAULT 0,
				guess_number BIGINT,
				target_cell  VARCHAR(10),
				created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX idx_color_game_scores_room ON color_game_scores(room_code);`,
	},
	{
		name: "0006_flashcards",
		sqlite: `
			CREATE TABLE decks (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				name        TEXT NOT NULL,
				description TEXT,
				created_at  DATETIME NOT NULL,
				updated_at  DATETIME NOT NULL
			);
			CREATE INDEX idx_decks_user ON decks(user_id, updated_at);

			CREATE TABLE cards (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				deck_id    INTEGER NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
				front      TEXT NOT NULL,
				back       TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE INDEX idx_cards_deck ON cards(deck_id, created_at);

			CREATE TABLE study_queue (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				card_id          INTEGER NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
				user_id          INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				status           TEXT NOT NULL DEFAULT 'new',
				next_review_at   DATETIME NOT NULL,
				last_reviewed_at DATETIME,
				review_count     INTEGER NOT NULL DEFAULT 0,
				UNIQUE (card_id, user_id)
			);
			CREATE INDEX idx_study_queue_due ON study_queue(user_id, next_review_at);`,
		postgres: `
			CREATE TABLE decks (
				id          BIGSERIAL PRIMARY KEY,
				user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				name        VARCHAR(200) NOT NULL,
				description VARCHAR(1000),
				created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX idx_decks_user ON decks(user_id, updated_at DESC);

			CREATE TABLE cards (
				id         BIGSERIAL PRIMARY KEY,
				deck_id    BIGINT NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
				front      TEXT NOT NULL,
				back       TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX idx_cards_deck ON cards(deck_id, created_at);

			CREATE TABLE study_queue (
				id               BIGSERIAL PRIMARY KEY,
				card_id          BIGINT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
				user_id          BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				status           VARCHAR(20) NOT NULL DEFAULT 'new',
				next_review_at   TIMESTAMPTZ NOT NULL,
				last_reviewed_at TIMESTAMPTZ,
				review_count     INTEGER NOT NULL DEFAULT 0,
				UNIQUE (card_id, user_id)
			);
			CREATE INDEX idx_study_queue_due ON study_queue(user_id, next_review_at);`,
	},
}

// Migrate applies every migration not yet recorded in schema_migrations and
// returns the names it applied, in order. Each migration runs in its own
// transaction together with its bookkeeping row.
func (db *DB) Migrate(ctx context.Context) ([]string, error) {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: creating schema_migrations: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, m := range migrations {
		if applied[m.name] {
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			return done, fmt.Errorf("sqlstore: applying migration %s: %w", m.name, err)
		}
		done = append(done, m.name)
	}
	return done, nil
}

func (db *DB) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: reading schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning migration name: %w", err)
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func (db *DB) apply(ctx context.Context, m migration) error {
	ddl := m.sqlite
	if db.driver == DriverPostgres {
		ddl = m.postgres
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		db.rebind(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`),
		m.name, now(),
	); err != nil {
		return err
	}
	return tx.Commit()
}
