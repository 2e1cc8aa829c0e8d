package storage

import (
	"database/sql"
	"strings"
	"time"

	"invoice-desk/internal/auth"
	"invoice-desk/internal/models"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection holding users and sessions. Ledger entries
// are never stored here.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT UNIQUE NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token_hash TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			expires_at DATETIME NOT NULL,
			last_activity DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS sessions_user_id ON sessions(user_id)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// UpsertUser returns the user with the given email, creating it on first
// sign-in.
func (db *DB) UpsertUser(email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := db.conn.Exec(
		"INSERT INTO users (email, created_at) VALUES (?, ?) ON CONFLICT(email) DO NOTHING",
		email, time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	return db.GetUserByEmail(email)
}

// GetUserByEmail retrieves a user by email address.
func (db *DB) GetUserByEmail(email string) (*models.User, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, created_at FROM users WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email)),
	)

	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateSession creates a new session for a user. Only the token's hash is
// stored.
func (db *DB) CreateSession(token string, userID int64, expiresAt time.Time) error {
	now := time.Now().UTC()
	_, err := db.conn.Exec(
		"INSERT INTO sessions (token_hash, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		auth.HashToken(token), userID, expiresAt.UTC(), now,
	)
	return err
}

// SessionInfo holds session validation data.
type SessionInfo struct {
	User         *models.User
	LastActivity time.Time
	ExpiresAt    time.Time
}

// ValidateSessionWithInfo checks if a session token is valid and returns session details.
func (db *DB) ValidateSessionWithInfo(token string) (*SessionInfo, error) {
	row := db.conn.QueryRow(`
		SELECT u.id, u.email, u.created_at, s.last_activity, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token_hash = ? AND s.expires_at > ?
	`, auth.HashToken(token), time.Now().UTC())

	var u models.User
	var lastActivity, expiresAt time.Time
	if err := row.Scan(&u.ID, &u.Email, &u.CreatedAt, &lastActivity, &expiresAt); err != nil {
		return nil, err
	}
	return &SessionInfo{
		User:         &u,
		LastActivity: lastActivity,
		ExpiresAt:    expiresAt,
	}, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (db *DB) RenewSession(token string, newExpiresAt time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token_hash = ?",
		time.Now().UTC(), newExpiresAt.UTC(), auth.HashToken(token),
	)
	return err
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(token string) error {
	_, err := db.conn.Exec("DELETE FROM sessions WHERE token_hash = ?", auth.HashToken(token))
	return err
}

// DeleteUserSessions signs a user out everywhere and returns how many
// sessions were removed.
func (db *DB) DeleteUserSessions(email string) (int64, error) {
	res, err := db.conn.Exec(
		"DELETE FROM sessions WHERE user_id IN (SELECT id FROM users WHERE email = ?)",
		strings.ToLower(strings.TrimSpace(email)),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAllSessions removes every session.
func (db *DB) DeleteAllSessions() (int64, error) {
	res, err := db.conn.Exec("DELETE FROM sessions")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CleanExpiredSessions removes all expired sessions.
func (db *DB) CleanExpiredSessions() (int64, error) {
	res, err := db.conn.Exec("DELETE FROM sessions WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
