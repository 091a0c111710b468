// Package database provides host storage for persistent session data:
// SQLite, BBolt and Redis implementations of session.Backend.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"git.sr.ht/~jakintosh/fbclient/pkg/session"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ session.Backend = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	// a single connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init database: %v", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SessionBackend() session.Backend {
	return s
}

func initSchema(db *sql.DB) error {
	if err := initTable(db, "session", `
		CREATE TABLE IF NOT EXISTS session (
			name        TEXT PRIMARY KEY,
			value       TEXT NOT NULL,
			updated     INTEGER NOT NULL
		);`,
	); err != nil {
		return err
	}

	return nil
}

func initTable(
	db *sql.DB,
	name string,
	sql string,
) error {
	if _, err := db.Exec(sql); err != nil {
		return fmt.Errorf("failed to init '%s' table schema: %v", name, err)
	}
	return nil
}

func (s *SQLiteStore) Put(
	name string,
	value string,
) error {
	_, err := s.db.Exec(`
		INSERT INTO session (name, value, updated)
		VALUES (?1, ?2, ?3)
		ON CONFLICT(name) DO UPDATE SET
			value=excluded.value,
			updated=excluded.updated;`,
		name,
		value,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("couldn't upsert into session: %v", err)
	}
	return nil
}

func (s *SQLiteStore) Get(
	name string,
) (
	string,
	bool,
	error,
) {
	row := s.db.QueryRow(`
		SELECT value
		FROM session
		WHERE name=?1;`,
		name,
	)

	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("couldn't scan session value: %v", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Delete(
	name string,
) error {
	_, err := s.db.Exec(`
		DELETE FROM session
		WHERE name=?1;`,
		name,
	)
	if err != nil {
		return fmt.Errorf("couldn't delete from session: %v", err)
	}
	return nil
}

// PurgeBefore removes values not written since cutoff and reports how many
// were removed.
func (s *SQLiteStore) PurgeBefore(
	cutoff time.Time,
) (
	int64,
	error,
) {
	result, err := s.db.Exec(`
		DELETE FROM session
		WHERE updated < ?1;`,
		cutoff.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("couldn't purge session: %v", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return count, nil
}
