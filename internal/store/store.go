package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// journalVersion is the user_version stamped on journals this package writes.
const journalVersion = 1

// ErrJournalVersion is returned when a journal was written with a schema
// version this build does not know.
var ErrJournalVersion = errors.New("unsupported journal version")

// connParams are go-sqlite3 DSN parameters applied to every pooled connection.
// WAL keeps trace readers from blocking the recorder.
const connParams = "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"

// Store is the SQLite trace journal.
type Store struct {
	db *sql.DB
}

// Open opens the journal at path, creating and stamping it on first use.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?"+connParams)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	// One recorder writes per process; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := initJournal(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the journal.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initJournal creates the tables of a fresh journal and checks the version of
// an existing one.
func initJournal(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read journal version: %w", err)
	}

	switch version {
	case journalVersion:
		return nil
	case 0:
	default:
		return fmt.Errorf("%w: %d (want %d)", ErrJournalVersion, version, journalVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create journal tables: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", journalVersion)); err != nil {
		return fmt.Errorf("stamp journal version: %w", err)
	}
	return tx.Commit()
}
