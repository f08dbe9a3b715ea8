// Package sqlite implements the corpus and output stores on SQLite files.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Open opens a SQLite database at path with the settings the stores rely on
func Open(path string, log *zap.SugaredLogger) (*sql.DB, error) {
	if log != nil {
		log.Debugw("opening database", "path", path)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if path == MemoryPath {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "apply %q", p)
		}
	}

	if log != nil {
		log.Infow("database opened", "path", path, "wal_mode", true, "foreign_keys", true)
	}
	return db, nil
}

func checkTable(name string) error {
	if !model.ValidIdentifier(name) {
		return errors.NewInvalidConfig("invalid table name %q", name)
	}
	return nil
}

func classIDsJSON(ids []model.ClassID) (string, error) {
	if ids == nil {
		ids = []model.ClassID{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return "", errors.Wrap(err, "encode class ids")
	}
	return string(raw), nil
}

func ping(ctx context.Context, db *sql.DB) error {
	return errors.Wrap(db.PingContext(ctx), "ping sqlite")
}
