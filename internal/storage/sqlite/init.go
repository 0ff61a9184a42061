package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Register the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

const dirPerm = 0o755

// InitDB opens the history database at path, creating the file and schema
// when missing.
func InitDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY,
		run_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		collection TEXT NOT NULL,
		title TEXT,
		path TEXT,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		bytes INTEGER NOT NULL DEFAULT 0,
		reason TEXT,
		created_at DATETIME NOT NULL,
		UNIQUE(item_id, collection)
	)`)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("creating downloads table: %w", err)
	}

	return db, nil
}
