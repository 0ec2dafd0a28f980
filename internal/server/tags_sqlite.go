package server

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteTagRepo stores tags in a local SQLite database, the default on
// the rover itself.
type SQLiteTagRepo struct {
	db *sql.DB
}

// NewSQLiteTagRepo opens (and if needed initializes) the tag database.
func NewSQLiteTagRepo(dbPath string) (*SQLiteTagRepo, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS image_tags (
		filename TEXT NOT NULL,
		tag TEXT NOT NULL,
		tagged_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (filename, tag)
	);

	CREATE INDEX IF NOT EXISTS idx_image_tags_filename ON image_tags(filename);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteTagRepo{db: db}, nil
}

// Apply sets tag on every named file.
func (r *SQLiteTagRepo) Apply(ctx context.Context, filenames []string, tag string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO image_tags (filename, tag) VALUES (?, ?)")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	count := 0
	for _, f := range filenames {
		if _, err := stmt.ExecContext(ctx, f, tag); err != nil {
			return count, fmt.Errorf("tag %s: %w", f, err)
		}
		count++
	}
	return count, tx.Commit()
}

// All returns every filename's tags.
func (r *SQLiteTagRepo) All(ctx context.Context) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT filename, tag FROM image_tags ORDER BY filename, tag")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := make(map[string][]string)
	for rows.Next() {
		var filename, tag string
		if err := rows.Scan(&filename, &tag); err != nil {
			return nil, err
		}
		tags[filename] = append(tags[filename], tag)
	}
	return tags, rows.Err()
}

// Remove drops all tag rows for the named files.
func (r *SQLiteTagRepo) Remove(ctx context.Context, filenames []string) error {
	if len(filenames) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(filenames))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(filenames))
	for i, f := range filenames {
		args[i] = f
	}
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM image_tags WHERE filename IN ("+placeholders+")", args...)
	return err
}

// Close closes the database.
func (r *SQLiteTagRepo) Close() error {
	return r.db.Close()
}
