package server

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

// PostgresTagRepo stores tags in PostgreSQL, for deployments where
// several rovers report into one base-station database.
type PostgresTagRepo struct {
	db *sql.DB
}

// NewPostgresTagRepo connects to PostgreSQL and ensures the schema.
func NewPostgresTagRepo(connStr string) (*PostgresTagRepo, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS image_tags (
		filename TEXT NOT NULL,
		tag TEXT NOT NULL,
		tagged_at TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (filename, tag)
	);

	CREATE INDEX IF NOT EXISTS idx_image_tags_filename ON image_tags(filename);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresTagRepo{db: db}, nil
}

// Apply sets tag on every named file.
func (r *PostgresTagRepo) Apply(ctx context.Context, filenames []string, tag string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO image_tags (filename, tag) VALUES ($1, $2) ON CONFLICT DO NOTHING")
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
func (r *PostgresTagRepo) All(ctx context.Context) (map[string][]string, error) {
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
func (r *PostgresTagRepo) Remove(ctx context.Context, filenames []string) error {
	if len(filenames) == 0 {
		return nil
	}
	placeholders := make([]string, len(filenames))
	args := make([]interface{}, len(filenames))
	for i, f := range filenames {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = f
	}
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM image_tags WHERE filename IN ("+strings.Join(placeholders, ",")+")", args...)
	return err
}

// Close closes the database.
func (r *PostgresTagRepo) Close() error {
	return r.db.Close()
}
