// Package sqlite stores experiment tag tables in a local sqlite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mattsolo1/grove-mlconsole/pkg/models"
)

// TagStore persists ordered tag rows per owner.
type TagStore struct {
	db *sql.DB
}

// NewTagStore opens (and creates if needed) tags.db in dataDir.
func NewTagStore(dataDir string) (*TagStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataDir, "tags.db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &TagStore{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize tag store: %w", err)
	}
	return s, nil
}

func (s *TagStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tags (
		owner TEXT NOT NULL,
		position INTEGER NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		created_by TEXT,
		created_at TIMESTAMP,
		PRIMARY KEY (owner, position)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LoadRows returns the rows of owner in their saved order.
func (s *TagStore) LoadRows(ctx context.Context, owner string) ([]models.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, COALESCE(created_by, ''), created_at
		FROM tags WHERE owner = ? ORDER BY position
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var (
			tag       models.Tag
			createdAt sql.NullTime
		)
		if err := rows.Scan(&tag.Key, &tag.Value, &tag.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		if createdAt.Valid {
			tag.CreatedAt = createdAt.Time
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// SaveRows replaces every row of owner. Either all rows are written or none.
func (s *TagStore) SaveRows(ctx context.Context, owner string, tags []models.Tag) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE owner = ?", owner); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tags (owner, position, key, value, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, tag := range tags {
		createdAt := tag.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, owner, i, tag.Key, tag.Value, tag.CreatedBy, createdAt.UTC()); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag.Key, err)
		}
	}

	return tx.Commit()
}

// Close closes the database.
func (s *TagStore) Close() error {
	return s.db.Close()
}
