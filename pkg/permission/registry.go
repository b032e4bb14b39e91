package permission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Operation names a grantable action. Each maps onto a Level.
type Operation string

const (
	OpView   Operation = "view"
	OpEdit   Operation = "edit"
	OpDelete Operation = "delete"
	OpManage Operation = "manage"
)

var operationLevels = map[Operation]Level{
	OpView:   LevelView,
	OpEdit:   LevelEdit,
	OpDelete: LevelEdit,
	OpManage: LevelAdmin,
}

// ErrUnknownOperation is returned when granting an operation that is not seeded.
var ErrUnknownOperation = errors.New("unknown operation")

// Registry stores user grants on resources in sqlite.
type Registry struct {
	db *sql.DB
}

// NewRegistry opens (and creates if needed) the permission database in dataDir.
func NewRegistry(dataDir string) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataDir, "permissions.db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	r := &Registry{db: db}
	if err := r.init(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize registry: %w", err)
	}
	return r, nil
}

// init creates the schema and seeds the operations
func (r *Registry) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS operation (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS element (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ref_name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS user_permission (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_name TEXT NOT NULL,
		elem_id INTEGER NOT NULL REFERENCES element(id),
		operation_id INTEGER NOT NULL REFERENCES operation(id),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_name, elem_id, operation_id)
	);

	CREATE INDEX IF NOT EXISTS idx_user_permission_user ON user_permission(user_name, elem_id);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return err
	}

	for op := range operationLevels {
		if _, err := r.db.Exec("INSERT OR IGNORE INTO operation (name) VALUES (?)", string(op)); err != nil {
			return fmt.Errorf("seed operation %s: %w", op, err)
		}
	}
	return nil
}

// Grant allows user to perform op on resource.
func (r *Registry) Grant(ctx context.Context, user, resource string, op Operation) error {
	if _, ok := operationLevels[op]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO element (ref_name) VALUES (?)", resource); err != nil {
		return fmt.Errorf("register element: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_permission (user_name, elem_id, operation_id)
		SELECT ?, e.id, o.id FROM element e, operation o
		WHERE e.ref_name = ? AND o.name = ?
	`, user, resource, string(op))
	if err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}

	return tx.Commit()
}

// Revoke removes a single grant. Revoking a grant that does not exist is not an error.
func (r *Registry) Revoke(ctx context.Context, user, resource string, op Operation) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM user_permission
		WHERE user_name = ?
		  AND elem_id = (SELECT id FROM element WHERE ref_name = ?)
		  AND operation_id = (SELECT id FROM operation WHERE name = ?)
	`, user, resource, string(op))
	return err
}

// Operations lists the operations granted to user on resource.
func (r *Registry) Operations(ctx context.Context, user, resource string) ([]Operation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.name
		FROM user_permission up
		INNER JOIN element e ON up.elem_id = e.id
		INNER JOIN operation o ON up.operation_id = o.id
		WHERE up.user_name = ? AND e.ref_name = ?
		ORDER BY o.name
	`, user, resource)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		ops = append(ops, Operation(name))
	}
	return ops, rows.Err()
}

// Level implements Provider using the strongest granted operation.
func (r *Registry) Level(ctx context.Context, user, resource string) (Level, error) {
	ops, err := r.Operations(ctx, user, resource)
	if err != nil {
		return LevelNone, fmt.Errorf("query permissions: %w", err)
	}

	level := LevelNone
	for _, op := range ops {
		if l := operationLevels[op]; l > level {
			level = l
		}
	}
	return level, nil
}

// Close closes the registry.
func (r *Registry) Close() error {
	return r.db.Close()
}
