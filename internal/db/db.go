// Package db is the narrow, name-scoped CRUD surface over the turtles
// SQLite table (spec.md §6). It is a thin synchronous façade over
// database/sql — the connection pool already serializes access, so no
// additional actor/mailbox wrapping is needed (spec.md §5).
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/benjazzy/turtle-wrangler/internal/wire"
)

const schema = `
CREATE TABLE IF NOT EXISTS turtles (
	name    TEXT PRIMARY KEY,
	x       INTEGER NOT NULL DEFAULT 0,
	y       INTEGER NOT NULL DEFAULT 0,
	z       INTEGER NOT NULL DEFAULT 0,
	heading TEXT NOT NULL DEFAULT 'n',
	type    TEXT NOT NULL DEFAULT 'normal',
	fuel    INTEGER NOT NULL DEFAULT 0
);
`

// Row is one persisted turtle record.
type Row struct {
	Name    string
	X, Y, Z int64
	Heading wire.Heading
	Type    wire.TurtleType
	Fuel    int64
}

// DB is the SQLite-backed turtle store.
type DB struct {
	sql *sql.DB
}

// Open opens (and creates if missing) the SQLite file at path and ensures
// the turtles table exists.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("db: opening sqlite database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("db: pinging sqlite database: %w", err)
	}
	// SQLite only supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent turtle report writes.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("db: creating schema: %w", err)
	}

	return &DB{sql: sqlDB}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.sql.Close()
}

// CreateTurtle inserts a new turtle row (operator "N" console command). A
// row is never deleted by the core; re-creating an existing name replaces
// its persisted attributes.
func (d *DB) CreateTurtle(ctx context.Context, row Row) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO turtles (name, x, y, z, heading, type, fuel)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			x = excluded.x, y = excluded.y, z = excluded.z,
			heading = excluded.heading, type = excluded.type, fuel = excluded.fuel
	`, row.Name, row.X, row.Y, row.Z, string(row.Heading), string(row.Type), row.Fuel)
	if err != nil {
		return fmt.Errorf("db: creating turtle %q: %w", row.Name, err)
	}
	return nil
}

// GetTurtle fetches a turtle row by name. Returns sql.ErrNoRows if absent.
func (d *DB) GetTurtle(ctx context.Context, name string) (Row, error) {
	var row Row
	var heading, typ string
	err := d.sql.QueryRowContext(ctx,
		`SELECT name, x, y, z, heading, type, fuel FROM turtles WHERE name = ?`, name,
	).Scan(&row.Name, &row.X, &row.Y, &row.Z, &heading, &typ, &row.Fuel)
	if err != nil {
		return Row{}, fmt.Errorf("db: fetching turtle %q: %w", name, err)
	}
	row.Heading = wire.Heading(heading)
	row.Type = wire.TurtleType(typ)
	return row, nil
}

// ListTurtles returns every persisted turtle row, ordered by name.
func (d *DB) ListTurtles(ctx context.Context) ([]Row, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT name, x, y, z, heading, type, fuel FROM turtles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("db: listing turtles: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		var heading, typ string
		if err := rows.Scan(&row.Name, &row.X, &row.Y, &row.Z, &heading, &typ, &row.Fuel); err != nil {
			return nil, fmt.Errorf("db: scanning turtle row: %w", err)
		}
		row.Heading = wire.Heading(heading)
		row.Type = wire.TurtleType(typ)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: iterating turtle rows: %w", err)
	}
	return out, nil
}

// UpdatePosition writes through a Report's position to the named turtle's row.
func (d *DB) UpdatePosition(ctx context.Context, name string, c wire.Coords) error {
	_, err := d.sql.ExecContext(ctx,
		`UPDATE turtles SET x = ?, y = ?, z = ? WHERE name = ?`, c.X, c.Y, c.Z, name)
	if err != nil {
		return fmt.Errorf("db: updating position for %q: %w", name, err)
	}
	return nil
}

// UpdateHeading writes through a Report's heading to the named turtle's row.
func (d *DB) UpdateHeading(ctx context.Context, name string, h wire.Heading) error {
	_, err := d.sql.ExecContext(ctx,
		`UPDATE turtles SET heading = ? WHERE name = ?`, string(h), name)
	if err != nil {
		return fmt.Errorf("db: updating heading for %q: %w", name, err)
	}
	return nil
}

// UpdateFuel writes through a Report's fuel level to the named turtle's row.
func (d *DB) UpdateFuel(ctx context.Context, name string, level int64) error {
	_, err := d.sql.ExecContext(ctx,
		`UPDATE turtles SET fuel = ? WHERE name = ?`, level, name)
	if err != nil {
		return fmt.Errorf("db: updating fuel for %q: %w", name, err)
	}
	return nil
}

// UpdateCoordinate sets a single axis, used by the operator "P" console command.
func (d *DB) UpdateCoordinate(ctx context.Context, name string, axis string, value int64) error {
	var column string
	switch axis {
	case "X", "x":
		column = "x"
	case "Y", "y":
		column = "y"
	case "Z", "z":
		column = "z"
	default:
		return fmt.Errorf("db: unknown axis %q", axis)
	}
	_, err := d.sql.ExecContext(ctx,
		fmt.Sprintf(`UPDATE turtles SET %s = ? WHERE name = ?`, column), value, name)
	if err != nil {
		return fmt.Errorf("db: updating %s for %q: %w", column, name, err)
	}
	return nil
}
