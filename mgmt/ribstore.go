package mgmt

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lci-net/lcifwd/wire"
)

// StaticRoute is one row reloaded from the RIB snapshot at startup.
type StaticRoute struct {
	Name   wire.Name
	ConnID uint64
	Weight uint32
}

// RibStore is a durable snapshot of statically-configured routes,
// ported from the teacher's sqlite-backed PIB (std/security/pib/
// sqlite-pib.go uses the same database/sql + mattn/go-sqlite3 combination
// for its own small persisted table). Only OriginStatic routes are ever
// written here: app/client-learned routes do not survive a restart, the
// same distinction the teacher's RIB makes between origins that get
// readvertised and origins that don't.
type RibStore struct {
	db *sql.DB
}

// OpenRibStore opens (creating if necessary) a sqlite3-backed route
// snapshot at path.
func OpenRibStore(path string) (*RibStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("mgmt: opening rib store: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS static_routes (
	name    TEXT NOT NULL,
	conn_id INTEGER NOT NULL,
	weight  INTEGER NOT NULL,
	PRIMARY KEY (name, conn_id)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("mgmt: creating rib store schema: %w", err)
	}
	return &RibStore{db: db}, nil
}

func (r *RibStore) String() string { return "mgmt-ribstore" }

// Save persists (or updates the weight of) a statically-configured
// route so it survives a restart.
func (r *RibStore) Save(name wire.Name, connID uint64, weight uint32) error {
	_, err := r.db.Exec(
		`INSERT INTO static_routes (name, conn_id, weight) VALUES (?, ?, ?)
		 ON CONFLICT (name, conn_id) DO UPDATE SET weight = excluded.weight`,
		name.String(), connID, weight,
	)
	return err
}

// Delete removes a persisted static route. It is not an error to
// delete a route that was never persisted.
func (r *RibStore) Delete(name wire.Name, connID uint64) error {
	_, err := r.db.Exec(
		`DELETE FROM static_routes WHERE name = ? AND conn_id = ?`,
		name.String(), connID,
	)
	return err
}

// Load reads every persisted static route back out, for the caller to
// reinsert into the Fib at startup before any connection has had a
// chance to register a route of its own.
func (r *RibStore) Load() ([]StaticRoute, error) {
	rows, err := r.db.Query(`SELECT name, conn_id, weight FROM static_routes`)
	if err != nil {
		return nil, fmt.Errorf("mgmt: reading rib store: %w", err)
	}
	defer rows.Close()

	var out []StaticRoute
	for rows.Next() {
		var nameStr string
		var rec StaticRoute
		if err := rows.Scan(&nameStr, &rec.ConnID, &rec.Weight); err != nil {
			return nil, fmt.Errorf("mgmt: scanning rib row: %w", err)
		}
		name, err := wire.ParseName(nameStr)
		if err != nil {
			return nil, fmt.Errorf("mgmt: decoding persisted route name: %w", err)
		}
		rec.Name = name
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (r *RibStore) Close() error { return r.db.Close() }
