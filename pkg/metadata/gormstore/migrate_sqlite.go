package gormstore

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang-migrate/migrate/v4/database"
)

// sqliteMigrationDriver adapts the store's own SQLite connection to the
// golang-migrate database.Driver contract. The stock golang-migrate sqlite
// driver links modernc.org/sqlite, whose init registers the same
// database/sql driver name the glebarez dialector registers; linking both
// panics before main. Running migrations over the store's *sql.DB keeps a
// single registration.
type sqliteMigrationDriver struct {
	db       *sql.DB
	table    string
	isLocked atomic.Bool
}

func newSQLiteMigrationDriver(db *sql.DB, table string) (database.Driver, error) {
	d := &sqliteMigrationDriver{db: db, table: table}
	if err := d.ensureVersionTable(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *sqliteMigrationDriver) ensureVersionTable() error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (version uint64, dirty bool)`, d.table),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS version_unique ON %s (version)`, d.table),
	}
	for _, stmt := range stmts {
		if _, err := d.db.Exec(stmt); err != nil {
			return &database.Error{OrigErr: err, Query: []byte(stmt)}
		}
	}
	return nil
}

// Open is part of the Driver contract for URL-based construction. This
// driver is only built over an existing connection.
func (d *sqliteMigrationDriver) Open(string) (database.Driver, error) {
	return nil, errors.New("sqlite migration driver must be constructed from an open store")
}

// Close is a no-op: the store owns the connection.
func (d *sqliteMigrationDriver) Close() error {
	return nil
}

func (d *sqliteMigrationDriver) Lock() error {
	if !d.isLocked.CompareAndSwap(false, true) {
		return database.ErrLocked
	}
	return nil
}

func (d *sqliteMigrationDriver) Unlock() error {
	if !d.isLocked.CompareAndSwap(true, false) {
		return database.ErrNotLocked
	}
	return nil
}

func (d *sqliteMigrationDriver) Run(migration io.Reader) error {
	query, err := io.ReadAll(migration)
	if err != nil {
		return err
	}

	tx, err := d.db.Begin()
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}
	if _, err := tx.Exec(string(query)); err != nil {
		if errRollback := tx.Rollback(); errRollback != nil {
			err = errors.Join(err, errRollback)
		}
		return &database.Error{OrigErr: err, Query: query}
	}
	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}

func (d *sqliteMigrationDriver) SetVersion(version int, dirty bool) error {
	tx, err := d.db.Begin()
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}

	query := "DELETE FROM " + d.table
	if _, err := tx.Exec(query); err != nil {
		if errRollback := tx.Rollback(); errRollback != nil {
			err = errors.Join(err, errRollback)
		}
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}

	// A dirty nil version is still recorded, so a failed first migration
	// leaves a visible dirty marker.
	if version >= 0 || (version == database.NilVersion && dirty) {
		query = fmt.Sprintf(`INSERT INTO %s (version, dirty) VALUES (?, ?)`, d.table)
		if _, err := tx.Exec(query, version, dirty); err != nil {
			if errRollback := tx.Rollback(); errRollback != nil {
				err = errors.Join(err, errRollback)
			}
			return &database.Error{OrigErr: err, Query: []byte(query)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}

func (d *sqliteMigrationDriver) Version() (int, bool, error) {
	query := fmt.Sprintf(`SELECT version, dirty FROM %s LIMIT 1`, d.table)

	var version int
	var dirty bool
	err := d.db.QueryRow(query).Scan(&version, &dirty)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return database.NilVersion, false, nil
	case err != nil:
		return 0, false, &database.Error{OrigErr: err, Query: []byte(query)}
	}
	return version, dirty, nil
}

func (d *sqliteMigrationDriver) Drop() error {
	query := `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`
	rows, err := d.db.Query(query)
	if err != nil {
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, table := range tables {
		drop := "DROP TABLE " + table
		if _, err := d.db.Exec(drop); err != nil {
			return &database.Error{OrigErr: err, Query: []byte(drop)}
		}
	}
	return nil
}
