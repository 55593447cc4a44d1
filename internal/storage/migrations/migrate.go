// Package migrations applies the forward-only numbered SQL migrations
// named in §6 via pressly/goose, tracked in a table named _migrations
// (goose's own default table renamed to match the spec's persisted
// state layout). The teacher migrates Dolt/SQLite schemas through
// embedded Go functions; goose's go:embed-backed file loader is picked
// instead because the spec explicitly calls for raw numbered .sql
// files, and goose is the closest match to the teacher's own go:embed
// habits (seen in its ui/ asset embedding).
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Up applies every pending migration in sql/ against db, recording
// progress in the _migrations table.
func Up(db *sql.DB) error {
	goose.SetTableName("_migrations")
	goose.SetBaseFS(sqlFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "sql"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Status reports the current migration version without applying
// anything, used by the migrate command to report the version it
// reached.
func Status(db *sql.DB) (int64, error) {
	goose.SetTableName("_migrations")
	goose.SetBaseFS(sqlFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(db)
}
