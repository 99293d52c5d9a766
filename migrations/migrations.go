// Package migrations embeds the PostgreSQL schema.
package migrations

import (
	"database/sql"
	"embed"

	migrate "github.com/rubenv/sql-migrate"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// Source returns the embedded migrations for sql-migrate.
func Source() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: SQLFiles,
		Root:       "sql",
	}
}

// Up applies every pending migration and returns how many ran.
func Up(db *sql.DB) (int, error) {
	return migrate.Exec(db, "postgres", Source(), migrate.Up)
}

// Down rolls back at most max migrations; zero rolls back all of them.
func Down(db *sql.DB, max int) (int, error) {
	return migrate.ExecMax(db, "postgres", Source(), migrate.Down, max)
}
