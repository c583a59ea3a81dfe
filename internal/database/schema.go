package database

import (
	"database/sql"
	"fmt"
	"strings"

	"academic-vault/internal/database/migrations"
)

// GenerateSchema migrates a scratch in-memory database and returns the
// resulting CREATE statements, tables first and then indexes.
func GenerateSchema() (string, error) {
	db, err := OpenConnection(":memory:")
	if err != nil {
		return "", fmt.Errorf("opening scratch database: %w", err)
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		return "", err
	}
	return extractSchema(db)
}

// extractSchema reads the CREATE statements from sqlite_master, excluding
// SQLite internals and the migration tracking table.
func extractSchema(db *sql.DB) (string, error) {
	const query = `
		SELECT sql || ';'
		FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY
		  CASE type
		    WHEN 'table' THEN 1
		    WHEN 'index' THEN 2
		  END,
		  name`

	rows, err := db.Query(query)
	if err != nil {
		return "", fmt.Errorf("querying schema: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	b.WriteString("-- Generated from internal/database/migrations/files by 'av db schema'.\n\n")
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("scanning schema: %w", err)
		}
		b.WriteString(stmt)
		b.WriteString("\n\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading schema: %w", err)
	}
	return b.String(), nil
}
