package database

import (
	"strings"
	"testing"
)

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema()
	if err != nil {
		t.Fatalf("GenerateSchema() error = %v", err)
	}

	for _, table := range []string{"accounts", "profiles", "folders", "files", "collections"} {
		if !strings.Contains(schema, "CREATE TABLE "+table) {
			t.Errorf("schema missing table %s", table)
		}
	}
	if strings.Contains(schema, "schema_migrations") {
		t.Error("schema includes the migration tracking table")
	}

	lastTable := strings.LastIndex(schema, "CREATE TABLE")
	firstIndex := strings.Index(schema, "CREATE INDEX")
	if firstIndex < 0 || firstIndex < lastTable {
		t.Errorf("indexes should follow tables (last table at %d, first index at %d)", lastTable, firstIndex)
	}
}
