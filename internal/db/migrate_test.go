package db

import (
	"strings"
	"testing"
	"testing/fstest"

	"propel/internal/db/migrations"
)

func TestExtractUp(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;\n"
	up := ExtractUp(content)
	if !strings.Contains(up, "CREATE TABLE a") || strings.Contains(up, "DROP TABLE") {
		t.Fatalf("unexpected up section: %q", up)
	}
	if got := ExtractUp("SELECT 1;"); got != "SELECT 1;" {
		t.Fatalf("content without markers should be returned as is, got %q", got)
	}
}

func TestMigrationFilesSorted(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_b.sql": {Data: []byte("SELECT 2;")},
		"0001_a.sql": {Data: []byte("SELECT 1;")},
		"README.md":  {Data: []byte("notes")},
	}
	files, err := migrationFiles(fsys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 || files[0] != "0001_a.sql" || files[1] != "0002_b.sql" {
		t.Fatalf("unexpected order: %v", files)
	}
}

func TestEmbeddedSchemaCoversTables(t *testing.T) {
	files, err := migrationFiles(migrations.FS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var all strings.Builder
	for _, f := range files {
		data, err := migrations.FS.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		all.WriteString(ExtractUp(string(data)))
	}
	schema := all.String()
	for _, table := range []string{"users", "projects", "project_donors", "project_updates",
		"project_milestones", "donations", "user_donation_history", "comments", "comment_replies", "outbox_events"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("schema missing table %s", table)
		}
	}
}
