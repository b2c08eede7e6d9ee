package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/ogembed/api/internal/database"
)

// TestDB creates an in-memory SQLite database with migrations applied.
// The database is automatically closed when the test completes.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("running migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db.DB
}

// TestEmbed represents a test embed row.
type TestEmbed struct {
	Code        string
	Title       string
	OwnerSecret string
	CreatedAt   time.Time
}

// CreateTestEmbed inserts an embed row directly, bypassing the store.
func CreateTestEmbed(t *testing.T, db *sql.DB, code, title, secret string) *TestEmbed {
	t.Helper()

	now := time.Now().UTC()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO embeds (code, title, owner_secret, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, code, title, secret, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("creating test embed: %v", err)
	}

	return &TestEmbed{
		Code:        code,
		Title:       title,
		OwnerSecret: secret,
		CreatedAt:   now,
	}
}
