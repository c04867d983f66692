package storage

import (
	"context"
	"testing"

	"gorm.io/gorm"
)

func TestMigrator(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	t.Run("Built-in migrations are applied on open", func(t *testing.T) {
		m, err := NewMigrator(s.DB())
		if err != nil {
			t.Fatalf("Failed to create migrator: %v", err)
		}

		records, err := m.Status(ctx)
		if err != nil {
			t.Fatalf("Failed to read status: %v", err)
		}
		if len(records) != 2 || records[0].Version != 1 || records[1].Version != 2 {
			t.Errorf("Expected versions 1 and 2 applied, got %+v", records)
		}

		pending, err := m.Pending(ctx)
		if err != nil {
			t.Fatalf("Failed to read pending: %v", err)
		}
		if len(pending) != 0 {
			t.Errorf("Expected no pending migrations, got %d", len(pending))
		}
	})

	t.Run("Migrate is idempotent", func(t *testing.T) {
		m, _ := NewMigrator(s.DB())
		if err := m.Migrate(ctx); err != nil {
			t.Fatalf("Expected second run to succeed, got: %v", err)
		}
	})

	t.Run("Failed migration is not recorded", func(t *testing.T) {
		m, _ := NewMigrator(s.DB())
		m.AddMigration(Migration{
			Version: 99,
			Name:    "broken",
			Up: func(tx *gorm.DB) error {
				return tx.Exec("ALTER TABLE no_such_table ADD COLUMN x INTEGER").Error
			},
		})

		if err := m.Migrate(ctx); err == nil {
			t.Fatal("Expected broken migration to fail")
		}

		pending, _ := m.Pending(ctx)
		if len(pending) != 1 || pending[0].Version != 99 {
			t.Errorf("Expected migration 99 still pending, got %+v", pending)
		}
	})
}
