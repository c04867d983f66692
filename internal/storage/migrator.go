package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Migrator applies versioned schema migrations.
//
// Applied versions are tracked in schema_migrations. Each migration runs in
// its own transaction together with its tracking row, so a failed migration
// leaves no trace and is retried on the next start.
type Migrator struct {
	// db is the database connection used for migrations
	db *gorm.DB

	// migrations holds all registered migrations sorted by version
	migrations []Migration
}

// Migration is a single schema change.
type Migration struct {
	// Version is the migration version number (e.g., 1, 2, 3...)
	Version int

	// Name is a human-readable description of the migration
	Name string

	// Up applies the migration inside a transaction
	Up func(tx *gorm.DB) error
}

// MigrationRecord is one applied migration.
type MigrationRecord struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false" json:"version"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	AppliedAt time.Time `gorm:"not null" json:"applied_at"`
}

// TableName returns the database table name for MigrationRecord.
func (*MigrationRecord) TableName() string {
	return "schema_migrations"
}

// NewMigrator creates a migrator with the built-in migrations registered.
func NewMigrator(db *gorm.DB) (*Migrator, error) {
	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	m := &Migrator{db: db}
	m.registerBuiltinMigrations()
	return m, nil
}

// registerBuiltinMigrations registers the schema history of PMON.
func (m *Migrator) registerBuiltinMigrations() {
	m.AddMigration(Migration{
		Version: 1,
		Name:    "create_core_tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&Tenant{},
				&Server{},
				&Service{},
				&Monitor{},
				&AlertChannel{},
				&AlertRule{},
				&AlertHistory{},
				&SchedulerLease{},
			)
		},
	})

	// Databases from before scheduling was persisted have enabled monitors
	// without a next run. Make them due now instead of never.
	m.AddMigration(Migration{
		Version: 2,
		Name:    "backfill_monitor_next_run",
		Up: func(tx *gorm.DB) error {
			return tx.Model(&Monitor{}).
				Where("enabled = ? AND next_run_at IS NULL", true).
				UpdateColumn("next_run_at", time.Now().UTC()).Error
		},
	})
}

// AddMigration registers a migration, keeping the list sorted by version.
func (m *Migrator) AddMigration(migration Migration) {
	m.migrations = append(m.migrations, migration)
	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})
}

// Migrate applies all pending migrations in version order.
func (m *Migrator) Migrate(ctx context.Context) error {
	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}

	for _, migration := range pending {
		log.Info().Int("version", migration.Version).Str("name", migration.Name).Msg("Applying migration")

		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{
				Version:   migration.Version,
				Name:      migration.Name,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}
	}

	if len(pending) > 0 {
		log.Info().Int("applied", len(pending)).Msg("Database migrations complete")
	}
	return nil
}

// Status returns the applied migrations ordered by version.
func (m *Migrator) Status(ctx context.Context) ([]MigrationRecord, error) {
	var records []MigrationRecord
	if err := m.db.WithContext(ctx).Order("version ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query migration status: %w", err)
	}
	return records, nil
}

// Pending returns the migrations that have not been applied yet.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	records, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}

	applied := make(map[int]bool, len(records))
	for _, r := range records {
		applied[r.Version] = true
	}

	var pending []Migration
	for _, migration := range m.migrations {
		if !applied[migration.Version] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}
