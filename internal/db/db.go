package db

import (
	"fmt"

	"auditbay/internal/audit"
	"auditbay/internal/auth"
	"auditbay/internal/queue"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

// AutoMigrateAndIndexes creates the tables plus the raw indexes the claim and
// admin queries depend on. The raw SQL only runs on postgres so the sqlite
// test harness can migrate the same models.
func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&audit.Audit{},
		&queue.QueueItem{},
		&auth.AdminUser{},
	); err != nil {
		return err
	}

	if gdb.Dialector.Name() != "postgres" {
		return nil
	}

	stmts := []string{
		// Claim scans pending rows oldest-first.
		`create index if not exists idx_queue_claim on queue_items(status, created_at);`,
		`create index if not exists idx_audits_status_created on audits(status, created_at desc);`,
		`create index if not exists idx_audits_paid on audits(paid, created_at desc);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
