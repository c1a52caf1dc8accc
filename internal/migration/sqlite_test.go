package migration

import (
	"testing"

	"github.com/smallbiznis/eventflow/pkg/db"
)

func TestApplySQLiteIsRepeatable(t *testing.T) {
	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := ApplySQLite(conn); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := ApplySQLite(conn); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	var count int64
	if err := conn.Raw(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'registrations'`).Scan(&count).Error; err != nil {
		t.Fatalf("inspect schema: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected registrations table, got %d", count)
	}
}

func TestActiveRegistrationIndexAllowsCancelledDuplicates(t *testing.T) {
	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := ApplySQLite(conn); err != nil {
		t.Fatalf("apply: %v", err)
	}

	insert := `INSERT INTO registrations (id, event_id, user_id, status, qr_code, created_at, updated_at)
		VALUES (?, 1, 1, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
	if err := conn.Exec(insert, 1, "CANCELLED", "qr-1").Error; err != nil {
		t.Fatalf("insert cancelled: %v", err)
	}
	if err := conn.Exec(insert, 2, "CONFIRMED", "qr-2").Error; err != nil {
		t.Fatalf("insert confirmed: %v", err)
	}
	if err := conn.Exec(insert, 3, "PENDING", "qr-3").Error; err == nil {
		t.Fatalf("expected second active registration to be rejected")
	}
}
