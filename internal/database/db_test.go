package database

import (
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/pulsemetrics/pulseboard/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("expected health query to succeed: %v", err)
	}
}

func TestMigrateCreatesSchema(t *testing.T) {
	db := openTestDB(t)

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	for _, model := range []any{&models.Notification{}, &models.AlertRule{}, &models.Preference{}} {
		if !db.Migrator().HasTable(model) {
			t.Fatalf("expected table for %T", model)
		}
	}
}

func TestMigrateNilHandle(t *testing.T) {
	if err := Migrate(nil); err == nil {
		t.Fatal("expected error for nil database handle")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "pulse",
		Password: "secret",
		Name:     "pulseboard",
		Host:     "db.internal",
		Port:     5433,
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	for _, fragment := range []string{"host=db.internal", "port=5433", "user=pulse", "dbname=pulseboard", "password=secret", "sslmode=disable"} {
		if !strings.Contains(dsn, fragment) {
			t.Fatalf("dsn %q missing %q", dsn, fragment)
		}
	}
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	if _, err := buildPostgresDSN(Config{Host: "localhost"}); err == nil {
		t.Fatal("expected error without user and database name")
	}
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "pulse",
		Password: "secret",
		Name:     "pulseboard",
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	if !strings.HasPrefix(dsn, "pulse:secret@tcp(127.0.0.1:3306)/pulseboard?") {
		t.Fatalf("unexpected dsn %q", dsn)
	}
	if !strings.Contains(dsn, "parseTime=True") {
		t.Fatalf("dsn %q missing parseTime option", dsn)
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}
