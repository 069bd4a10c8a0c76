package dbtest

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gigflow/gigflow-backend/internal/db"
)

// DatabaseURLEnv names the Postgres server used by OpenPostgres.
const DatabaseURLEnv = "TEST_DATABASE_URL"

// OpenPostgres returns a database on the server named by TEST_DATABASE_URL,
// isolated in a fresh schema that is dropped on cleanup. It skips t when the
// variable is unset. Unlike Open it keeps a real connection pool, so
// concurrent transactions overlap and row locks apply.
func OpenPostgres(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := os.Getenv(DatabaseURLEnv)
	if dsn == "" {
		t.Skipf("%s not set", DatabaseURLEnv)
	}

	admin, err := gorm.Open(postgres.Open(dsn), db.Config(nil))
	if err != nil {
		t.Skipf("cannot connect to test database: %v", err)
	}
	adminSQL, err := admin.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}

	schema := fmt.Sprintf("gigflow_test_%d_%d", os.Getpid(), seq.Add(1))
	if err := admin.Exec("CREATE SCHEMA " + schema).Error; err != nil {
		_ = adminSQL.Close()
		t.Fatalf("create schema: %v", err)
	}

	gdb, err := gorm.Open(postgres.Open(withSearchPath(dsn, schema)), db.Config(nil))
	if err != nil {
		t.Fatalf("open schema %s: %v", schema, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(20)

	t.Cleanup(func() {
		_ = sqlDB.Close()
		if err := admin.Exec("DROP SCHEMA " + schema + " CASCADE").Error; err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
		_ = adminSQL.Close()
	})

	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gdb
}

// withSearchPath pins every pooled connection to schema. URL and
// keyword/value DSNs are both accepted.
func withSearchPath(dsn, schema string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err == nil {
			q := u.Query()
			q.Set("search_path", schema)
			u.RawQuery = q.Encode()
			return u.String()
		}
	}
	return dsn + " search_path=" + schema
}
