package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(path)); os.IsNotExist(err) {
		t.Error("parent directories were not created")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 schema version row, got %d", count)
	}
}

func TestDBGetSetDelete(t *testing.T) {
	testKV(t, setupTestDB(t))
}

func TestMemoryKVGetSetDelete(t *testing.T) {
	testKV(t, NewMemoryKV())
}

// testKV exercises the KV contract against any backend.
func testKV(t *testing.T, kv interface {
	KV
	Keys(ctx context.Context, prefix string) ([]string, error)
}) {
	t.Helper()
	ctx := context.Background()

	got, err := kv.Get(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("Get(missing) = %q, %v; want nil, nil", got, err)
	}

	if err := kv.Set(ctx, "project:1", []byte(`{"id":"1"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := kv.Set(ctx, "project:1", []byte(`{"id":"1","name":"x"}`)); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if err := kv.Set(ctx, "settings:defaults", []byte(`{}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err = kv.Get(ctx, "project:1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"id":"1","name":"x"}` {
		t.Errorf("Get = %s", got)
	}

	keys, err := kv.Keys(ctx, "project:")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "project:1" {
		t.Errorf("Keys(project:) = %v", keys)
	}

	if err := kv.Delete(ctx, "project:1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := kv.Delete(ctx, "project:1"); err != nil {
		t.Fatalf("Delete of absent key failed: %v", err)
	}
	if got, _ := kv.Get(ctx, "project:1"); got != nil {
		t.Errorf("Get after delete = %s", got)
	}
}

func TestMemoryKVCopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	value := []byte("abc")
	kv.Set(ctx, "k", value)
	value[0] = 'z'

	got, _ := kv.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored value aliased caller slice: %s", got)
	}
}

func TestClosedDB(t *testing.T) {
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}

	if _, err := db.Get(context.Background(), "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after close = %v, want ErrClosed", err)
	}
	if err := db.Set(context.Background(), "k", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Set after close = %v, want ErrClosed", err)
	}
}

func TestDefaultDBPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	if got := DefaultDBPath(); got != "/tmp/xdg/foreman/foreman.db" {
		t.Errorf("DefaultDBPath() = %q", got)
	}
}
