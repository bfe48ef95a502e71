package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStoragePath(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	s := m.Storage("+15550001234")
	want := filepath.Join(m.Dir(), "session_+15550001234.json")
	if s.Path != want {
		t.Errorf("Path = %q, want %q", s.Path, want)
	}
	if m.Storage("+15550001234") != s {
		t.Error("Storage should return the cached instance")
	}
}

func TestStoreAndExists(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	if m.Exists(ctx, "+1555") {
		t.Fatal("Exists() = true before storing")
	}

	if err := m.Storage("+1555").StoreSession(ctx, []byte(`{"Version":1}`)); err != nil {
		t.Fatalf("StoreSession: %v", err)
	}
	if !m.Exists(ctx, "+1555") {
		t.Error("Exists() = false after storing")
	}

	data, err := m.Storage("+1555").LoadSession(ctx)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if string(data) != `{"Version":1}` {
		t.Errorf("LoadSession = %q", data)
	}
}

func TestDelete(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	if m.Delete("+1555") {
		t.Error("Delete() = true for missing session")
	}

	if err := m.Storage("+1555").StoreSession(ctx, []byte("x")); err != nil {
		t.Fatalf("StoreSession: %v", err)
	}
	if !m.Delete("+1555") {
		t.Error("Delete() = false for stored session")
	}
	if m.Exists(ctx, "+1555") {
		t.Error("session still exists after Delete")
	}
}

func TestList(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	for _, phone := range []string{"+1111", "+2222"} {
		if err := m.Storage(phone).StoreSession(ctx, []byte("data")); err != nil {
			t.Fatalf("StoreSession: %v", err)
		}
	}
	// Unrelated files are ignored
	if err := os.WriteFile(filepath.Join(m.Dir(), "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(m.Storage("+1111").Path, old, old); err != nil {
		t.Fatal(err)
	}

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d sessions, want 2", len(list))
	}
	if list[0].Phone != "+2222" || list[1].Phone != "+1111" {
		t.Errorf("List() order = %q, %q", list[0].Phone, list[1].Phone)
	}
	if list[0].Size != 4 {
		t.Errorf("Size = %d, want 4", list[0].Size)
	}
	if age := list[1].Age(time.Now()); age < 59*time.Minute {
		t.Errorf("Age() = %v, want about an hour", age)
	}
}

func TestSafeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"+1555", "+1555"},
		{" +1 555 ", "+1555"},
		{"../../etc/passwd", "etcpasswd"},
		{"a\\b\x00", "ab"},
	}
	for _, tt := range tests {
		if got := safeKey(tt.in); got != tt.want {
			t.Errorf("safeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
