package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newStore(t *testing.T) *AttachmentStore {
	t.Helper()
	store, err := NewAttachmentStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewAttachmentStore: %v", err)
	}
	return store
}

func TestSaveGeneratesOpaqueKey(t *testing.T) {
	store := newStore(t)

	key, err := store.Save([]byte("payload"), "boleta.pdf")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if strings.Contains(key, "boleta") {
		t.Errorf("key %q leaks the display name", key)
	}
	if !strings.HasSuffix(key, ".pdf") {
		t.Errorf("key %q should keep the extension", key)
	}

	path, err := store.Path(key)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading stored blob: %v", err)
	}
	if string(content) != "payload" {
		t.Errorf("stored content = %q", content)
	}
}

func TestSaveKeysAreUnique(t *testing.T) {
	store := newStore(t)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		key, err := store.Save([]byte("x"), "same.pdf")
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		if seen[key] {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = true
	}
}

func TestSaveDropsSuspiciousExtension(t *testing.T) {
	store := newStore(t)

	key, err := store.Save([]byte("x"), "weird.name.!!")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Ext(key) != "" {
		t.Errorf("key %q should carry no extension", key)
	}
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	store := newStore(t)

	if err := store.Delete("no-such-key.pdf"); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}

func TestDeleteRemovesBlob(t *testing.T) {
	store := newStore(t)

	key, err := store.Save([]byte("x"), "a.pdf")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	path, _ := store.Path(key)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("blob still exists after delete")
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	store := newStore(t)

	if _, err := store.Path("../outside.txt"); err == nil {
		t.Error("expected traversal key to be rejected")
	}
	if _, err := store.Path("/etc/passwd"); err == nil {
		t.Error("expected absolute key to be rejected")
	}
}
