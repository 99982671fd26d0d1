package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir, false)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.SavedCount() != 0 {
		t.Error("Expected initial count to be 0")
	}
	if manager.Exists("Gallery/pic-1.jpg") {
		t.Error("Expected Exists to return false for missing file")
	}

	testData := []byte("image bytes")
	if err := manager.Save(bytes.NewReader(testData), "Gallery/pic-1.jpg"); err != nil {
		t.Fatalf("Failed to save image: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "Gallery", "pic-1.jpg")
	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Error("File content does not match expected data")
	}

	if !manager.Exists("Gallery/pic-1.jpg") {
		t.Error("Expected Exists to return true after save")
	}
	if manager.SavedCount() != 1 {
		t.Errorf("Expected count to be 1, got %d", manager.SavedCount())
	}

	entries, _ := os.ReadDir(filepath.Join(tempDir, "Gallery"))
	if len(entries) != 1 {
		t.Errorf("Expected only the final file, found %d entries", len(entries))
	}
}

func TestExistsSeesFilesFromEarlierRuns(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tempDir, "Old"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "Old", "a.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	m, _ := NewManager(tempDir, false)
	if !m.Exists("Old/a.jpg") {
		t.Error("Expected existing file to be detected")
	}

	overwriting, _ := NewManager(tempDir, true)
	if overwriting.Exists("Old/a.jpg") {
		t.Error("Overwrite mode should never report a file as existing")
	}
}

func TestUnsafePaths(t *testing.T) {
	m, _ := NewManager(t.TempDir(), false)

	for _, name := range []string{"", ".", "..", "../escape.jpg", "a/../../escape.jpg", "/etc/passwd"} {
		err := m.Save(strings.NewReader("x"), name)
		if !errors.Is(err, ErrUnsafePath) {
			t.Errorf("Save(%q) error = %v, want ErrUnsafePath", name, err)
		}
	}

	if _, err := m.Resolve("a/../b.jpg"); err != nil {
		t.Errorf("Expected in-tree dot segments to resolve, got %v", err)
	}
}
