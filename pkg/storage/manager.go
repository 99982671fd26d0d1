package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrUnsafePath is returned for relative names that would escape the
// output directory.
var ErrUnsafePath = errors.New("path escapes output directory")

// Manager writes images below a single output directory. Names are the
// relative "folder/file" targets produced by the naming package.
type Manager struct {
	outputDir string
	overwrite bool
	saved     map[string]bool
	mu        sync.RWMutex
}

// NewManager creates a new storage manager
func NewManager(outputDir string, overwrite bool) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{
		outputDir: outputDir,
		overwrite: overwrite,
		saved:     make(map[string]bool),
	}, nil
}

// Resolve maps a relative target onto the output directory.
func (m *Manager) Resolve(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if name == "" || clean == "." || filepath.IsAbs(clean) ||
		clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Join(m.outputDir, clean), nil
}

// Exists reports whether name should be skipped: it is already on disk
// and overwriting is disabled.
func (m *Manager) Exists(name string) bool {
	if m.overwrite {
		return false
	}
	m.mu.RLock()
	cached := m.saved[name]
	m.mu.RUnlock()
	if cached {
		return true
	}

	path, err := m.Resolve(name)
	if err != nil {
		return false
	}
	if _, err := os.Stat(path); err == nil {
		m.mu.Lock()
		m.saved[name] = true
		m.mu.Unlock()
		return true
	}
	return false
}

// Save writes r to name atomically via a temporary file and rename.
func (m *Manager) Save(r io.Reader, name string) error {
	path, err := m.Resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	out, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	_, err = io.Copy(out, r)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to save image data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved[name] = true
	m.mu.Unlock()
	return nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// SavedCount returns the number of images saved or found on disk this run.
func (m *Manager) SavedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}
