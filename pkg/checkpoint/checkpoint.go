package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"imgscraper/pkg/logger"
)

// Image is one emitted download request.
type Image struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Checkpoint records what runs against one gallery URL found
type Checkpoint struct {
	URL        string            `json:"url"`
	Profile    string            `json:"profile"`
	LastRunID  string            `json:"last_run_id"`
	LastReason string            `json:"last_reason"`
	Runs       int               `json:"runs"`
	Images     map[string]string `json:"images"` // url -> filename
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Version    int               `json:"version"`

	mu sync.Mutex
}

// Manager handles checkpoint operations for one gallery URL
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a checkpoint manager for galleryURL. The file name
// is derived from a hash of the URL.
func NewManager(galleryURL string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerInDir(filepath.Join(dataDir, "checkpoints"), galleryURL)
}

// NewManagerInDir is NewManager with an explicit directory.
func NewManagerInDir(dir, galleryURL string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	sum := sha256.Sum256([]byte(galleryURL))
	name := hex.EncodeToString(sum[:8]) + ".checkpoint.json"

	return &Manager{
		checkpointPath: filepath.Join(dir, name),
		logger:         logger.GetLogger().WithField("component", "checkpoint"),
	}, nil
}

// Path returns the checkpoint file location.
func (m *Manager) Path() string {
	return m.checkpointPath
}

// LoadOrCreate returns the stored checkpoint, or a fresh one for
// galleryURL when none exists.
func (m *Manager) LoadOrCreate(galleryURL, profile string) (*Checkpoint, error) {
	cp, err := m.Load()
	if err != nil {
		return nil, err
	}
	if cp != nil {
		cp.Profile = profile
		return cp, nil
	}

	return New(galleryURL, profile), nil
}

// New returns an empty checkpoint for galleryURL.
func New(galleryURL, profile string) *Checkpoint {
	now := time.Now()
	return &Checkpoint{
		URL:       galleryURL,
		Profile:   profile,
		Images:    make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Load loads an existing checkpoint. It returns nil, nil when there is
// none.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Images == nil {
		cp.Images = make(map[string]string)
	}

	m.logger.DebugWithFields("Checkpoint loaded", map[string]interface{}{
		"url":        cp.URL,
		"images":     len(cp.Images),
		"updated_at": cp.UpdatedAt,
	})

	return &cp, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.mu.Lock()
	cp.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(cp, "", "  ")
	cp.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"url":    cp.URL,
		"images": len(cp.Images),
	})
	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// RecordImage notes an emitted image. It reports whether the URL is new
// to this gallery. Safe for concurrent use.
func (cp *Checkpoint) RecordImage(url, filename string) bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	_, seen := cp.Images[url]
	cp.Images[url] = filename
	return !seen
}

// FinishRun stores the outcome of a run.
func (cp *Checkpoint) FinishRun(runID, reason string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.LastRunID = runID
	cp.LastReason = reason
	cp.Runs++
}

// Known reports whether url was emitted by an earlier run.
func (cp *Checkpoint) Known(url string) bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	_, ok := cp.Images[url]
	return ok
}

// List returns the recorded images sorted by filename.
func (cp *Checkpoint) List() []Image {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	out := make([]Image, 0, len(cp.Images))
	for u, f := range cp.Images {
		out = append(out, Image{URL: u, Filename: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "imgscraper")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "imgscraper")
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "imgscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "imgscraper")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
