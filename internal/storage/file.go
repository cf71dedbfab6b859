package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rewired-gh/predictle/internal/models"
)

// FileStore keeps score values in memory and writes them through to a JSON
// file on every save.
type FileStore struct {
	values map[string]string
	mu     sync.RWMutex

	// Configuration
	filePath        string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// PersistenceFile represents the file structure for JSON persistence
type PersistenceFile struct {
	Version string            `json:"version"`
	SavedAt time.Time         `json:"saved_at"`
	Values  map[string]string `json:"values"`
}

// NewFileStore creates a FileStore. An empty filePath uses the OS temp
// directory.
func NewFileStore(filePath string, filePermissions, dirPermissions os.FileMode) *FileStore {
	// Use OS-appropriate tmp directory if no path provided
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "predictle", "scores.json")
	}
	if filePermissions == 0 {
		filePermissions = 0o600
	}
	if dirPermissions == 0 {
		dirPermissions = 0o755
	}

	return &FileStore{
		values:          make(map[string]string),
		filePath:        filePath,
		filePermissions: filePermissions,
		dirPermissions:  dirPermissions,
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.filePath
}

// Restore reads values from file. A missing file is an empty store.
func (s *FileStore) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clean up any stale temp files from previous crashes
	tempPath := s.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	// Check if file exists
	if _, err := os.Stat(s.filePath); os.IsNotExist(err) {
		// No file to load, start fresh
		return nil
	}

	jsonData, err := os.ReadFile(s.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data PersistenceFile
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	s.values = data.Values
	if s.values == nil {
		s.values = make(map[string]string)
	}
	return nil
}

// Load returns the saved state for mode.
func (s *FileStore) Load(_ context.Context, mode models.Mode) (models.ScoreState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decode(mode, s.values)
}

// Save persists the store with mode's values replaced. Memory only changes
// once the file is on disk.
func (s *FileStore) Save(_ context.Context, mode models.Mode, state models.ScoreState) error {
	if err := checkSave(mode, state); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(s.values)+len(fields))
	for k, v := range s.values {
		next[k] = v
	}
	for k, v := range encode(mode, state) {
		next[k] = v
	}
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

// persistLocked writes values to disk. s.mu must be held.
func (s *FileStore) persistLocked(values map[string]string) error {
	// Create data directory if needed
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, s.dirPermissions); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data := PersistenceFile{
		Version: "1.0",
		SavedAt: time.Now(),
		Values:  values,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temporary file first (atomic write)
	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, s.filePermissions); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	// Rename temp file to actual file
	if err := os.Rename(tempPath, s.filePath); err != nil {
		_ = os.Remove(tempPath) // Clean up temp file on rename failure
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// Close is a no-op; every Save is already on disk.
func (s *FileStore) Close() error { return nil }
