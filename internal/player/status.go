package player

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Status is the externally visible now-playing record, persisted so the
// "now" command (and status bars polling it) can read the engine's
// state without talking to it.
type Status struct {
	State    string    `json:"state"`
	Station  string    `json:"station,omitempty"`
	Artist   string    `json:"artist,omitempty"`
	Title    string    `json:"title,omitempty"`
	Album    string    `json:"album,omitempty"`
	CoverURL string    `json:"cover_url,omitempty"`
	Since    time.Time `json:"since,omitempty"`

	// Durations persist as nanoseconds, the encoding/json default.
	Elapsed time.Duration `json:"elapsed"`
	Total   time.Duration `json:"total"`
}

// StatusFile persists Status snapshots with thread-safe access.
type StatusFile struct {
	mu       sync.Mutex
	filePath string
}

// NewStatusFile creates a StatusFile. An empty path disables
// persistence.
func NewStatusFile(filePath string) *StatusFile {
	return &StatusFile{filePath: filePath}
}

// Write replaces the persisted status.
func (s *StatusFile) Write(status Status) error {
	if s.filePath == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Write atomically via temp file + rename
	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.filePath)
}

// ReadStatus loads the persisted status from filePath.
func ReadStatus(filePath string) (*Status, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// DefaultStatusPath returns the conventional location of the status
// file under the data directory.
func DefaultStatusPath(dataDir string) string {
	return filepath.Join(dataDir, "status.json")
}
