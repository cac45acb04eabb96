package snapshot

import (
	"context"
	"errors"

	"github.com/ifc-viewer/backend/internal/models"
)

// ErrNotFound is returned when no snapshot exists for a file.
var ErrNotFound = errors.New("snapshot not found")

// Store persists item snapshots keyed by model file id.
type Store interface {
	// Save replaces the snapshot of a file.
	Save(ctx context.Context, fileID string, data []models.ItemSnapshot) error
	// Load returns the snapshot of a file, or ErrNotFound.
	Load(ctx context.Context, fileID string) ([]models.ItemSnapshot, error)
	Has(fileID string) bool
	Delete(fileID string) error
	List() []string
}

// CleanupOrphaned removes the snapshots of s whose file id is not in
// fileIDs and returns how many were removed.
func CleanupOrphaned(s Store, fileIDs []string) int {
	valid := make(map[string]bool, len(fileIDs))
	for _, id := range fileIDs {
		valid[id] = true
	}
	removed := 0
	for _, id := range s.List() {
		if valid[id] {
			continue
		}
		if err := s.Delete(id); err == nil {
			removed++
		}
	}
	return removed
}

// shortID truncates an id for logging.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
