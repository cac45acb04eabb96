package matcher

import (
	"github.com/ifc-viewer/backend/internal/models"
)

// Source is the read-only view of a model the query helpers walk.
type Source interface {
	Items() []*models.Item
}

// Filter returns the handles of every item of src that satisfies req, in
// item order.
func Filter(src Source, req *models.Requirement) []models.ItemHandle {
	var out []models.ItemHandle
	for i, it := range src.Items() {
		if Matches(it, req) {
			out = append(out, models.ItemHandle(i))
		}
	}
	return out
}

// First returns the handle of the first item of src satisfying req.
func First(src Source, req *models.Requirement) (models.ItemHandle, bool) {
	for i, it := range src.Items() {
		if Matches(it, req) {
			return models.ItemHandle(i), true
		}
	}
	return models.NoItem, false
}
