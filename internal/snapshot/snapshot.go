// Package snapshot saves and restores the derived attributes of a model so
// that a reload of the same file can skip classification.
package snapshot

import (
	"github.com/ifc-viewer/backend/internal/models"
)

// Source is the part of a model snapshots read and write.
type Source interface {
	Items() []*models.Item
	ItemByID(expressID int) *models.Item
}

// GetDataToSave extracts the attribute set of every item that is selectable
// or always visible, in item order.
func GetDataToSave(src Source) []models.ItemSnapshot {
	var out []models.ItemSnapshot
	for _, it := range src.Items() {
		if !it.Visible() {
			continue
		}
		out = append(out, models.ItemSnapshot{
			ID:            it.ID,
			Kind:          it.Kind,
			Name:          it.Name,
			PropertySets:  it.PropertySets,
			Selectable:    it.Selectable,
			AlwaysVisible: it.AlwaysVisible,
			Links:         copyLinks(it.Links),
		})
	}
	return out
}

// RestoreData overwrites the full attribute set of every item that has an
// entry in data and returns how many items were restored. Items without an
// entry keep their current attributes; entries without an item are ignored.
func RestoreData(src Source, data []models.ItemSnapshot) int {
	n := 0
	for i := range data {
		snap := &data[i]
		it := src.ItemByID(snap.ID)
		if it == nil {
			continue
		}
		it.Kind = snap.Kind
		it.Name = snap.Name
		it.PropertySets = snap.PropertySets
		it.Selectable = snap.Selectable
		it.AlwaysVisible = snap.AlwaysVisible
		it.Links = copyLinks(snap.Links)
		n++
	}
	return n
}

func copyLinks(links map[string][]int) map[string][]int {
	if len(links) == 0 {
		return nil
	}
	out := make(map[string][]int, len(links))
	for name, ids := range links {
		out[name] = append([]int(nil), ids...)
	}
	return out
}
