// Package classify computes the derived attributes of every item in a model:
// its links to other items, whether it is selectable and whether it is
// always visible.
package classify

import (
	"sort"

	"github.com/ifc-viewer/backend/internal/matcher"
	"github.com/ifc-viewer/backend/internal/models"
)

// Source is the part of a model the classifier reads and writes.
type Source interface {
	Items() []*models.Item
	ItemByID(expressID int) *models.Item
}

// Options tune the classification pass.
type Options struct {
	// AlwaysVisibleWhenUnconstrained marks every item always visible when no
	// always-visible requirement is configured. Off by default.
	AlwaysVisibleWhenUnconstrained bool
}

// Stats summarises one classification pass.
type Stats struct {
	Items         int `json:"items"`
	Selectable    int `json:"selectable"`
	AlwaysVisible int `json:"alwaysVisible"`
	Linked        int `json:"linked"`
}

// Classify overwrites Links, Selectable and AlwaysVisible on every item of
// src. Links are computed first because selectable requirements may depend
// on them. Running it twice with the same input gives the same result.
func Classify(src Source, reqs models.RequirementSet, opts Options) Stats {
	items := src.Items()
	stats := Stats{Items: len(items)}

	for _, it := range items {
		it.Links = computeLinks(items, it, reqs.Links)
		if len(it.Links) > 0 {
			stats.Linked++
		}
	}

	for _, it := range items {
		it.Selectable = isSelectable(src, it, reqs.Selectable)
		it.AlwaysVisible = isAlwaysVisible(it, reqs.AlwaysVisible, opts)
		if it.Selectable {
			stats.Selectable++
		}
		if it.AlwaysVisible {
			stats.AlwaysVisible++
		}
	}
	return stats
}

// computeLinks returns, per link property name, the sorted ids of the other
// items sharing the item's value for that property. A link requirement
// whose property the item lacks, or holds with an empty value, contributes
// nothing; later requirements are still evaluated.
func computeLinks(items []*models.Item, it *models.Item, links []models.LinkRequirement) map[string][]int {
	var out map[string][]int
	for _, lr := range links {
		if lr.LinkPropertyName == "" {
			continue
		}
		value, ok := matcher.FindPropertyValue(it, lr.LinkPropertyName)
		if !ok || value == "" {
			continue
		}

		req := models.Requirement{
			RequiredProperties: append([]models.RequiredProperty{
				{Name: lr.LinkPropertyName, Value: value},
			}, lr.RequiredProperties...),
		}

		var ids []int
		for _, other := range items {
			if other == it || other.ID == it.ID {
				continue
			}
			if matcher.Matches(other, &req) {
				ids = append(ids, other.ID)
			}
		}
		if len(ids) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string][]int)
		}
		out[lr.LinkPropertyName] = mergeIDs(out[lr.LinkPropertyName], ids)
	}
	return out
}

func mergeIDs(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	merged := make([]int, 0, len(a)+len(b))
	for _, id := range append(a, b...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	sort.Ints(merged)
	return merged
}

func isSelectable(src Source, it *models.Item, reqs []models.SelectableRequirement) bool {
	for i := range reqs {
		sr := &reqs[i]
		if !matcher.Matches(it, &sr.Requirement) {
			continue
		}
		if sr.LinkRequirement == nil {
			return true
		}
		for _, id := range it.LinkedIDs() {
			if matcher.Matches(src.ItemByID(id), sr.LinkRequirement) {
				return true
			}
		}
	}
	return false
}

func isAlwaysVisible(it *models.Item, reqs []models.Requirement, opts Options) bool {
	if len(reqs) == 0 {
		return opts.AlwaysVisibleWhenUnconstrained
	}
	for i := range reqs {
		if !matcher.Matches(it, &reqs[i]) {
			return false
		}
	}
	return true
}
