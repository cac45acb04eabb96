package snapshot

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ifc-viewer/backend/internal/models"
)

// DefaultCacheSize is the number of snapshots CachedStore keeps in memory.
const DefaultCacheSize = 16

// CachedStore serves repeated loads of the same file from memory.
type CachedStore struct {
	Store
	cache *lru.Cache[string, []models.ItemSnapshot]
}

// NewCachedStore wraps s with an LRU cache of size entries.
func NewCachedStore(s Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []models.ItemSnapshot](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{Store: s, cache: cache}, nil
}

// Save writes through and refreshes the cached copy.
func (cs *CachedStore) Save(ctx context.Context, fileID string, data []models.ItemSnapshot) error {
	if err := cs.Store.Save(ctx, fileID, data); err != nil {
		cs.cache.Remove(fileID)
		return err
	}
	cs.cache.Add(fileID, cloneSnapshots(data))
	return nil
}

// Load returns a copy of the cached snapshot or reads it from the wrapped store.
func (cs *CachedStore) Load(ctx context.Context, fileID string) ([]models.ItemSnapshot, error) {
	if data, ok := cs.cache.Get(fileID); ok {
		return cloneSnapshots(data), nil
	}
	data, err := cs.Store.Load(ctx, fileID)
	if err != nil {
		return nil, err
	}
	cs.cache.Add(fileID, cloneSnapshots(data))
	return data, nil
}

// Delete evicts and removes the snapshot.
func (cs *CachedStore) Delete(fileID string) error {
	cs.cache.Remove(fileID)
	return cs.Store.Delete(fileID)
}

// Cached reports how many snapshots are held in memory.
func (cs *CachedStore) Cached() int {
	return cs.cache.Len()
}

// cloneSnapshots copies data deep enough that callers cannot reach the
// cached property sets or links.
func cloneSnapshots(data []models.ItemSnapshot) []models.ItemSnapshot {
	if data == nil {
		return nil
	}
	out := make([]models.ItemSnapshot, len(data))
	for i, snap := range data {
		snap.PropertySets = clonePropertySets(snap.PropertySets)
		snap.Links = copyLinks(snap.Links)
		out[i] = snap
	}
	return out
}

func clonePropertySets(sets []models.PropertySet) []models.PropertySet {
	if sets == nil {
		return nil
	}
	out := make([]models.PropertySet, len(sets))
	for i, set := range sets {
		props := make([]models.Property, len(set.Properties))
		for j, p := range set.Properties {
			switch v := p.Value.(type) {
			case []float64:
				p.Value = append([]float64(nil), v...)
			case []any:
				p.Value = append([]any(nil), v...)
			}
			props[j] = p
		}
		set.Properties = props
		out[i] = set
	}
	return out
}
