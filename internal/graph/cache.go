package graph

import "github.com/ifc-viewer/backend/internal/models"

// MaterialCache holds materials by id.
type MaterialCache struct {
	entries map[string]*models.Material
}

func newMaterialCache() *MaterialCache {
	return &MaterialCache{entries: make(map[string]*models.Material)}
}

// Get returns the cached material for id.
func (c *MaterialCache) Get(id string) (*models.Material, bool) {
	m, ok := c.entries[id]
	return m, ok
}

// Put stores m under m.ID, replacing any previous entry.
func (c *MaterialCache) Put(m *models.Material) {
	c.entries[m.ID] = m
}

// GetOrCreate returns the material for id, building and storing it on a miss.
func (c *MaterialCache) GetOrCreate(id string, build func() *models.Material) *models.Material {
	if m, ok := c.entries[id]; ok {
		return m
	}
	m := build()
	m.ID = id
	c.Put(m)
	return m
}

// Len returns the number of cached materials.
func (c *MaterialCache) Len() int {
	return len(c.entries)
}

func (c *MaterialCache) dispose() int {
	n := 0
	for _, m := range c.entries {
		if !m.Disposed {
			m.Dispose()
			n++
		}
	}
	c.entries = make(map[string]*models.Material)
	return n
}

// GeometryCache holds deduplicated geometries by key.
type GeometryCache struct {
	entries map[string]*models.Geometry
}

func newGeometryCache() *GeometryCache {
	return &GeometryCache{entries: make(map[string]*models.Geometry)}
}

// Get returns the cached geometry for id.
func (c *GeometryCache) Get(id string) (*models.Geometry, bool) {
	g, ok := c.entries[id]
	return g, ok
}

// Put stores g under g.ID.
func (c *GeometryCache) Put(g *models.Geometry) {
	c.entries[g.ID] = g
}

// Len returns the number of cached geometries.
func (c *GeometryCache) Len() int {
	return len(c.entries)
}

func (c *GeometryCache) dispose() int {
	n := 0
	for _, g := range c.entries {
		if !g.Disposed {
			g.Dispose()
			n++
		}
	}
	c.entries = make(map[string]*models.Geometry)
	return n
}
