// Package graph holds the in-memory model of a loaded building file: an
// arena of items and primitives addressed by handle, plus the shared
// geometry and material caches the renderer consumes.
package graph

import (
	"fmt"

	"cogentcore.org/core/math32"
	"github.com/ifc-viewer/backend/internal/models"
)

// Model is the root container of a loaded file.
//
// Items keep their decode order. Primitives store the handle of their owning
// item and items store the ordered handles of their primitives, so both
// directions can be walked without pointers between the two.
type Model struct {
	items      []*models.Item
	primitives []*models.Primitive
	index      map[int]models.ItemHandle

	Geometries           *GeometryCache
	Materials            *MaterialCache
	HoverMaterials       *MaterialCache
	SelectMaterials      *MaterialCache
	TransparentMaterials *MaterialCache

	translation math32.Vector3
	bounds      map[models.PrimitiveHandle]math32.Box3
	disposed    bool
}

// DisposeStats counts the resources released by Dispose.
type DisposeStats struct {
	Geometries int `json:"geometries"`
	Materials  int `json:"materials"`
	Items      int `json:"items"`
}

// New creates an empty model.
func New() *Model {
	return &Model{
		index:                make(map[int]models.ItemHandle),
		Geometries:           newGeometryCache(),
		Materials:            newMaterialCache(),
		HoverMaterials:       newMaterialCache(),
		SelectMaterials:      newMaterialCache(),
		TransparentMaterials: newMaterialCache(),
		bounds:               make(map[models.PrimitiveHandle]math32.Box3),
	}
}

// AddItem appends an item for expressID, or returns the existing handle
// when the id is already present.
func (m *Model) AddItem(expressID int) models.ItemHandle {
	if h, ok := m.index[expressID]; ok {
		return h
	}
	h := models.ItemHandle(len(m.items))
	m.items = append(m.items, &models.Item{ID: expressID})
	m.index[expressID] = h
	return h
}

// SetProperties copies the queried kind, name and property sets onto an item.
func (m *Model) SetProperties(h models.ItemHandle, props models.ItemProperties) {
	it := m.Item(h)
	if it == nil {
		return
	}
	it.Kind = props.Kind
	it.Name = props.Name
	it.PropertySets = props.PropertySets
}

// AddPrimitive attaches a primitive to item h. The material must already be
// cached so that no primitive ever references a missing material.
func (m *Model) AddPrimitive(h models.ItemHandle, geometryID, materialID string, transform []float32) (models.PrimitiveHandle, error) {
	it := m.Item(h)
	if it == nil {
		return -1, fmt.Errorf("unknown item handle %d", h)
	}
	mat, ok := m.Materials.Get(materialID)
	if !ok {
		return -1, fmt.Errorf("material %s is not cached", materialID)
	}
	if _, ok := m.Geometries.Get(geometryID); !ok {
		return -1, fmt.Errorf("geometry %s is not cached", geometryID)
	}
	if transform != nil && len(transform) != 16 {
		return -1, fmt.Errorf("transform must have 16 elements, got %d", len(transform))
	}

	p := models.PrimitiveHandle(len(m.primitives))
	m.primitives = append(m.primitives, &models.Primitive{
		Item:       h,
		GeometryID: geometryID,
		MaterialID: materialID,
		Transform:  transform,
		Material:   mat,
		Visible:    true,
	})
	it.Primitives = append(it.Primitives, p)
	return p, nil
}

// Len returns the number of items.
func (m *Model) Len() int {
	return len(m.items)
}

// PrimitiveCount returns the number of primitives.
func (m *Model) PrimitiveCount() int {
	return len(m.primitives)
}

// Item returns the item for h, or nil when h is out of range.
func (m *Model) Item(h models.ItemHandle) *models.Item {
	if h < 0 || int(h) >= len(m.items) {
		return nil
	}
	return m.items[h]
}

// Items returns all items in decode order. The slice must not be modified.
func (m *Model) Items() []*models.Item {
	return m.items
}

// Lookup resolves an express id to its handle.
func (m *Model) Lookup(expressID int) (models.ItemHandle, bool) {
	h, ok := m.index[expressID]
	return h, ok
}

// ItemByID returns the item with the given express id, or nil.
func (m *Model) ItemByID(expressID int) *models.Item {
	h, ok := m.index[expressID]
	if !ok {
		return nil
	}
	return m.items[h]
}

// Primitive returns the primitive for p, or nil when p is out of range.
func (m *Model) Primitive(p models.PrimitiveHandle) *models.Primitive {
	if p < 0 || int(p) >= len(m.primitives) {
		return nil
	}
	return m.primitives[p]
}

// PrimitivesOf returns the primitives owned by item h in attach order.
func (m *Model) PrimitivesOf(h models.ItemHandle) []*models.Primitive {
	it := m.Item(h)
	if it == nil {
		return nil
	}
	out := make([]*models.Primitive, 0, len(it.Primitives))
	for _, p := range it.Primitives {
		out = append(out, m.primitives[p])
	}
	return out
}

// Disposed reports whether Dispose has run.
func (m *Model) Disposed() bool {
	return m.disposed
}

// Dispose releases every geometry and material, including generated hover,
// select and transparent variants, and empties the arena. Calling it again
// releases nothing.
func (m *Model) Dispose() DisposeStats {
	if m.disposed {
		return DisposeStats{}
	}
	stats := DisposeStats{Items: len(m.items)}
	stats.Geometries = m.Geometries.dispose()
	stats.Materials = m.Materials.dispose() +
		m.HoverMaterials.dispose() +
		m.SelectMaterials.dispose() +
		m.TransparentMaterials.dispose()

	for _, p := range m.primitives {
		p.Material = nil
	}
	m.items = nil
	m.primitives = nil
	m.index = make(map[int]models.ItemHandle)
	m.bounds = make(map[models.PrimitiveHandle]math32.Box3)
	m.disposed = true
	return stats
}
