package graph

import (
	"fmt"

	"github.com/ifc-viewer/backend/internal/models"
)

// AddRecord adds the item of a decoded mesh record and one primitive per
// fragment. Geometries are shared by geometry id and opacity, materials by
// color.
func (m *Model) AddRecord(rec models.MeshRecord) (models.ItemHandle, error) {
	h := m.AddItem(rec.ExpressID)
	for i, frag := range rec.Fragments {
		geomID, err := m.addGeometry(frag)
		if err != nil {
			return h, fmt.Errorf("item %d fragment %d: %w", rec.ExpressID, i, err)
		}
		mat := m.Materials.GetOrCreate(frag.Color.MaterialID(), func() *models.Material {
			return models.NewMaterial(frag.Color)
		})
		if _, err := m.AddPrimitive(h, geomID, mat.ID, frag.Transform); err != nil {
			return h, fmt.Errorf("item %d fragment %d: %w", rec.ExpressID, i, err)
		}
	}
	return h, nil
}

func (m *Model) addGeometry(frag models.Fragment) (string, error) {
	id := models.GeometryKey(frag.GeometryID, frag.Color.Opaque())
	if _, ok := m.Geometries.Get(id); ok {
		return id, nil
	}
	if len(frag.Vertices)%6 != 0 {
		return "", fmt.Errorf("vertex buffer length %d is not a multiple of 6", len(frag.Vertices))
	}
	n := len(frag.Vertices) / 6
	g := &models.Geometry{
		ID:        id,
		Positions: make([]float32, 0, n*3),
		Normals:   make([]float32, 0, n*3),
		Indices:   frag.Indices,
	}
	for i := 0; i < len(frag.Vertices); i += 6 {
		g.Positions = append(g.Positions, frag.Vertices[i], frag.Vertices[i+1], frag.Vertices[i+2])
		g.Normals = append(g.Normals, frag.Vertices[i+3], frag.Vertices[i+4], frag.Vertices[i+5])
	}
	m.Geometries.Put(g)
	return id, nil
}
