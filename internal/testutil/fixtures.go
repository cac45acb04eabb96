// fixtures.go - Decoded-record fixtures shared by package tests
package testutil

import "github.com/ifc-viewer/backend/internal/models"

// Gray is an opaque fixture color.
var Gray = models.RGBA{R: 0.5, G: 0.5, B: 0.5, A: 1}

// Glass is a translucent fixture color.
var Glass = models.RGBA{R: 0.2, G: 0.4, B: 0.8, A: 0.3}

// BoxRecord returns a mesh record holding one axis-aligned box between min
// and max. The geometry id is derived from the express id.
func BoxRecord(expressID int, min, max [3]float32, color models.RGBA) models.MeshRecord {
	return models.MeshRecord{
		ExpressID: expressID,
		Fragments: []models.Fragment{BoxFragment(expressID*10, min, max, color)},
	}
}

// BoxFragment returns a 12-triangle box fragment.
func BoxFragment(geometryID int, min, max [3]float32, color models.RGBA) models.Fragment {
	x0, y0, z0 := min[0], min[1], min[2]
	x1, y1, z1 := max[0], max[1], max[2]
	corners := [][3]float32{
		{x0, y0, z0}, {x1, y0, z0}, {x1, y1, z0}, {x0, y1, z0},
		{x0, y0, z1}, {x1, y0, z1}, {x1, y1, z1}, {x0, y1, z1},
	}
	vertices := make([]float32, 0, len(corners)*6)
	for _, c := range corners {
		vertices = append(vertices, c[0], c[1], c[2], 0, 1, 0)
	}
	return models.Fragment{
		GeometryID: geometryID,
		Color:      color,
		Vertices:   vertices,
		Indices: []uint32{
			0, 1, 2, 0, 2, 3, // back
			4, 6, 5, 4, 7, 6, // front
			0, 4, 5, 0, 5, 1, // bottom
			3, 2, 6, 3, 6, 7, // top
			0, 3, 7, 0, 7, 4, // left
			1, 5, 6, 1, 6, 2, // right
		},
	}
}

// Props returns an item property record with a single property set.
func Props(expressID int, kind string, props ...models.Property) models.ItemProperties {
	ip := models.ItemProperties{
		ExpressID: expressID,
		Kind:      kind,
		Name:      kind,
	}
	if len(props) > 0 {
		ip.PropertySets = []models.PropertySet{{Name: "Pset_Common", Properties: props}}
	}
	return ip
}

// Prop is shorthand for a single property.
func Prop(name string, value any) models.Property {
	return models.Property{Name: name, Value: value}
}
