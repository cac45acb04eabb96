package viewer

import (
	"cogentcore.org/core/math32"
	"github.com/ifc-viewer/backend/internal/graph"
	"github.com/ifc-viewer/backend/internal/models"
)

// Picker finds the nearest item hit by ray whose item passes accept.
type Picker interface {
	Pick(m *graph.Model, ray math32.Ray, accept func(*models.Item) bool) (models.ItemHandle, bool)
}

// Raycaster picks by intersecting the ray with every visible triangle.
// Primitive bounds are tested first to skip whole meshes.
type Raycaster struct {
	// BackfaceCulling ignores triangles facing away from the ray.
	BackfaceCulling bool
}

// Pick implements Picker.
func (rc Raycaster) Pick(m *graph.Model, ray math32.Ray, accept func(*models.Item) bool) (models.ItemHandle, bool) {
	best := models.NoItem
	bestDist := math32.Inf(1)

	for h, it := range m.Items() {
		if accept != nil && !accept(it) {
			continue
		}
		for _, ph := range it.Primitives {
			p := m.Primitive(ph)
			if p == nil || !p.Visible {
				continue
			}
			if _, hit := ray.IntersectBox(m.PrimitiveBounds(ph)); !hit {
				continue
			}
			m.ForEachTriangle(ph, func(a, b, c math32.Vector3) bool {
				if d, ok := intersectTriangle(ray, a, b, c, rc.BackfaceCulling); ok && d < bestDist {
					bestDist = d
					best = models.ItemHandle(h)
				}
				return true
			})
		}
	}
	return best, best != models.NoItem
}

// intersectTriangle returns the distance along ray to triangle abc.
func intersectTriangle(ray math32.Ray, a, b, c math32.Vector3, cull bool) (float32, bool) {
	const eps = 1e-7
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	pv := ray.Dir.Cross(e2)
	det := e1.Dot(pv)
	if cull && det < eps {
		return 0, false
	}
	if math32.Abs(det) < eps {
		return 0, false
	}
	inv := 1 / det
	tv := ray.Origin.Sub(a)
	u := tv.Dot(pv) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	qv := tv.Cross(e1)
	w := ray.Dir.Dot(qv) * inv
	if w < 0 || u+w > 1 {
		return 0, false
	}
	t := e2.Dot(qv) * inv
	if t < eps {
		return 0, false
	}
	return t, true
}
