package graph

import (
	"cogentcore.org/core/math32"
	"github.com/ifc-viewer/backend/internal/models"
)

// Translation returns the offset applied to every primitive by Center.
func (m *Model) Translation() math32.Vector3 {
	return m.translation
}

// Center translates the model so that its bounding-box centre sits at the
// origin on the x and z axes. The y axis is left untouched so the model
// keeps standing on its own floor.
func (m *Model) Center() math32.Vector3 {
	m.translation = math32.Vector3{}
	m.bounds = make(map[models.PrimitiveHandle]math32.Box3)

	box := m.box(nil)
	if box.IsEmpty() {
		return m.translation
	}
	c := box.Center()
	m.translation = math32.Vec3(-c.X, 0, -c.Z)
	m.bounds = make(map[models.PrimitiveHandle]math32.Box3)
	return m.translation
}

// WorldPoint transforms an object-space vertex of primitive p into world space.
func (m *Model) WorldPoint(p *models.Primitive, x, y, z float32) math32.Vector3 {
	t := p.Transform
	if t == nil {
		return math32.Vec3(x, y, z).Add(m.translation)
	}
	return math32.Vec3(
		t[0]*x+t[4]*y+t[8]*z+t[12],
		t[1]*x+t[5]*y+t[9]*z+t[13],
		t[2]*x+t[6]*y+t[10]*z+t[14],
	).Add(m.translation)
}

// PrimitiveBounds returns the world-space bounding box of primitive p.
func (m *Model) PrimitiveBounds(h models.PrimitiveHandle) math32.Box3 {
	if b, ok := m.bounds[h]; ok {
		return b
	}
	box := math32.B3Empty()
	p := m.Primitive(h)
	if p == nil {
		return box
	}
	g, ok := m.Geometries.Get(p.GeometryID)
	if !ok || g.Disposed {
		return box
	}
	for i := 0; i+2 < len(g.Positions); i += 3 {
		box.ExpandByPoint(m.WorldPoint(p, g.Positions[i], g.Positions[i+1], g.Positions[i+2]))
	}
	m.bounds[h] = box
	return box
}

// ForEachTriangle calls fn with the world-space corners of every triangle
// of primitive h until fn returns false.
func (m *Model) ForEachTriangle(h models.PrimitiveHandle, fn func(a, b, c math32.Vector3) bool) {
	p := m.Primitive(h)
	if p == nil {
		return
	}
	g, ok := m.Geometries.Get(p.GeometryID)
	if !ok || g.Disposed {
		return
	}
	vertex := func(i uint32) math32.Vector3 {
		o := int(i) * 3
		return m.WorldPoint(p, g.Positions[o], g.Positions[o+1], g.Positions[o+2])
	}
	n := uint32(g.VertexCount())
	for i := 0; i+2 < len(g.Indices); i += 3 {
		ia, ib, ic := g.Indices[i], g.Indices[i+1], g.Indices[i+2]
		if ia >= n || ib >= n || ic >= n {
			continue
		}
		if !fn(vertex(ia), vertex(ib), vertex(ic)) {
			return
		}
	}
}

// BoundingSphere returns the sphere enclosing the given items, or the whole
// model when no handle is given. An empty selection yields a zero sphere.
func (m *Model) BoundingSphere(handles ...models.ItemHandle) math32.Sphere {
	box := m.box(handles)
	if box.IsEmpty() {
		return math32.Sphere{}
	}
	return box.GetBoundingSphere()
}

func (m *Model) box(handles []models.ItemHandle) math32.Box3 {
	box := math32.B3Empty()
	if len(handles) == 0 {
		for p := range m.primitives {
			expand(&box, m.PrimitiveBounds(models.PrimitiveHandle(p)))
		}
		return box
	}
	for _, h := range handles {
		it := m.Item(h)
		if it == nil {
			continue
		}
		for _, p := range it.Primitives {
			expand(&box, m.PrimitiveBounds(p))
		}
	}
	return box
}

// expand grows box by b. Empty boxes are skipped: their infinite corners
// would otherwise poison the result.
func expand(box *math32.Box3, b math32.Box3) {
	if b.IsEmpty() {
		return
	}
	box.ExpandByBox(b)
}
