package graph

import (
	"testing"

	"cogentcore.org/core/math32"

	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/testutil"
)

func TestAddRecordSharesGeometryAndMaterial(t *testing.T) {
	m := New()

	frag := testutil.BoxFragment(7, [3]float32{0, 0, 0}, [3]float32{1, 1, 1}, testutil.Gray)
	for _, id := range []int{1, 2} {
		if _, err := m.AddRecord(models.MeshRecord{ExpressID: id, Fragments: []models.Fragment{frag}}); err != nil {
			t.Fatalf("AddRecord(%d): %v", id, err)
		}
	}

	if m.Len() != 2 {
		t.Errorf("Expected 2 items, got %d", m.Len())
	}
	if m.PrimitiveCount() != 2 {
		t.Errorf("Expected 2 primitives, got %d", m.PrimitiveCount())
	}
	if m.Geometries.Len() != 1 {
		t.Errorf("Expected 1 shared geometry, got %d", m.Geometries.Len())
	}
	if m.Materials.Len() != 1 {
		t.Errorf("Expected 1 shared material, got %d", m.Materials.Len())
	}

	a := m.PrimitivesOf(0)[0]
	b := m.PrimitivesOf(1)[0]
	if a.Material != b.Material {
		t.Error("Expected primitives with the same color to share one material")
	}
	if a.GeometryID != "7O" {
		t.Errorf("Expected geometry key 7O, got %s", a.GeometryID)
	}
}

func TestAddRecordTranslucentGeometryKeptApart(t *testing.T) {
	m := New()
	opaque := testutil.BoxFragment(3, [3]float32{0, 0, 0}, [3]float32{1, 1, 1}, testutil.Gray)
	glass := testutil.BoxFragment(3, [3]float32{0, 0, 0}, [3]float32{1, 1, 1}, testutil.Glass)

	if _, err := m.AddRecord(models.MeshRecord{ExpressID: 1, Fragments: []models.Fragment{opaque, glass}}); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if m.Geometries.Len() != 2 {
		t.Fatalf("Expected opaque and translucent geometries, got %d", m.Geometries.Len())
	}

	prims := m.PrimitivesOf(0)
	if prims[1].GeometryID != "3T" {
		t.Errorf("Expected geometry key 3T, got %s", prims[1].GeometryID)
	}
	mat := prims[1].Material
	if !mat.Transparent || mat.Opacity != 0.5 || mat.DepthWrite {
		t.Errorf("Unexpected translucent material: %+v", mat)
	}
}

func TestAddRecordDuplicateIDAppendsToItem(t *testing.T) {
	m := New()
	rec := testutil.BoxRecord(5, [3]float32{0, 0, 0}, [3]float32{1, 1, 1}, testutil.Gray)
	m.AddRecord(rec)
	m.AddRecord(rec)

	if m.Len() != 1 {
		t.Errorf("Expected 1 item, got %d", m.Len())
	}
	if got := len(m.ItemByID(5).Primitives); got != 2 {
		t.Errorf("Expected 2 primitives on item 5, got %d", got)
	}
}

func TestAddRecordRejectsBadVertexBuffer(t *testing.T) {
	m := New()
	rec := models.MeshRecord{ExpressID: 1, Fragments: []models.Fragment{{
		GeometryID: 1,
		Color:      testutil.Gray,
		Vertices:   []float32{0, 0, 0, 0},
	}}}
	if _, err := m.AddRecord(rec); err == nil {
		t.Error("Expected error for truncated vertex buffer")
	}
}

func TestAddPrimitiveRequiresCachedMaterial(t *testing.T) {
	m := New()
	h := m.AddItem(1)
	m.Geometries.Put(&models.Geometry{ID: "1O"})

	if _, err := m.AddPrimitive(h, "1O", "missing", nil); err == nil {
		t.Error("Expected error for material that is not cached")
	}
	if m.PrimitiveCount() != 0 {
		t.Errorf("Expected no primitive to be attached, got %d", m.PrimitiveCount())
	}

	m.Materials.Put(models.NewMaterial(testutil.Gray))
	if _, err := m.AddPrimitive(h, "1O", testutil.Gray.MaterialID(), []float32{1, 2, 3}); err == nil {
		t.Error("Expected error for short transform")
	}
	if _, err := m.AddPrimitive(models.ItemHandle(9), "1O", testutil.Gray.MaterialID(), nil); err == nil {
		t.Error("Expected error for unknown item handle")
	}
}

func TestLookup(t *testing.T) {
	m := New()
	m.AddRecord(testutil.BoxRecord(10, [3]float32{0, 0, 0}, [3]float32{1, 1, 1}, testutil.Gray))
	m.AddRecord(testutil.BoxRecord(20, [3]float32{0, 0, 0}, [3]float32{1, 1, 1}, testutil.Gray))

	h, ok := m.Lookup(20)
	if !ok || h != 1 {
		t.Errorf("Lookup(20) = %d, %v", h, ok)
	}
	if m.ItemByID(99) != nil {
		t.Error("Expected nil for unknown express id")
	}
	if m.Item(-1) != nil || m.Item(2) != nil {
		t.Error("Expected nil for out-of-range handles")
	}

	m.SetProperties(h, testutil.Props(20, "IfcSensor", testutil.Prop("Tag", "S1")))
	if it := m.Item(h); it.Kind != "IfcSensor" || len(it.PropertySets) != 1 {
		t.Errorf("Properties not applied: %+v", it)
	}
}

func TestBoundingSphere(t *testing.T) {
	m := New()
	m.AddRecord(testutil.BoxRecord(1, [3]float32{0, 0, 0}, [3]float32{2, 2, 2}, testutil.Gray))
	m.AddRecord(testutil.BoxRecord(2, [3]float32{10, 0, 0}, [3]float32{12, 2, 2}, testutil.Gray))

	s := m.BoundingSphere(0)
	if s.Center.X != 1 || s.Center.Y != 1 || s.Center.Z != 1 {
		t.Errorf("Unexpected centre for item 1: %+v", s.Center)
	}

	all := m.BoundingSphere()
	if all.Center.X != 6 {
		t.Errorf("Expected whole-model centre x=6, got %v", all.Center.X)
	}
	if all.Radius <= s.Radius {
		t.Errorf("Expected whole-model radius above %v, got %v", s.Radius, all.Radius)
	}

	empty := New()
	if r := empty.BoundingSphere().Radius; r != 0 {
		t.Errorf("Expected zero sphere for empty model, got radius %v", r)
	}
}

func TestBoundingSphereAppliesTransform(t *testing.T) {
	m := New()
	frag := testutil.BoxFragment(1, [3]float32{0, 0, 0}, [3]float32{2, 2, 2}, testutil.Gray)
	frag.Transform = []float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		5, 0, 0, 1,
	}
	m.AddRecord(models.MeshRecord{ExpressID: 1, Fragments: []models.Fragment{frag}})

	if x := m.BoundingSphere().Center.X; x != 6 {
		t.Errorf("Expected translated centre x=6, got %v", x)
	}
}

func TestCenter(t *testing.T) {
	m := New()
	m.AddRecord(testutil.BoxRecord(1, [3]float32{10, 4, 20}, [3]float32{14, 6, 24}, testutil.Gray))

	tr := m.Center()
	if tr.X != -12 || tr.Y != 0 || tr.Z != -22 {
		t.Errorf("Unexpected translation: %+v", tr)
	}
	c := m.BoundingSphere().Center
	if c.X != 0 || c.Y != 5 || c.Z != 0 {
		t.Errorf("Expected model centred on x/z, got %+v", c)
	}

	// Centering twice is stable.
	if again := m.Center(); again != tr {
		t.Errorf("Expected stable translation, got %+v", again)
	}
}

func TestForEachTriangle(t *testing.T) {
	m := New()
	m.AddRecord(testutil.BoxRecord(1, [3]float32{0, 0, 0}, [3]float32{1, 1, 1}, testutil.Gray))

	n := 0
	m.ForEachTriangle(0, func(a, b, c math32.Vector3) bool {
		n++
		return true
	})
	if n != 12 {
		t.Errorf("Expected 12 triangles, got %d", n)
	}

	n = 0
	m.ForEachTriangle(0, func(a, b, c math32.Vector3) bool {
		n++
		return false
	})
	if n != 1 {
		t.Errorf("Expected early stop after 1 triangle, got %d", n)
	}
}

func TestDispose(t *testing.T) {
	m := New()
	m.AddRecord(testutil.BoxRecord(1, [3]float32{0, 0, 0}, [3]float32{1, 1, 1}, testutil.Gray))
	m.AddRecord(testutil.BoxRecord(2, [3]float32{0, 0, 0}, [3]float32{1, 1, 1}, testutil.Glass))
	base, _ := m.Materials.Get(testutil.Gray.MaterialID())
	m.SelectMaterials.Put(base.Clone("select-" + base.ID))
	geom, _ := m.Geometries.Get("10O")

	stats := m.Dispose()
	if stats.Items != 2 || stats.Geometries != 2 || stats.Materials != 3 {
		t.Errorf("Unexpected dispose stats: %+v", stats)
	}
	if !base.Disposed || !geom.Disposed {
		t.Error("Expected cached resources to be released")
	}
	if m.Len() != 0 || m.PrimitiveCount() != 0 || !m.Disposed() {
		t.Error("Expected empty arena after dispose")
	}

	if again := m.Dispose(); again != (DisposeStats{}) {
		t.Errorf("Expected second dispose to release nothing, got %+v", again)
	}
}
