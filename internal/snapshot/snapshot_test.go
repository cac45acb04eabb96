package snapshot

import (
	"reflect"
	"testing"

	"github.com/ifc-viewer/backend/internal/graph"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/testutil"
)

func buildModel(t *testing.T, kinds map[int]string) *graph.Model {
	t.Helper()
	m := graph.New()
	for _, id := range []int{1, 2, 3} {
		h, err := m.AddRecord(testutil.BoxRecord(id, [3]float32{0, 0, 0}, [3]float32{1, 1, 1}, testutil.Gray))
		if err != nil {
			t.Fatalf("AddRecord(%d): %v", id, err)
		}
		if kind, ok := kinds[id]; ok {
			m.SetProperties(h, testutil.Props(id, kind, testutil.Prop("Tag", "T1")))
		}
	}
	return m
}

func TestGetDataToSave(t *testing.T) {
	m := buildModel(t, map[int]string{1: "Sensor", 2: "IfcSlab", 3: "IfcWall"})
	m.ItemByID(1).Selectable = true
	m.ItemByID(1).Links = map[string][]int{"Tag": {2}}
	m.ItemByID(2).AlwaysVisible = true

	data := GetDataToSave(m)
	if len(data) != 2 {
		t.Fatalf("Expected 2 visible items saved, got %d", len(data))
	}
	if data[0].ID != 1 || !data[0].Selectable || data[1].ID != 2 || !data[1].AlwaysVisible {
		t.Errorf("Unexpected snapshot: %+v", data)
	}

	// Saved links must not alias the live item.
	data[0].Links["Tag"][0] = 99
	if m.ItemByID(1).Links["Tag"][0] != 2 {
		t.Error("Expected snapshot links to be copied")
	}
}

func TestRestoreData(t *testing.T) {
	src := buildModel(t, map[int]string{1: "Sensor", 2: "IfcSlab"})
	src.ItemByID(1).Selectable = true
	src.ItemByID(1).Links = map[string][]int{"Tag": {2}}
	src.ItemByID(2).AlwaysVisible = true
	data := GetDataToSave(src)

	dst := buildModel(t, nil)
	dst.ItemByID(3).Selectable = true
	data = append(data, models.ItemSnapshot{ID: 42, Selectable: true})

	if n := RestoreData(dst, data); n != 2 {
		t.Errorf("Expected 2 restored items, got %d", n)
	}

	one := dst.ItemByID(1)
	if one.Kind != "Sensor" || !one.Selectable || !reflect.DeepEqual(one.Links, map[string][]int{"Tag": {2}}) {
		t.Errorf("Unexpected restored item: %+v", one)
	}
	if len(one.PropertySets) != 1 || one.PropertySets[0].Properties[0].Name != "Tag" {
		t.Errorf("Expected property sets restored, got %+v", one.PropertySets)
	}
	if !dst.ItemByID(2).AlwaysVisible {
		t.Error("Expected item 2 to be always visible")
	}
	if !dst.ItemByID(3).Selectable {
		t.Error("Expected item without an entry to keep its attributes")
	}
}
