package scene

import (
	"bytes"
	"encoding/json"
	"testing"

	"cogentcore.org/core/math32"
	"github.com/ifc-viewer/backend/internal/graph"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/testutil"
	"github.com/vmihailenco/msgpack/v5"
)

func twoItemModel(t *testing.T) *graph.Model {
	t.Helper()
	m := graph.New()
	for _, id := range []int{1, 2} {
		if _, err := m.AddRecord(testutil.BoxRecord(id, [3]float32{0, 0, 0}, [3]float32{1, 1, 1}, testutil.Gray)); err != nil {
			t.Fatalf("AddRecord: %v", err)
		}
	}
	return m
}

func TestProject(t *testing.T) {
	m := twoItemModel(t)
	m.PrimitivesOf(1)[0].Visible = false
	sel := m.Item(0)

	s := Project(Input{
		Frame:    7,
		Model:    m,
		Mode:     models.ViewModeSelectable,
		Selected: sel,
		Sphere:   &math32.Sphere{Center: math32.Vec3(1, 2, 3), Radius: 4},
	}, Options{Geometry: true})

	if len(s.Groups) != 2 || s.Groups[0].ID != 1 || s.Groups[1].ID != 2 {
		t.Fatalf("Unexpected groups: %+v", s.Groups)
	}
	if s.Frame != 7 {
		t.Errorf("Expected frame 7, got %d", s.Frame)
	}
	if s.Selected != 1 || s.Hovered != 0 {
		t.Errorf("Unexpected selection: %d/%d", s.Selected, s.Hovered)
	}
	if len(s.Materials) != 1 {
		t.Errorf("Expected shared material listed once, got %d", len(s.Materials))
	}
	if len(s.Geometries) != 2 {
		t.Errorf("Expected 2 geometries, got %d", len(s.Geometries))
	}
	if s.Groups[1].Meshes[0].Visible {
		t.Error("Expected hidden mesh to be projected as invisible")
	}
	if s.BoundingSphere == nil || s.BoundingSphere.Radius != 4 {
		t.Errorf("Expected bounding sphere helper, got %+v", s.BoundingSphere)
	}

	hidden := Project(Input{Model: m}, Options{SkipHidden: true})
	if len(hidden.Groups[1].Meshes) != 0 {
		t.Error("Expected hidden mesh to be skipped")
	}
	if hidden.Geometries != nil {
		t.Error("Expected no geometry buffers without the Geometry option")
	}
}

func TestProjectEmpty(t *testing.T) {
	s := Project(Input{Mode: models.ViewModeAll}, Options{})
	if s.Groups == nil || len(s.Groups) != 0 {
		t.Errorf("Expected empty group list, got %+v", s.Groups)
	}
}

func TestEncode(t *testing.T) {
	s := Project(Input{Model: twoItemModel(t), Mode: models.ViewModeAll}, Options{})

	var buf bytes.Buffer
	if err := Encode(&buf, s, FormatJSON); err != nil {
		t.Fatalf("Encode json: %v", err)
	}
	var fromJSON Scene
	if err := json.Unmarshal(buf.Bytes(), &fromJSON); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if len(fromJSON.Groups) != 2 {
		t.Errorf("Expected 2 groups from JSON, got %d", len(fromJSON.Groups))
	}

	buf.Reset()
	if err := Encode(&buf, s, FormatMsgpack); err != nil {
		t.Fatalf("Encode msgpack: %v", err)
	}
	var fromMsgpack Scene
	if err := msgpack.Unmarshal(buf.Bytes(), &fromMsgpack); err != nil {
		t.Fatalf("msgpack.Unmarshal: %v", err)
	}
	if fromMsgpack.Groups[0].Meshes[0].MaterialID != testutil.Gray.MaterialID() {
		t.Errorf("Unexpected material id: %s", fromMsgpack.Groups[0].Meshes[0].MaterialID)
	}

	if err := Encode(&buf, s, "xml"); err == nil {
		t.Error("Expected error for unsupported format")
	}
	if ContentType(FormatMsgpack) != "application/msgpack" || ContentType("") != "application/json" {
		t.Error("Unexpected content types")
	}
}
