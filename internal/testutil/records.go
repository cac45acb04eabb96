package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/parser"
)

// EncodeRecords returns a record stream holding props and meshes.
func EncodeRecords(t testing.TB, props []models.ItemProperties, meshes []models.MeshRecord) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := parser.NewRecordWriter(&buf, "IFC4")
	for _, p := range props {
		w.AddProperties(p)
	}
	for _, m := range meshes {
		w.AddMesh(m)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("encode records: %v", err)
	}
	return buf.Bytes()
}

// WriteRecordFile writes a record stream into dir and returns its path.
func WriteRecordFile(t testing.TB, dir, name string, props []models.ItemProperties, meshes []models.MeshRecord) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, EncodeRecords(t, props, meshes), 0644); err != nil {
		t.Fatalf("write record file: %v", err)
	}
	return path
}

// SensorModel returns the records of a three-item model: two sensors
// sharing tag S1 and a wall, laid out along x.
func SensorModel() ([]models.ItemProperties, []models.MeshRecord) {
	props := []models.ItemProperties{
		Props(100, "Sensor", Prop("Tag", "S1")),
		Props(200, "Sensor", Prop("Tag", "S1")),
		Props(300, "IfcWall", Prop("IsExternal", true)),
	}
	meshes := []models.MeshRecord{
		BoxRecord(100, [3]float32{0, 0, 0}, [3]float32{1, 1, 1}, Gray),
		BoxRecord(200, [3]float32{3, 0, 0}, [3]float32{4, 1, 1}, Gray),
		BoxRecord(300, [3]float32{6, 0, 0}, [3]float32{7, 3, 1}, Glass),
	}
	return props, meshes
}
