package parser

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ifc-viewer/backend/internal/models"
)

func triangleRecord(expressID int) models.MeshRecord {
	return models.MeshRecord{
		ExpressID: expressID,
		Fragments: []models.Fragment{{
			GeometryID: expressID * 10,
			Color:      models.RGBA{R: 1, G: 0, B: 0, A: 1},
			Vertices:   []float32{0, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 1, 0, 1, 0, 0, 0, 1},
			Indices:    []uint32{0, 1, 2},
		}},
	}
}

func writeStream(t *testing.T, w io.Writer) {
	t.Helper()
	rw := NewRecordWriter(w, "IFC4")
	rw.AddProperties(models.ItemProperties{
		ExpressID: 1,
		Kind:      "IfcSensor",
		Name:      "S1",
		PropertySets: []models.PropertySet{{
			Name: "Pset_Common",
			Properties: []models.Property{
				{Name: "Tag", Value: "S1"},
				{Name: "Height", Value: 2.5},
				{Name: "IsExternal", Value: true},
			},
		}},
	})
	rw.AddProperties(models.ItemProperties{ExpressID: 2, Kind: "IfcWall", Name: "W1"})
	rw.AddMesh(triangleRecord(1))
	rw.AddMesh(triangleRecord(2))
	if err := rw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func readAll(t *testing.T, src Source) []models.MeshRecord {
	t.Helper()
	var out []models.MeshRecord
	for {
		rec, err := src.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, rec)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writeStream(t, &buf)

	rr, err := NewRecordReader(&buf, ReaderOptions{Intern: NewStringIntern()})
	if err != nil {
		t.Fatalf("NewRecordReader: %v", err)
	}
	h := rr.Header()
	if h.Schema != "IFC4" || h.ItemCount != 2 || h.MeshCount != 2 {
		t.Errorf("Unexpected header: %+v", h)
	}

	recs := readAll(t, rr)
	if len(recs) != 2 || recs[1].ExpressID != 2 {
		t.Fatalf("Unexpected records: %+v", recs)
	}
	if got := recs[0].Fragments[0].Indices; len(got) != 3 || got[2] != 2 {
		t.Errorf("Unexpected indices: %v", got)
	}

	props, ok := rr.Properties(1)
	if !ok {
		t.Fatal("Expected properties for item 1")
	}
	if props.Kind != "IfcSensor" || len(props.PropertySets[0].Properties) != 3 {
		t.Errorf("Unexpected properties: %+v", props)
	}
	if v, ok := props.PropertySets[0].Properties[1].Value.(float64); !ok || v != 2.5 {
		t.Errorf("Expected float64 2.5, got %#v", props.PropertySets[0].Properties[1].Value)
	}
	if _, ok := rr.Properties(3); ok {
		t.Error("Expected no properties for unknown item")
	}
}

func TestRecordReaderSkipProperties(t *testing.T) {
	var buf bytes.Buffer
	writeStream(t, &buf)

	rr, err := NewRecordReader(&buf, ReaderOptions{SkipProperties: true})
	if err != nil {
		t.Fatalf("NewRecordReader: %v", err)
	}
	if _, ok := rr.Properties(1); ok {
		t.Error("Expected properties to be skipped")
	}
	if recs := readAll(t, rr); len(recs) != 2 {
		t.Errorf("Expected 2 meshes after skipping properties, got %d", len(recs))
	}
}

func TestRecordReaderErrors(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		_, err := NewRecordReader(bytes.NewReader([]byte("not a stream at all")), ReaderOptions{})
		if !errors.Is(err, ErrBadMagic) {
			t.Errorf("Expected ErrBadMagic, got %v", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		var buf bytes.Buffer
		writeStream(t, &buf)
		data := buf.Bytes()[:buf.Len()-20]

		rr, err := NewRecordReader(bytes.NewReader(data), ReaderOptions{SkipProperties: true})
		if err != nil {
			t.Fatalf("NewRecordReader: %v", err)
		}
		if _, err := rr.Next(); err != nil {
			t.Fatalf("Expected first mesh to decode, got %v", err)
		}
		if _, err := rr.Next(); err == nil || err == io.EOF {
			t.Errorf("Expected decode error for truncated mesh, got %v", err)
		}
	})
}

func TestRegistryOpen(t *testing.T) {
	reg := NewRegistry()

	var plain bytes.Buffer
	writeStream(t, &plain)

	var zipped bytes.Buffer
	gz := gzip.NewWriter(&zipped)
	writeStream(t, gz)
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	for name, data := range map[string][]byte{"msgpack": plain.Bytes(), "gzip": zipped.Bytes()} {
		t.Run(name, func(t *testing.T) {
			src, err := reg.Open(bytes.NewReader(data), ReaderOptions{})
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer src.Close()
			if src.MeshCount() != 2 {
				t.Errorf("Expected 2 meshes, got %d", src.MeshCount())
			}
			if recs := readAll(t, src); len(recs) != 2 {
				t.Errorf("Expected 2 records, got %d", len(recs))
			}
		})
	}

	if _, err := reg.Open(bytes.NewReader([]byte("garbage")), ReaderOptions{}); err == nil {
		t.Error("Expected error for unknown format")
	}
	if _, err := reg.Open(bytes.NewReader(nil), ReaderOptions{}); err == nil {
		t.Error("Expected error for empty stream")
	}
}

func TestRegistryFindFormat(t *testing.T) {
	reg := NewRegistry()
	dir := t.TempDir()

	path := filepath.Join(dir, "model.ifcr.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	writeStream(t, gz)
	gz.Close()
	f.Close()

	format, err := reg.FindFormat(path)
	if err != nil {
		t.Fatalf("FindFormat: %v", err)
	}
	if format.Name() != "gzip" {
		t.Errorf("Expected gzip, got %s", format.Name())
	}

	src, err := reg.OpenFile(path, ReaderOptions{})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	if _, err := reg.GetFormatByName("MSGPACK"); err != nil {
		t.Errorf("Expected lookup by name to ignore case: %v", err)
	}
	if _, err := reg.GetFormatByName("ifc"); err == nil {
		t.Error("Expected error for unknown format name")
	}
}
