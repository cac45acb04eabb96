package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/testutil"
)

type recorder struct {
	events []models.ProgressEvent
	errs   []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnProgress: func(ev models.ProgressEvent) { r.events = append(r.events, ev) },
		OnError:    func(err error) { r.errs = append(r.errs, err) },
	}
}

func (r *recorder) steps() []string {
	var out []string
	for _, ev := range r.events {
		s := string(ev.Type) + "/" + string(ev.Step)
		if len(out) == 0 || out[len(out)-1] != s {
			out = append(out, s)
		}
	}
	return out
}

func TestLoadFromFile(t *testing.T) {
	props, meshes := testutil.SensorModel()
	path := testutil.WriteRecordFile(t, t.TempDir(), "model.ifcr", props, meshes)

	var rec recorder
	m, res, err := New(FileFetcher{}, Options{}).Load(context.Background(), Request{Location: path, LoadProperties: true}, rec.callbacks())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Len() != 3 || res.Meshes != 3 || res.Schema != "IFC4" {
		t.Errorf("Unexpected result: items=%d %+v", m.Len(), res)
	}
	if it := m.ItemByID(100); it == nil || it.Kind != "Sensor" || len(it.PropertySets) != 1 {
		t.Errorf("Expected properties on item 100, got %+v", it)
	}

	want := []string{"progress/idle", "progress/fetching", "done/fetching", "progress/loading", "done/idle"}
	if got := rec.steps(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Unexpected progress sequence:\n got %v\nwant %v", got, want)
	}

	var loading []models.ProgressEvent
	for _, ev := range rec.events {
		if ev.Step == models.LoadStepLoading {
			loading = append(loading, ev)
		}
	}
	if len(loading) != 3 || loading[2].Loaded != 3 || loading[2].Total != 3 || !loading[2].LengthComputable {
		t.Errorf("Expected one loading event per mesh, got %+v", loading)
	}
	if len(rec.errs) != 0 {
		t.Errorf("Expected no errors, got %v", rec.errs)
	}
}

func TestLoadSkipsProperties(t *testing.T) {
	props, meshes := testutil.SensorModel()
	path := testutil.WriteRecordFile(t, t.TempDir(), "model.ifcr", props, meshes)

	m, _, err := New(NewMux(), Options{}).Load(context.Background(), Request{Location: "file://" + path}, Callbacks{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if it := m.ItemByID(100); it == nil || it.Kind != "" || len(it.PropertySets) != 0 {
		t.Errorf("Expected no properties when skipped, got %+v", it)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		var rec recorder
		m, _, err := New(FileFetcher{}, Options{}).Load(context.Background(), Request{Location: filepath.Join(dir, "nope.ifcr")}, rec.callbacks())
		if !errors.Is(err, ErrFileNotFound) {
			t.Fatalf("Expected ErrFileNotFound, got %v", err)
		}
		if m == nil || m.Len() != 0 {
			t.Error("Expected an empty model on fetch failure")
		}
		if len(rec.errs) != 1 {
			t.Errorf("Expected OnError once, got %d", len(rec.errs))
		}
		steps := rec.steps()
		if steps[len(steps)-2] != "error/idle" || steps[len(steps)-1] != "done/idle" {
			t.Errorf("Expected error then done, got %v", steps)
		}
	})

	t.Run("corrupt stream keeps partial model", func(t *testing.T) {
		props, meshes := testutil.SensorModel()
		data := testutil.EncodeRecords(t, props, meshes)
		path := filepath.Join(dir, "truncated.ifcr")
		if err := os.WriteFile(path, data[:len(data)-40], 0644); err != nil {
			t.Fatal(err)
		}

		var rec recorder
		m, res, err := New(FileFetcher{}, Options{}).Load(context.Background(), Request{Location: path}, rec.callbacks())
		if err == nil {
			t.Fatal("Expected decode error")
		}
		if res.Meshes != 2 || m.Len() != 2 {
			t.Errorf("Expected 2 meshes before the failure, got %d (%d items)", res.Meshes, m.Len())
		}
		if len(rec.errs) != 1 {
			t.Errorf("Expected OnError once, got %d", len(rec.errs))
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		props, meshes := testutil.SensorModel()
		path := testutil.WriteRecordFile(t, dir, "model.ifcr", props, meshes)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := New(FileFetcher{}, Options{}).Load(ctx, Request{Location: path}, Callbacks{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})

	t.Run("unknown scheme", func(t *testing.T) {
		if _, err := NewMux().Fetch(context.Background(), "ftp://host/model.ifcr", 0, nil); err == nil {
			t.Error("Expected error for unsupported scheme")
		}
	})
}

func TestLoadOverHTTP(t *testing.T) {
	props, meshes := testutil.SensorModel()
	data := testutil.EncodeRecords(t, props, meshes)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/model.ifcr" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	var rec recorder
	m, res, err := New(NewMux(), Options{}).Load(context.Background(), Request{Location: srv.URL + "/model.ifcr", LoadProperties: true}, rec.callbacks())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Len() != 3 || res.Bytes != int64(len(data)) {
		t.Errorf("Unexpected result: items=%d bytes=%d", m.Len(), res.Bytes)
	}

	_, _, err = New(NewMux(), Options{}).Load(context.Background(), Request{Location: srv.URL + "/missing"}, Callbacks{})
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound for 404, got %v", err)
	}
}

func TestSizeLimit(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/advertised":
			w.Header().Set("Content-Length", "1099511627776")
			w.WriteHeader(http.StatusOK)
		case "/chunked":
			w.Write([]byte(payload[:1024]))
			w.(http.Flusher).Flush()
			w.Write([]byte(payload[1024:]))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		location string
	}{
		{"advertised length", srv.URL + "/advertised"},
		{"streamed body", srv.URL + "/chunked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec recorder
			_, _, err := New(NewMux(), Options{MaxBytes: 1024}).Load(context.Background(), Request{Location: tt.location}, rec.callbacks())
			if !errors.Is(err, ErrTooLarge) {
				t.Fatalf("Expected ErrTooLarge, got %v", err)
			}
			if len(rec.errs) != 1 {
				t.Errorf("Expected OnError once, got %d", len(rec.errs))
			}
		})
	}

	t.Run("at the limit", func(t *testing.T) {
		data, err := readAll(context.Background(), strings.NewReader(payload), -1, int64(len(payload)), nil)
		if err != nil || len(data) != len(payload) {
			t.Errorf("Expected %d bytes, got %d (%v)", len(payload), len(data), err)
		}
	})

	t.Run("one byte over", func(t *testing.T) {
		_, err := readAll(context.Background(), strings.NewReader(payload), -1, int64(len(payload)-1), nil)
		if !errors.Is(err, ErrTooLarge) {
			t.Errorf("Expected ErrTooLarge, got %v", err)
		}
	})
}

func TestIsRemote(t *testing.T) {
	tests := []struct {
		location string
		want     bool
	}{
		{"https://example.com/a.ifcr", true},
		{"HTTP://example.com/a.ifcr", true},
		{"s3://models/a.ifcr", true},
		{"/etc/passwd", false},
		{"file:///etc/passwd", false},
		{"ftp://host/a.ifcr", false},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			if got := IsRemote(tt.location); got != tt.want {
				t.Errorf("IsRemote(%q) = %v, want %v", tt.location, got, tt.want)
			}
		})
	}
}

func TestProgressThrottle(t *testing.T) {
	var got []models.ProgressEvent
	p := newProgress(func(ev models.ProgressEvent) { got = append(got, ev) }, 0.001)
	for i := int64(1); i <= 100; i++ {
		p.intermediate(i, 100, models.ProgressEvent{Loaded: i, Total: 100})
	}
	// The burst lets the first event through; the last one always passes.
	if len(got) != 2 || got[0].Loaded != 1 || got[1].Loaded != 100 {
		t.Errorf("Unexpected throttled events: %+v", got)
	}
}

func TestParseS3Location(t *testing.T) {
	bucket, key, err := ParseS3Location("s3://models/site/a.ifcr")
	if err != nil || bucket != "models" || key != "site/a.ifcr" {
		t.Errorf("Unexpected parse: %q %q %v", bucket, key, err)
	}
	for _, bad := range []string{"s3://models", "http://models/a", "s3:///a"} {
		if _, _, err := ParseS3Location(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}
