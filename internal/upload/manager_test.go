package upload

import (
	"bytes"
	"compress/gzip"
	"testing"
	"time"

	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/storage"
	"github.com/ifc-viewer/backend/internal/testutil"
)

func waitForJob(t *testing.T, m *Manager, id string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := m.GetJob(id)
		if !ok {
			t.Fatal("Job not found")
		}
		if job.Status == StatusComplete || job.Status == StatusError {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for job")
	return nil
}

func saveChunks(t *testing.T, store storage.Store, uploadID string, data []byte, size int) int {
	t.Helper()
	n := 0
	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		if err := store.SaveChunk(uploadID, n, bytes.NewReader(data[off:end])); err != nil {
			t.Fatal(err)
		}
		n++
	}
	return n
}

func TestUploadModelJob(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(store)

	props, meshes := testutil.SensorModel()
	data := testutil.EncodeRecords(t, props, meshes)
	chunks := saveChunks(t, store, "u1", data, 100)

	job := waitForJob(t, m, m.StartJob("u1", "site.ifcr", chunks, int64(len(data)), int64(len(data)), "").ID)
	if job.Status != StatusComplete || job.Progress != 100 {
		t.Fatalf("Expected complete job, got %+v", job)
	}
	if job.FileInfo.Format != "msgpack" || job.FileInfo.Kind != models.FileKindModel {
		t.Errorf("Unexpected file info: %+v", job.FileInfo)
	}
}

func TestUploadGzipJob(t *testing.T) {
	store, _ := storage.NewLocalStore(t.TempDir())
	m := NewManager(store)

	var zipped bytes.Buffer
	gz := gzip.NewWriter(&zipped)
	gz.Write([]byte("selectable:\n  - required_kind: IfcSensor\n"))
	gz.Close()
	chunks := saveChunks(t, store, "u2", zipped.Bytes(), 16)

	job := waitForJob(t, m, m.StartJob("u2", "rules.yaml", chunks, 41, int64(zipped.Len()), "gzip").ID)
	if job.Status != StatusComplete {
		t.Fatalf("Expected complete job, got %+v", job)
	}
	info, _ := store.Get(job.FileInfo.ID)
	if info.Size != 41 || info.Kind != models.FileKindRequirements || info.Format != "yaml" {
		t.Errorf("Unexpected stored info: %+v", info)
	}
}

func TestUploadRejectsUnknownModel(t *testing.T) {
	store, _ := storage.NewLocalStore(t.TempDir())
	m := NewManager(store)
	chunks := saveChunks(t, store, "u3", []byte("this is not a model"), 8)

	job := waitForJob(t, m, m.StartJob("u3", "site.ifcr", chunks, 19, 19, "").ID)
	if job.Status != StatusError || job.Error == "" {
		t.Fatalf("Expected failed job, got %+v", job)
	}
	files, _ := store.List(0)
	if len(files) != 1 || files[0].Status != "invalid" {
		t.Errorf("Expected file marked invalid, got %+v", files)
	}

	if removed := m.CleanupOldJobs(-time.Second); removed != 1 {
		t.Errorf("Expected 1 job cleaned up, got %d", removed)
	}
}
