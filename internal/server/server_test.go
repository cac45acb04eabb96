package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ifc-viewer/backend/internal/config"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/session"
	"github.com/ifc-viewer/backend/internal/testutil"
	"github.com/ifc-viewer/backend/internal/viewer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	rules := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte("selectable:\n  - required_kind: Sensor\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "viewer.config"), []byte(
		"<IFCViewer><Requirements><File>rules.yaml</File><Watch>false</Watch></Requirements></IFCViewer>"), 0644))

	cfg, err := config.LoadConfig(filepath.Join(dir, "viewer.config"))
	require.NoError(t, err)
	return cfg
}

func TestNew_WiresComponents(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, "test")
	require.NoError(t, err)
	t.Cleanup(func() { s.Shutdown(context.Background()) })

	require.NotNil(t, s.Snapshots)
	rs := s.Sessions.Requirements()
	require.Len(t, rs.Selectable, 1)
	assert.Equal(t, "Sensor", rs.Selectable[0].RequiredKind)

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
}

func TestServer_LoadsUploadedModel(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, "test")
	require.NoError(t, err)
	t.Cleanup(func() { s.Shutdown(context.Background()) })

	props, meshes := testutil.SensorModel()
	path := testutil.WriteRecordFile(t, t.TempDir(), "site.ifcr", props, meshes)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	info, err := s.Store.Save("site.ifcr", f)
	require.NoError(t, err)

	sess, err := s.Sessions.CreateSession(viewer.Surface{Width: 800, Height: 600}, nil)
	require.NoError(t, err)
	location, err := s.Store.GetFilePath(info.ID)
	require.NoError(t, err)
	_, err = s.Sessions.LoadModel(sess.ID, session.LoadRequest{FileID: info.ID, Location: location})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, ok := s.Sessions.GetSession(sess.ID)
		return ok && got.Status == models.SessionStatusReady
	}, 5*time.Second, 10*time.Millisecond)
	got, _ := s.Sessions.GetSession(sess.ID)
	assert.Equal(t, 2, got.SelectableCount)

	n, err := s.Sessions.SaveSnapshot(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, s.Snapshots.Has(info.ID))

	// Deleting the file orphans its snapshot, which cleanup removes.
	require.NoError(t, s.Store.Delete(info.ID))
	s.Cleanup()
	assert.False(t, s.Snapshots.Has(info.ID))
}
