// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/session"
	"github.com/ifc-viewer/backend/internal/viewer"
	"github.com/labstack/echo/v4"
)

// UploadHandler handles file upload operations
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleUploadBinary(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
	HandleGetUploadJob(c echo.Context) error
	HandleUploadJobStream(c echo.Context) error
}

// ViewerHandler handles viewer session operations
type ViewerHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleListSessions(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleLoadModel(c echo.Context) error
	HandleLoadProgressStream(c echo.Context) error
	HandleResize(c echo.Context) error
	HandlePointer(c echo.Context) error
	HandleSelect(c echo.Context) error
	HandleSetViewMode(c echo.Context) error
	HandleCycleViewMode(c echo.Context) error
	HandleCamera(c echo.Context) error
	HandleGetScene(c echo.Context) error
	HandleGetSelectableItems(c echo.Context) error
	HandleGetItem(c echo.Context) error
	HandleGetSnapshot(c echo.Context) error
	HandleSaveSnapshot(c echo.Context) error
	HandleRestoreSnapshot(c echo.Context) error
}

// RequirementsHandler handles the active requirement set
type RequirementsHandler interface {
	HandleGetRequirements(c echo.Context) error
	HandleSetRequirements(c echo.Context) error
	HandleActivateRequirementsFile(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	CreateSession(surface viewer.Surface, cam *viewer.Camera) (*models.ViewerSession, error)
	GetSession(id string) (*models.ViewerSession, bool)
	ListSessions() []*models.ViewerSession
	Count() int
	TouchSession(id string) bool
	DeleteSession(id string) error
	LoadModel(id string, req session.LoadRequest) (uint64, error)
	Do(id string, fn func(v *viewer.Viewer) error) error
	Subscribe(id string) (<-chan session.Event, func(), error)
	Publish(id string, ev session.Event)
	Requirements() models.RequirementSet
	SetRequirements(rs models.RequirementSet) int
	SaveSnapshot(ctx context.Context, id string) (int, error)
	Snapshot(id string) ([]models.ItemSnapshot, error)
	RestoreSnapshot(id string, data []models.ItemSnapshot) (int, error)
}

var _ SessionManager = (*session.Manager)(nil)
