// routes.go - Route registration helpers
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/ifc-viewer/backend/internal/snapshot"
	"github.com/ifc-viewer/backend/internal/storage"
	"github.com/ifc-viewer/backend/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store     storage.Store
	Sessions  SessionManager
	UploadMgr *upload.Manager
	Snapshots snapshot.Store
	Version   string

	// WSMaxMessageSize bounds inbound websocket messages in bytes.
	WSMaxMessageSize int64
}

// Handlers holds all handler instances
type Handlers struct {
	Health       HealthHandler
	Upload       UploadHandler
	Viewer       ViewerHandler
	Requirements RequirementsHandler
	WebSocket    *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(deps.Version, deps.Sessions),
		Upload:       NewUploadHandler(deps.Store, deps.Snapshots, deps.UploadMgr),
		Viewer:       NewViewerHandler(deps.Sessions, deps.Store),
		Requirements: NewRequirementsHandler(deps.Sessions, deps.Store),
		WebSocket:    NewWebSocketHandler(deps.Sessions, deps.WSMaxMessageSize),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// File management
	files := apiGroup.Group("/files")
	files.POST("/upload", handlers.Upload.HandleUploadFile)
	files.POST("/upload/binary", handlers.Upload.HandleUploadBinary)
	files.POST("/upload/chunk", handlers.Upload.HandleUploadChunk)
	files.POST("/upload/complete", handlers.Upload.HandleCompleteUpload)
	files.GET("/upload/jobs/:jobId", handlers.Upload.HandleGetUploadJob)
	files.GET("/upload/jobs/:jobId/stream", handlers.Upload.HandleUploadJobStream)
	files.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	files.GET("/:id", handlers.Upload.HandleGetFile)
	files.DELETE("/:id", handlers.Upload.HandleDeleteFile)
	files.PUT("/:id", handlers.Upload.HandleRenameFile)

	// Viewer sessions
	viewers := apiGroup.Group("/viewer")
	viewers.POST("", handlers.Viewer.HandleCreateSession)
	viewers.GET("", handlers.Viewer.HandleListSessions)
	viewers.GET("/:sessionId", handlers.Viewer.HandleGetSession)
	viewers.DELETE("/:sessionId", handlers.Viewer.HandleDeleteSession)
	viewers.POST("/:sessionId/keepalive", handlers.Viewer.HandleSessionKeepAlive)
	viewers.POST("/:sessionId/load", handlers.Viewer.HandleLoadModel)
	viewers.GET("/:sessionId/progress", handlers.Viewer.HandleLoadProgressStream)
	viewers.PUT("/:sessionId/surface", handlers.Viewer.HandleResize)
	viewers.POST("/:sessionId/pointer", handlers.Viewer.HandlePointer)
	viewers.POST("/:sessionId/select", handlers.Viewer.HandleSelect)
	viewers.PUT("/:sessionId/view-mode", handlers.Viewer.HandleSetViewMode)
	viewers.POST("/:sessionId/view-mode/cycle", handlers.Viewer.HandleCycleViewMode)
	viewers.POST("/:sessionId/camera", handlers.Viewer.HandleCamera)
	viewers.GET("/:sessionId/scene", handlers.Viewer.HandleGetScene)
	viewers.GET("/:sessionId/items/selectable", handlers.Viewer.HandleGetSelectableItems)
	viewers.GET("/:sessionId/items/:itemId", handlers.Viewer.HandleGetItem)
	viewers.GET("/:sessionId/snapshot", handlers.Viewer.HandleGetSnapshot)
	viewers.POST("/:sessionId/snapshot", handlers.Viewer.HandleSaveSnapshot)
	viewers.POST("/:sessionId/snapshot/restore", handlers.Viewer.HandleRestoreSnapshot)
	viewers.GET("/:sessionId/ws", handlers.WebSocket.HandleWebSocket)

	// Requirements
	reqs := apiGroup.Group("/requirements")
	reqs.GET("", handlers.Requirements.HandleGetRequirements)
	reqs.PUT("", handlers.Requirements.HandleSetRequirements)
	reqs.POST("/activate", handlers.Requirements.HandleActivateRequirementsFile)
}

// MiddlewareOptions configures SetupMiddleware.
type MiddlewareOptions struct {
	EnableRequestLogging bool
	EnableCORS           bool
	// AllowOrigins is a comma separated list; empty allows any origin.
	AllowOrigins string
	BodyLimit    string
	// RequestTimeout applies to plain requests; streams are exempt.
	RequestTimeout time.Duration
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !opts.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/pointer") ||
				strings.HasSuffix(path, "/progress") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if opts.RequestTimeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout:      opts.RequestTimeout,
			Skipper:      isStreamRequest,
			ErrorMessage: "Request timeout",
		}))
	}

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	if opts.EnableCORS {
		origins := []string{"*"}
		if strings.TrimSpace(opts.AllowOrigins) != "" {
			origins = origins[:0]
			for _, o := range strings.Split(opts.AllowOrigins, ",") {
				if o = strings.TrimSpace(o); o != "" {
					origins = append(origins, o)
				}
			}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
}

// isStreamRequest matches long-lived responses: SSE, websockets and uploads.
func isStreamRequest(c echo.Context) bool {
	req := c.Request()
	path := req.URL.Path
	return strings.HasSuffix(path, "/progress") ||
		strings.HasSuffix(path, "/stream") ||
		strings.HasSuffix(path, "/ws") ||
		strings.Contains(path, "/upload") ||
		req.Header.Get("Accept") == "text/event-stream" ||
		strings.EqualFold(req.Header.Get("Upgrade"), "websocket")
}
