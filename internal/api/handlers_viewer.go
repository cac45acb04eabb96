// handlers_viewer.go - Viewer session handlers
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ifc-viewer/backend/internal/loader"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/scene"
	"github.com/ifc-viewer/backend/internal/session"
	"github.com/ifc-viewer/backend/internal/storage"
	"github.com/ifc-viewer/backend/internal/viewer"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Pointer event types accepted by HandlePointer and the websocket stream.
const (
	PointerDown  = "down"
	PointerMove  = "move"
	PointerUp    = "up"
	PointerLeave = "leave"
)

// ViewerHandlerImpl implements the ViewerHandler interface
type ViewerHandlerImpl struct {
	sessions SessionManager
	store    storage.Store
}

// NewViewerHandler creates a new viewer handler
func NewViewerHandler(sessions SessionManager, store storage.Store) ViewerHandler {
	return &ViewerHandlerImpl{
		sessions: sessions,
		store:    store,
	}
}

// HandleCreateSession starts a viewer on a surface of the given size
func (h *ViewerHandlerImpl) HandleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Width <= 0 {
		return NewValidationError("width")
	}
	if req.Height <= 0 {
		return NewValidationError("height")
	}

	sess, err := h.sessions.CreateSession(viewer.Surface{Width: req.Width, Height: req.Height}, req.Camera)
	if err != nil {
		return fromSessionError(err, "")
	}
	return c.JSON(http.StatusCreated, sess)
}

// HandleListSessions returns every live session
func (h *ViewerHandlerImpl) HandleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessions.ListSessions())
}

// HandleGetSession returns the load status of a session
func (h *ViewerHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("sessionId")
	sess, ok := h.sessions.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	h.sessions.TouchSession(id)
	return c.JSON(http.StatusOK, sess)
}

// HandleDeleteSession releases a session and its model
func (h *ViewerHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("sessionId")
	if err := h.sessions.DeleteSession(id); err != nil {
		return fromSessionError(err, id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSessionKeepAlive protects a session from idle cleanup
func (h *ViewerHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if !h.sessions.TouchSession(id) {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleLoadModel starts loading an uploaded model file or a remote URL
func (h *ViewerHandlerImpl) HandleLoadModel(c echo.Context) error {
	id := c.Param("sessionId")
	var req loadModelRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	load := session.LoadRequest{FileID: req.FileID, Location: req.URL, UseSnapshot: req.UseSnapshot}
	switch {
	case req.FileID != "":
		if h.store == nil {
			return NewServiceUnavailableError("file storage not configured")
		}
		info, err := h.store.Get(req.FileID)
		if err != nil {
			return NewNotFoundError("file", req.FileID)
		}
		if info.Kind != models.FileKindModel {
			return NewBadRequestError(fmt.Sprintf("%s is not a model file", info.Name), nil)
		}
		path, err := h.store.GetFilePath(req.FileID)
		if err != nil {
			return NewInternalError("failed to resolve file path", err)
		}
		load.Location = path
	case req.URL == "":
		return NewValidationError("fileId")
	case !loader.IsRemote(req.URL):
		// Local paths are only reachable through uploaded file ids.
		return NewBadRequestError("url must be an http(s) or s3 location", nil)
	}

	gen, err := h.sessions.LoadModel(id, load)
	if err != nil {
		return fromSessionError(err, id)
	}
	sess, _ := h.sessions.GetSession(id)
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"generation": gen,
		"session":    sess,
	})
}

// HandleLoadProgressStream streams load progress via SSE until the load
// completes or fails.
func (h *ViewerHandlerImpl) HandleLoadProgressStream(c echo.Context) error {
	id := c.Param("sessionId")
	events, unsubscribe, err := h.sessions.Subscribe(id)
	if err != nil {
		return fromSessionError(err, id)
	}
	defer unsubscribe()

	sess, ok := h.sessions.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	startSSE(c)
	if err := writeSSE(c, session.Event{Type: "status", Data: sess}); err != nil {
		return nil
	}
	if sess.Status != models.SessionStatusLoading {
		return nil
	}

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok || ev.Type == session.EventClosed {
				return nil
			}
			switch ev.Type {
			case session.EventProgress:
				if err := writeSSE(c, ev); err != nil {
					return nil
				}
			case session.EventLoad, session.EventError:
				if sess, ok := h.sessions.GetSession(id); ok {
					writeSSE(c, session.Event{Type: ev.Type, Data: sess})
				}
				return nil
			}
		}
	}
}

// HandleResize updates the surface size
func (h *ViewerHandlerImpl) HandleResize(c echo.Context) error {
	id := c.Param("sessionId")
	var req resizeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	var cam viewer.Camera
	err := h.sessions.Do(id, func(v *viewer.Viewer) error {
		if err := v.Resize(req.Width, req.Height); err != nil {
			return err
		}
		cam, _ = v.Camera()
		return nil
	})
	if err != nil {
		return fromSessionError(err, id)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"camera": cam})
}

// HandlePointer feeds one pointer event to the interaction state machine
func (h *ViewerHandlerImpl) HandlePointer(c echo.Context) error {
	id := c.Param("sessionId")
	var req pointerRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	var resp interactionState
	err := h.sessions.Do(id, func(v *viewer.Viewer) error {
		resp = applyPointer(v, req)
		return nil
	})
	if err != nil {
		return fromSessionError(err, id)
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleSelect selects by express id, by property query, or clears the
// selection when neither is given.
func (h *ViewerHandlerImpl) HandleSelect(c echo.Context) error {
	id := c.Param("sessionId")
	var req selectRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	var resp selectResponse
	err := h.sessions.Do(id, func(v *viewer.Viewer) error {
		var err error
		resp, err = selectItem(v, req)
		return err
	})
	if err != nil {
		return fromSessionError(err, id)
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleSetViewMode sets the view mode
func (h *ViewerHandlerImpl) HandleSetViewMode(c echo.Context) error {
	id := c.Param("sessionId")
	var req viewModeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	mode, err := models.ParseViewMode(req.Mode)
	if err != nil {
		return NewBadRequestError("invalid view mode", err)
	}
	return h.changeViewMode(c, id, func(v *viewer.Viewer) models.ViewMode {
		v.SetViewMode(mode)
		return mode
	})
}

// HandleCycleViewMode advances to the next view mode
func (h *ViewerHandlerImpl) HandleCycleViewMode(c echo.Context) error {
	id := c.Param("sessionId")
	return h.changeViewMode(c, id, func(v *viewer.Viewer) models.ViewMode {
		return v.CycleViewMode()
	})
}

func (h *ViewerHandlerImpl) changeViewMode(c echo.Context, id string, fn func(v *viewer.Viewer) models.ViewMode) error {
	var mode models.ViewMode
	err := h.sessions.Do(id, func(v *viewer.Viewer) error {
		mode = fn(v)
		return nil
	})
	if err != nil {
		return fromSessionError(err, id)
	}
	h.sessions.Publish(id, session.Event{Type: session.EventViewMode, Data: mode})
	return c.JSON(http.StatusOK, map[string]models.ViewMode{"mode": mode})
}

// HandleCamera runs a camera command
func (h *ViewerHandlerImpl) HandleCamera(c echo.Context) error {
	id := c.Param("sessionId")
	var req cameraRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	var resp viewer.CameraEvent
	err := h.sessions.Do(id, func(v *viewer.Viewer) error {
		var err error
		resp, err = runCameraCommand(v, req)
		return err
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return fromSessionError(err, id)
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleGetScene returns the renderer-facing scene graph as JSON or msgpack
func (h *ViewerHandlerImpl) HandleGetScene(c echo.Context) error {
	id := c.Param("sessionId")
	format := c.QueryParam("format")
	if format != "" && format != scene.FormatJSON && format != scene.FormatMsgpack {
		return NewValidationError("format")
	}
	opts := scene.Options{
		Geometry:   c.QueryParam("geometry") == "true",
		SkipHidden: c.QueryParam("visibleOnly") == "true",
	}

	var buf bytes.Buffer
	err := h.sessions.Do(id, func(v *viewer.Viewer) error {
		return scene.Encode(&buf, v.Project(opts), format)
	})
	if err != nil {
		return fromSessionError(err, id)
	}
	return c.Blob(http.StatusOK, scene.ContentType(format), buf.Bytes())
}

// HandleGetSelectableItems returns the selectable items of the loaded model
func (h *ViewerHandlerImpl) HandleGetSelectableItems(c echo.Context) error {
	id := c.Param("sessionId")
	var items []*session.ItemRef
	err := h.sessions.Do(id, func(v *viewer.Viewer) error {
		if v.Status() != viewer.StatusModelLoaded {
			return viewer.ErrModelNotLoaded
		}
		items = make([]*session.ItemRef, 0)
		for _, it := range v.SelectableItems() {
			items = append(items, session.RefOf(it))
		}
		return nil
	})
	if err != nil {
		return fromSessionError(err, id)
	}
	return c.JSON(http.StatusOK, items)
}

// HandleGetItem returns one item with its properties and derived attributes
func (h *ViewerHandlerImpl) HandleGetItem(c echo.Context) error {
	id := c.Param("sessionId")
	expressID, err := strconv.Atoi(c.Param("itemId"))
	if err != nil {
		return NewValidationError("itemId")
	}

	var data []byte
	err = h.sessions.Do(id, func(v *viewer.Viewer) error {
		if v.Status() != viewer.StatusModelLoaded {
			return viewer.ErrModelNotLoaded
		}
		it := v.Model().ItemByID(expressID)
		if it == nil {
			return viewer.ErrItemNotFound
		}
		var err error
		data, err = json.Marshal(it)
		return err
	})
	if err != nil {
		return fromSessionError(err, c.Param("itemId"))
	}
	return c.JSONBlob(http.StatusOK, data)
}

// HandleGetSnapshot returns the current derived attributes of every item
func (h *ViewerHandlerImpl) HandleGetSnapshot(c echo.Context) error {
	id := c.Param("sessionId")
	data, err := h.sessions.Snapshot(id)
	if err != nil {
		return fromSessionError(err, id)
	}
	if c.QueryParam("format") == scene.FormatMsgpack {
		b, err := msgpack.Marshal(data)
		if err != nil {
			return NewInternalError("failed to encode snapshot", err)
		}
		return c.Blob(http.StatusOK, scene.ContentType(scene.FormatMsgpack), b)
	}
	return c.JSON(http.StatusOK, data)
}

// HandleSaveSnapshot persists the snapshot under the session's model file
func (h *ViewerHandlerImpl) HandleSaveSnapshot(c echo.Context) error {
	id := c.Param("sessionId")
	n, err := h.sessions.SaveSnapshot(c.Request().Context(), id)
	if err != nil {
		return fromSessionError(err, id)
	}
	return c.JSON(http.StatusOK, map[string]int{"saved": n})
}

// HandleRestoreSnapshot overwrites item attributes from the request body
func (h *ViewerHandlerImpl) HandleRestoreSnapshot(c echo.Context) error {
	id := c.Param("sessionId")
	var data []models.ItemSnapshot
	if err := json.NewDecoder(c.Request().Body).Decode(&data); err != nil {
		return NewBadRequestError("invalid snapshot body", err)
	}
	n, err := h.sessions.RestoreSnapshot(id, data)
	if err != nil {
		return fromSessionError(err, id)
	}
	return c.JSON(http.StatusOK, map[string]int{"restored": n})
}

// applyPointer runs one pointer event and reports the resulting state.
func applyPointer(v *viewer.Viewer, req pointerRequest) interactionState {
	var changed bool
	switch req.Type {
	case PointerDown:
		v.PointerDown(req.X, req.Y)
	case PointerMove:
		changed = v.PointerMove(req.X, req.Y)
	case PointerUp:
		changed = v.PointerUp(req.X, req.Y)
	case PointerLeave:
		changed = v.PointerLeave()
	}
	return interactionState{
		Changed:  changed,
		Selected: session.RefOf(v.Selected()),
		Hovered:  session.RefOf(v.Hovered()),
		Mode:     v.ViewMode(),
	}
}

// selectItem runs a select request against v.
func selectItem(v *viewer.Viewer, req selectRequest) (selectResponse, error) {
	var resp selectResponse
	switch {
	case req.Query != nil:
		it, err := v.SelectByProperty(req.Query)
		if err != nil {
			return resp, err
		}
		resp.Found = it != nil
	case req.ID != nil:
		found, err := v.SelectByID(*req.ID)
		if err != nil {
			return resp, err
		}
		resp.Found = found
	default:
		if v.Status() != viewer.StatusModelLoaded {
			return resp, viewer.ErrModelNotLoaded
		}
		v.ClearSelection()
	}
	resp.Selected = session.RefOf(v.Selected())
	return resp, nil
}

// runCameraCommand dispatches a camera command and returns the camera after it.
func runCameraCommand(v *viewer.Viewer, req cameraRequest) (viewer.CameraEvent, error) {
	var err error
	switch viewer.CameraCommand(req.Command) {
	case viewer.CommandLookAt:
		err = v.LookAt(req.ID)
	case viewer.CommandMoveAt:
		err = v.MoveAt(req.ID)
	case viewer.CommandSetFullscreen:
		v.SetFullscreen(req.Fullscreen)
	case viewer.CommandResetView:
		err = v.ResetView()
	default:
		return viewer.CameraEvent{}, NewBadRequestError(fmt.Sprintf("unknown camera command %q", req.Command), nil)
	}
	if err != nil {
		return viewer.CameraEvent{}, err
	}
	cam, _ := v.Camera()
	return viewer.CameraEvent{Command: viewer.CameraCommand(req.Command), Camera: cam, Fullscreen: v.Fullscreen()}, nil
}

// Request/Response types

type createSessionRequest struct {
	Width  float32        `json:"width"`
	Height float32        `json:"height"`
	Camera *viewer.Camera `json:"camera,omitempty"`
}

type loadModelRequest struct {
	FileID      string `json:"fileId"`
	URL         string `json:"url"`
	UseSnapshot bool   `json:"useSnapshot"`
}

type resizeRequest struct {
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

type pointerRequest struct {
	Type string  `json:"type"`
	X    float32 `json:"x"`
	Y    float32 `json:"y"`
}

func (r *pointerRequest) validate() error {
	switch r.Type {
	case PointerDown, PointerMove, PointerUp, PointerLeave:
		return nil
	}
	return NewValidationError("type")
}

type interactionState struct {
	Changed  bool             `json:"changed"`
	Selected *session.ItemRef `json:"selected"`
	Hovered  *session.ItemRef `json:"hovered"`
	Mode     models.ViewMode  `json:"mode"`
}

type selectRequest struct {
	ID    *int                `json:"id,omitempty"`
	Query *models.Requirement `json:"query,omitempty"`
}

type selectResponse struct {
	Found    bool             `json:"found"`
	Selected *session.ItemRef `json:"selected"`
}

type viewModeRequest struct {
	Mode string `json:"mode"`
}

type cameraRequest struct {
	Command    string `json:"command"`
	ID         int    `json:"id"`
	Fullscreen bool   `json:"fullscreen"`
}
