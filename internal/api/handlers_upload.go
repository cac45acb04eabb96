// handlers_upload.go - File upload operation handlers
package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/snapshot"
	"github.com/ifc-viewer/backend/internal/storage"
	"github.com/ifc-viewer/backend/internal/upload"
	"github.com/labstack/echo/v4"
)

// recentFilesLimit caps the recent-files listing.
const recentFilesLimit = 20

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store         storage.Store
	snapshots     snapshot.Store
	uploadManager *upload.Manager
}

// NewUploadHandler creates a new upload handler instance. snapshots may be
// nil when snapshot persistence is disabled.
func NewUploadHandler(store storage.Store, snapshots snapshot.Store, uploadMgr *upload.Manager) UploadHandler {
	return &UploadHandlerImpl{
		store:         store,
		snapshots:     snapshots,
		uploadManager: uploadMgr,
	}
}

// HandleUploadFile accepts a file as base64 JSON and saves it to storage
func (h *UploadHandlerImpl) HandleUploadFile(c echo.Context) error {
	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.store.Save(req.Name, bytes.NewReader(decoded))
	if err != nil {
		return NewInternalError("failed to save file", err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleUploadChunk accepts a single chunk of a chunked upload
func (h *UploadHandlerImpl) HandleUploadChunk(c echo.Context) error {
	var req uploadChunkRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	if err := h.store.SaveChunk(req.UploadID, req.ChunkIndex, bytes.NewReader(decoded)); err != nil {
		return NewInternalError("failed to save chunk", err)
	}
	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteUpload completes a chunked upload and starts async processing
func (h *UploadHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	if h.uploadManager == nil {
		return NewServiceUnavailableError("upload processing not configured")
	}

	job := h.uploadManager.StartJob(
		req.UploadID,
		req.Name,
		req.TotalChunks,
		req.OriginalSize,
		req.CompressedSize,
		req.Encoding,
	)

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// HandleUploadBinary accepts raw binary file upload (multipart/form-data)
func (h *UploadHandlerImpl) HandleUploadBinary(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleGetRecentFiles returns recently uploaded files of one kind, model
// files unless ?kind=requirements is given.
func (h *UploadHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	kind := models.FileKind(c.QueryParam("kind"))
	if kind == "" {
		kind = models.FileKindModel
	}
	if kind != models.FileKindModel && kind != models.FileKindRequirements {
		return NewValidationError("kind")
	}

	files, err := h.store.List(0)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	out := filterFiles(files, kind)
	if len(out) > recentFilesLimit {
		out = out[:recentFilesLimit]
	}
	for _, f := range out {
		if h.snapshots != nil && f.Kind == models.FileKindModel {
			f.HasSnapshot = h.snapshots.Has(f.ID)
		}
	}
	return c.JSON(http.StatusOK, out)
}

// HandleGetFile returns metadata for a specific file
func (h *UploadHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	if h.snapshots != nil {
		info.HasSnapshot = h.snapshots.Has(id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes a file and its stored snapshot
func (h *UploadHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("file", id)
	}

	if h.snapshots != nil {
		if err := h.snapshots.Delete(id); err != nil {
			fmt.Printf("[API] Failed to delete snapshot of %s: %v\n", id, err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the name of a file
func (h *UploadHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Name == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleGetUploadJob returns the state of an upload job
func (h *UploadHandlerImpl) HandleGetUploadJob(c echo.Context) error {
	id := c.Param("jobId")
	if h.uploadManager == nil {
		return NewServiceUnavailableError("upload processing not configured")
	}
	job, ok := h.uploadManager.GetJob(id)
	if !ok {
		return NewNotFoundError("upload job", id)
	}
	return c.JSON(http.StatusOK, job)
}

// HandleUploadJobStream streams upload job status via SSE until the job
// completes or fails.
func (h *UploadHandlerImpl) HandleUploadJobStream(c echo.Context) error {
	id := c.Param("jobId")
	if h.uploadManager == nil {
		return NewServiceUnavailableError("upload processing not configured")
	}
	if _, ok := h.uploadManager.GetJob(id); !ok {
		return NewNotFoundError("upload job", id)
	}

	startSSE(c)
	return pollSSE(c, 100*time.Millisecond, func() (interface{}, bool) {
		job, ok := h.uploadManager.GetJob(id)
		if !ok {
			return map[string]string{"error": "upload job not found"}, true
		}
		done := job.Status == upload.StatusComplete || job.Status == upload.StatusError
		return job, done
	})
}

// startSSE writes the event-stream headers.
func startSSE(c echo.Context) {
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
}

// writeSSE sends one data event.
func writeSSE(c echo.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "data: %s\n\n", data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}

// pollSSE sends the value returned by next whenever it changes, until next
// reports done or the client goes away.
func pollSSE(c echo.Context, interval time.Duration, next func() (interface{}, bool)) error {
	ctx := c.Request().Context()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []byte
	for {
		v, done := next()
		data, err := json.Marshal(v)
		if err == nil && !bytes.Equal(data, last) {
			last = data
			if err := writeSSE(c, v); err != nil {
				return nil
			}
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Request/Response types

type uploadFileRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadFileRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type uploadChunkRequest struct {
	UploadID    string `json:"uploadId"`
	ChunkIndex  int    `json:"chunkIndex"`
	Data        string `json:"data"` // Base64-encoded chunk
	TotalChunks int    `json:"totalChunks"`
}

func (r *uploadChunkRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.ChunkIndex < 0 {
		return NewValidationError("chunkIndex")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type completeUploadRequest struct {
	UploadID       string `json:"uploadId"`
	Name           string `json:"name"`
	TotalChunks    int    `json:"totalChunks"`
	OriginalSize   int64  `json:"originalSize"`
	CompressedSize int64  `json:"compressedSize"`
	Encoding       string `json:"encoding"`
}

func (r *completeUploadRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.TotalChunks <= 0 {
		return NewBadRequestError("totalChunks must be positive", nil)
	}
	if r.Encoding != "" && r.Encoding != "gzip" {
		return NewBadRequestError(fmt.Sprintf("unsupported encoding %q", r.Encoding), nil)
	}
	return nil
}

type renameFileRequest struct {
	Name string `json:"name"`
}

// filterFiles keeps files of the given kind. Files rejected by validation
// are left out of the model listing.
func filterFiles(files []*models.FileInfo, kind models.FileKind) []*models.FileInfo {
	out := make([]*models.FileInfo, 0, len(files))
	for _, f := range files {
		if f.Kind != kind || f.Status == "invalid" {
			continue
		}
		out = append(out, f)
	}
	return out
}
