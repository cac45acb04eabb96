// handlers_requirements.go - Requirement set handlers
package api

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/parser"
	"github.com/ifc-viewer/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// RequirementsHandlerImpl implements the RequirementsHandler interface
type RequirementsHandlerImpl struct {
	sessions SessionManager
	store    storage.Store
}

// NewRequirementsHandler creates a new requirements handler
func NewRequirementsHandler(sessions SessionManager, store storage.Store) RequirementsHandler {
	return &RequirementsHandlerImpl{
		sessions: sessions,
		store:    store,
	}
}

// HandleGetRequirements returns the active requirement set
func (h *RequirementsHandlerImpl) HandleGetRequirements(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessions.Requirements())
}

// HandleSetRequirements replaces the requirement set and re-classifies
// every loaded model. The body is JSON, or YAML/TOML by content type.
func (h *RequirementsHandlerImpl) HandleSetRequirements(c echo.Context) error {
	format := requirementsFormatOf(c.Request().Header.Get(echo.HeaderContentType))
	rs, err := parser.ParseRequirementsFromReader(c.Request().Body, format)
	if err != nil {
		return NewBadRequestError("invalid requirement set", err)
	}
	return h.apply(c, *rs, "")
}

// HandleActivateRequirementsFile applies an uploaded requirement file
func (h *RequirementsHandlerImpl) HandleActivateRequirementsFile(c echo.Context) error {
	var req struct {
		FileID string `json:"fileId"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.FileID == "" {
		return NewValidationError("fileId")
	}
	if h.store == nil {
		return NewServiceUnavailableError("file storage not configured")
	}

	info, err := h.store.Get(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}
	if info.Kind != models.FileKindRequirements {
		return NewBadRequestError(fmt.Sprintf("%s is not a requirement file", info.Name), nil)
	}
	format, err := parser.RequirementsFormat(info.Name)
	if err != nil {
		return NewBadRequestError("unsupported requirement file", err)
	}
	path, err := h.store.GetFilePath(req.FileID)
	if err != nil {
		return NewInternalError("failed to resolve file path", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return NewInternalError("failed to open requirement file", err)
	}
	defer f.Close()

	rs, err := parser.ParseRequirementsFromReader(f, format)
	if err != nil {
		return NewBadRequestError("invalid requirement file", err)
	}
	return h.apply(c, *rs, info.ID)
}

func (h *RequirementsHandlerImpl) apply(c echo.Context, rs models.RequirementSet, fileID string) error {
	n := h.sessions.SetRequirements(rs)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"fileId":        fileID,
		"links":         len(rs.Links),
		"selectable":    len(rs.Selectable),
		"alwaysVisible": len(rs.AlwaysVisible),
		"reclassified":  n,
	})
}

// requirementsFormatOf maps a content type to a requirement encoding.
func requirementsFormatOf(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "yaml"):
		return parser.RequirementsYAML
	case strings.Contains(ct, "toml"):
		return parser.RequirementsTOML
	}
	return parser.RequirementsJSON
}
