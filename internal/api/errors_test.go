package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ifc-viewer/backend/internal/session"
	"github.com/ifc-viewer/backend/internal/snapshot"
	"github.com/ifc-viewer/backend/internal/viewer"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestFromSessionError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{session.ErrSessionNotFound, http.StatusNotFound, "NOT_FOUND"},
		{session.ErrTooManySessions, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{session.ErrSnapshotsDisabled, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{fmt.Errorf("load: %w", snapshot.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{viewer.ErrItemNotFound, http.StatusNotFound, "NOT_FOUND"},
		{viewer.ErrModelNotLoaded, http.StatusConflict, "NOT_READY"},
		{viewer.ErrNotInitialized, http.StatusConflict, "NOT_READY"},
		{viewer.ErrInvalidSurface, http.StatusBadRequest, "BAD_REQUEST"},
		{viewer.ErrStaleLoad, http.StatusConflict, "CONFLICT"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			apiErr := fromSessionError(tt.err, "abc")
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		contains string
	}{
		{"api error", NewNotFoundError("file", "f1"), http.StatusNotFound, `"code":"NOT_FOUND"`},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), http.StatusMethodNotAllowed, `"code":"HTTP_ERROR"`},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, `"details":"boom"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			ErrorHandler(tt.err, c)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}
