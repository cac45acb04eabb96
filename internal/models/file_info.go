package models

import "time"

// FileKind distinguishes uploaded model files from requirement files.
type FileKind string

const (
	FileKindModel        FileKind = "model"
	FileKindRequirements FileKind = "requirements"
)

// FileInfo describes an uploaded model or requirement file.
type FileInfo struct {
	ID          string    `json:"id" msgpack:"id"`
	Name        string    `json:"name" msgpack:"name"`
	Kind        FileKind  `json:"kind" msgpack:"kind"`
	Size        int64     `json:"size" msgpack:"size"`
	UploadedAt  time.Time `json:"uploadedAt" msgpack:"uploadedAt"`
	Status      string    `json:"status" msgpack:"status"` // "uploaded", "loaded", "invalid"
	Format      string    `json:"format,omitempty" msgpack:"format,omitempty"`
	HasSnapshot bool      `json:"hasSnapshot,omitempty" msgpack:"-"`
}
