package models

// SessionStatus represents the load status of a viewer session.
type SessionStatus string

const (
	SessionStatusPending SessionStatus = "pending"
	SessionStatusLoading SessionStatus = "loading"
	SessionStatusReady   SessionStatus = "ready"
	SessionStatusError   SessionStatus = "error"
)

// LoadStep is the stage reported by load progress events.
type LoadStep string

const (
	LoadStepIdle     LoadStep = "idle"
	LoadStepFetching LoadStep = "fetching"
	LoadStepLoading  LoadStep = "loading"
	LoadStepDone     LoadStep = "done"
)

// ProgressType distinguishes progress, completion and failure events.
type ProgressType string

const (
	ProgressTypeProgress ProgressType = "progress"
	ProgressTypeDone     ProgressType = "done"
	ProgressTypeError    ProgressType = "error"
)

// ProgressEvent is emitted while a model file is fetched and streamed.
type ProgressEvent struct {
	Type             ProgressType `json:"type"`
	Step             LoadStep     `json:"step"`
	Loaded           int64        `json:"loaded"`
	Total            int64        `json:"total"`
	LengthComputable bool         `json:"lengthComputable"`
}

// ViewerSession is the externally visible state of one viewer.
type ViewerSession struct {
	ID              string        `json:"id"`
	FileID          string        `json:"fileId,omitempty"`
	Status          SessionStatus `json:"status"`
	Progress        float64       `json:"progress"` // 0-100
	Step            LoadStep      `json:"step,omitempty"`
	ItemCount       int           `json:"itemCount,omitempty"`
	PrimitiveCount  int           `json:"primitiveCount,omitempty"`
	SelectableCount int           `json:"selectableCount,omitempty"`
	Restored        bool          `json:"restored,omitempty"`
	LoadTimeMs      int64         `json:"loadTimeMs,omitempty"`
	Errors          []LoadError   `json:"errors,omitempty"`
}

// LoadError describes a failed fetch or decode.
type LoadError struct {
	Step   LoadStep `json:"step,omitempty"`
	Reason string   `json:"reason"`
}

// NewViewerSession creates a ViewerSession in pending status.
func NewViewerSession(id string) *ViewerSession {
	return &ViewerSession{
		ID:     id,
		Status: SessionStatusPending,
		Errors: make([]LoadError, 0),
	}
}
