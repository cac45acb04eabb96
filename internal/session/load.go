package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ifc-viewer/backend/internal/loader"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/snapshot"
	"github.com/ifc-viewer/backend/internal/viewer"
)

// LoadRequest names the model file a session should load.
type LoadRequest struct {
	// FileID keys the snapshot store. It may be empty for external URLs.
	FileID   string
	Location string
	// UseSnapshot restores item attributes from a stored snapshot when one
	// exists, instead of pulling properties and classifying.
	UseSnapshot bool
}

// LoadModel starts loading a model into a session in the background. Any
// load already in flight is cancelled and its model disposed.
func (m *Manager) LoadModel(id string, req LoadRequest) (uint64, error) {
	state, err := m.touch(id)
	if err != nil {
		return 0, err
	}

	state.mu.Lock()
	if state.cancel != nil {
		state.cancel()
	}
	gen, disposed, err := state.viewer.BeginLoad()
	if err != nil {
		state.mu.Unlock()
		return 0, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	state.cancel = cancel
	state.mu.Unlock()

	if disposed.Items > 0 {
		fmt.Printf("[Session %s] Disposed previous model (%d items)\n", shortID(id), disposed.Items)
	}

	m.mu.Lock()
	state.Session.FileID = req.FileID
	state.Session.Status = models.SessionStatusLoading
	state.Session.Step = models.LoadStepIdle
	state.Session.Progress = 0
	state.Session.Restored = false
	state.Session.Errors = make([]models.LoadError, 0)
	m.mu.Unlock()

	go m.runLoad(ctx, id, state, gen, req)
	return gen, nil
}

func (m *Manager) runLoad(ctx context.Context, id string, state *State, gen uint64, req LoadRequest) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Session %s] PANIC recovered during load: %v\n", shortID(id), r)
			m.updateSessionError(id, state, models.LoadStepIdle, fmt.Sprintf("load panicked: %v", r))
		}
	}()

	start := time.Now()
	data := m.snapshotFor(ctx, id, req)

	lastStep := models.LoadStepFetching
	model, res, loadErr := m.cfg.Loader.Load(ctx, loader.Request{
		Location:       req.Location,
		LoadProperties: data == nil,
		Tag:            id,
	}, loader.Callbacks{
		OnProgress: func(ev models.ProgressEvent) {
			if ev.Step == models.LoadStepFetching || ev.Step == models.LoadStepLoading {
				lastStep = ev.Step
			}
			m.updateProgress(state, ev)
			state.hub.publish(Event{Type: EventProgress, Data: ev})
		},
	})

	if loadErr != nil {
		state.mu.Lock()
		state.viewer.FailLoad(gen, model)
		state.mu.Unlock()
		if errors.Is(loadErr, context.Canceled) {
			return
		}
		m.updateSessionError(id, state, lastStep, loadErr.Error())
		return
	}

	state.mu.Lock()
	result, err := state.viewer.InstallModel(gen, model, data)
	state.mu.Unlock()
	if errors.Is(err, viewer.ErrStaleLoad) {
		fmt.Printf("[Session %s] Discarded superseded load %d\n", shortID(id), gen)
		return
	}
	if err != nil {
		m.updateSessionError(id, state, models.LoadStepDone, err.Error())
		return
	}

	m.mu.Lock()
	state.Session.Status = models.SessionStatusReady
	state.Session.Step = models.LoadStepDone
	state.Session.Progress = 100
	state.Session.ItemCount = result.Items
	state.Session.PrimitiveCount = result.Primitives
	state.Session.SelectableCount = len(result.Selectable)
	state.Session.Restored = data != nil
	state.Session.LoadTimeMs = time.Since(start).Milliseconds()
	m.mu.Unlock()

	fmt.Printf("[Session %s] Model ready: %d items, %d selectable, %d bytes in %v\n",
		shortID(id), result.Items, len(result.Selectable), res.Bytes, time.Since(start))
	state.hub.publish(Event{Type: EventLoad, Data: result})
}

// snapshotFor returns the stored snapshot for the request, or nil when
// none applies. A snapshot that fails to load falls back to classification.
func (m *Manager) snapshotFor(ctx context.Context, id string, req LoadRequest) []models.ItemSnapshot {
	if !req.UseSnapshot || req.FileID == "" || m.cfg.Snapshots == nil || !m.cfg.Snapshots.Has(req.FileID) {
		return nil
	}
	data, err := m.cfg.Snapshots.Load(ctx, req.FileID)
	if err != nil {
		fmt.Printf("[Session %s] Snapshot unavailable, classifying instead: %v\n", shortID(id), err)
		return nil
	}
	if data == nil {
		data = []models.ItemSnapshot{}
	}
	return data
}

func (m *Manager) updateProgress(state *State, ev models.ProgressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.Type != models.ProgressTypeProgress {
		return
	}
	state.Session.Step = ev.Step
	if !ev.LengthComputable || ev.Total <= 0 {
		return
	}
	frac := float64(ev.Loaded) / float64(ev.Total)
	switch ev.Step {
	case models.LoadStepFetching:
		state.Session.Progress = frac * 50
	case models.LoadStepLoading:
		state.Session.Progress = 50 + frac*49.9
	}
}

func (m *Manager) updateSessionError(id string, state *State, step models.LoadStep, reason string) {
	m.mu.Lock()
	state.Session.Status = models.SessionStatusError
	state.Session.Errors = append(state.Session.Errors, models.LoadError{Step: step, Reason: reason})
	m.mu.Unlock()
	state.hub.publish(Event{Type: EventError, Data: models.LoadError{Step: step, Reason: reason}})
}

// SaveSnapshot stores the derived attributes of a session's model under
// its file id and returns the number of items saved.
func (m *Manager) SaveSnapshot(ctx context.Context, id string) (int, error) {
	if m.cfg.Snapshots == nil {
		return 0, ErrSnapshotsDisabled
	}
	sess, ok := m.GetSession(id)
	if !ok {
		return 0, ErrSessionNotFound
	}
	if sess.FileID == "" {
		return 0, fmt.Errorf("session %s has no file to key the snapshot", shortID(id))
	}

	var data []models.ItemSnapshot
	err := m.Do(id, func(v *viewer.Viewer) error {
		if v.Status() != viewer.StatusModelLoaded {
			return viewer.ErrModelNotLoaded
		}
		data = snapshot.GetDataToSave(v.Model())
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := m.cfg.Snapshots.Save(ctx, sess.FileID, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Snapshot returns the current attribute set of a session's model without
// storing it.
func (m *Manager) Snapshot(id string) ([]models.ItemSnapshot, error) {
	var data []models.ItemSnapshot
	err := m.Do(id, func(v *viewer.Viewer) error {
		if v.Status() != viewer.StatusModelLoaded {
			return viewer.ErrModelNotLoaded
		}
		data = snapshot.GetDataToSave(v.Model())
		return nil
	})
	return data, err
}

// RestoreSnapshot overwrites item attributes of a loaded model from data
// and restyles it. It returns how many items were restored.
func (m *Manager) RestoreSnapshot(id string, data []models.ItemSnapshot) (int, error) {
	var n int
	err := m.Do(id, func(v *viewer.Viewer) error {
		var err error
		n, err = v.RestoreData(data)
		return err
	})
	return n, err
}
