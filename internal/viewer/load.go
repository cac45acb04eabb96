package viewer

import (
	"cogentcore.org/core/math32"
	"github.com/ifc-viewer/backend/internal/classify"
	"github.com/ifc-viewer/backend/internal/graph"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/resolver"
	"github.com/ifc-viewer/backend/internal/snapshot"
)

// LoadResult summarises an installed model.
type LoadResult struct {
	Generation     uint64               `json:"generation"`
	Items          int                  `json:"items"`
	Primitives     int                  `json:"primitives"`
	Restored       int                  `json:"restored"`
	Classification classify.Stats       `json:"classification"`
	Selectable     []*models.Item       `json:"-"`
	Camera         Camera               `json:"camera"`
	Sphere         BoundingSphereResult `json:"boundingSphere"`
}

// BoundingSphereResult is a serializable bounding sphere.
type BoundingSphereResult struct {
	Center [3]float32 `json:"center"`
	Radius float32    `json:"radius"`
}

// BeginLoad disposes the current model and any partial model left by a
// failed load, clears the interaction state and returns the generation the
// new load must present to InstallModel.
func (v *Viewer) BeginLoad() (uint64, graph.DisposeStats, error) {
	if v.status == StatusNotInitialized {
		return 0, graph.DisposeStats{}, ErrNotInitialized
	}
	stats := v.unload()
	v.generation++
	return v.generation, stats, nil
}

// Generation returns the generation of the most recent BeginLoad.
func (v *Viewer) Generation() uint64 {
	return v.generation
}

// InstallModel centres m, restores its derived attributes from data or
// classifies it when data is nil, fits the camera and restyles every item.
// A model from a superseded load is disposed and ErrStaleLoad returned.
// m is also disposed when the viewer has no camera to fit.
func (v *Viewer) InstallModel(gen uint64, m *graph.Model, data []models.ItemSnapshot) (LoadResult, error) {
	if gen != v.generation {
		m.Dispose()
		return LoadResult{}, ErrStaleLoad
	}
	if err := v.requireCamera(); err != nil {
		m.Dispose()
		return LoadResult{}, err
	}

	m.Center()
	v.model = m
	v.resolver = resolver.New(m, v.opts.Palette)
	v.selected, v.hovered, v.press = models.NoItem, models.NoItem, nil

	res := LoadResult{
		Generation: gen,
		Items:      m.Len(),
		Primitives: m.PrimitiveCount(),
	}
	if data != nil {
		res.Restored = snapshot.RestoreData(m, data)
	} else {
		res.Classification = v.classify()
	}

	v.updateBoundingSphere()
	v.camera.Fit(v.sphere)
	v.status = StatusModelLoaded
	v.resolveAll()

	res.Selectable = v.SelectableItems()
	res.Camera = *v.camera
	res.Sphere = sphereResult(v.sphere)
	v.lastLoad = res
	v.broadcast(CommandFit)
	if v.cb.OnLoad != nil {
		v.cb.OnLoad(res)
	}
	return res, nil
}

// RestoreData overwrites item attributes of the loaded model from a
// snapshot and restyles it. Items without an entry keep their attributes.
func (v *Viewer) RestoreData(data []models.ItemSnapshot) (int, error) {
	if v.status != StatusModelLoaded {
		return 0, ErrModelNotLoaded
	}
	n := snapshot.RestoreData(v.model, data)
	v.resolveAll()
	return n, nil
}

// FailLoad records a failed load. The partial model is kept for inspection
// and disposed by the next BeginLoad; the viewer stays usable.
func (v *Viewer) FailLoad(gen uint64, partial *graph.Model) {
	if partial == nil {
		return
	}
	if gen != v.generation {
		partial.Dispose()
		return
	}
	if v.partial != nil && v.partial != partial {
		v.partial.Dispose()
	}
	v.partial = partial
}

// Partial returns the model left by the last failed load, or nil.
func (v *Viewer) Partial() *graph.Model {
	return v.partial
}

// LastLoad returns the result of the most recent successful install.
func (v *Viewer) LastLoad() LoadResult {
	return v.lastLoad
}

// Close disposes every model resource. The viewer returns to READY, or
// stays NOT_INITIALIZED.
func (v *Viewer) Close() graph.DisposeStats {
	v.generation++
	return v.unload()
}

func (v *Viewer) unload() graph.DisposeStats {
	var stats graph.DisposeStats
	if v.model != nil {
		stats = v.model.Dispose()
	}
	if v.partial != nil {
		p := v.partial.Dispose()
		stats.Geometries += p.Geometries
		stats.Materials += p.Materials
		stats.Items += p.Items
	}
	v.model, v.partial, v.resolver = nil, nil, nil
	v.selected, v.hovered, v.press = models.NoItem, models.NoItem, nil
	v.lastLoad = LoadResult{}
	v.sphere = math32.Sphere{}
	if v.status == StatusModelLoaded {
		v.status = StatusReady
	}
	return stats
}

func (v *Viewer) updateBoundingSphere() {
	if v.model == nil {
		v.sphere = math32.Sphere{}
		return
	}
	if v.selected != models.NoItem {
		v.sphere = v.model.BoundingSphere(v.selected)
		return
	}
	v.sphere = v.model.BoundingSphere()
}

func sphereResult(s math32.Sphere) BoundingSphereResult {
	return BoundingSphereResult{
		Center: [3]float32{s.Center.X, s.Center.Y, s.Center.Z},
		Radius: s.Radius,
	}
}
