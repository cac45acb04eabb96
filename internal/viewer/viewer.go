// Package viewer implements the interaction state machine of a model viewer:
// the load gate, hover and selection transitions driven by pointer events,
// view-mode changes, camera commands and idle render throttling.
//
// A Viewer is not safe for concurrent use. Callers serialize every call, so
// each event runs to completion before the next one starts.
package viewer

import (
	"errors"
	"sort"
	"time"

	"cogentcore.org/core/math32"
	"github.com/ifc-viewer/backend/internal/classify"
	"github.com/ifc-viewer/backend/internal/graph"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/resolver"
)

var (
	// ErrNotInitialized is returned when the surface or camera an operation
	// needs has not been provided yet.
	ErrNotInitialized = errors.New("viewer: surface or camera not initialized")
	// ErrModelNotLoaded is returned by operations that need a classified model.
	ErrModelNotLoaded = errors.New("viewer: no model loaded")
	// ErrStaleLoad is returned when a load finishes after a newer one started.
	ErrStaleLoad = errors.New("viewer: load superseded by a newer load")
	// ErrItemNotFound is returned when an express id is not in the model.
	ErrItemNotFound = errors.New("viewer: item not found")
	// ErrInvalidSurface is returned for a surface without area.
	ErrInvalidSurface = errors.New("viewer: surface must have a positive size")
)

// Status gates which operations a viewer accepts.
type Status int

const (
	StatusNotInitialized Status = iota
	StatusReady
	StatusModelLoaded
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "READY"
	case StatusModelLoaded:
		return "MODEL_LOADED"
	default:
		return "NOT_INITIALIZED"
	}
}

// Defaults for Options.
const (
	DefaultClickThreshold float32 = 8
	DefaultIdleDelay              = time.Second
)

// Options configure a Viewer.
type Options struct {
	EnableHover     bool
	EnableSelection bool

	// ClickThreshold is the largest per-axis pointer travel, in pixels,
	// between press and release that still counts as a click.
	ClickThreshold float32
	// IdleDelay is how long continuous rendering lasts after pointer input.
	IdleDelay time.Duration

	Palette                        resolver.Palette
	Requirements                   models.RequirementSet
	AlwaysVisibleWhenUnconstrained bool
	ShowBoundingSphere             bool

	// Picker finds the item under the pointer. Defaults to a Raycaster.
	Picker Picker
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns options with hover and selection enabled.
func DefaultOptions() Options {
	return Options{
		EnableHover:     true,
		EnableSelection: true,
		ClickThreshold:  DefaultClickThreshold,
		IdleDelay:       DefaultIdleDelay,
		Palette:         resolver.DefaultPalette(),
	}
}

// Callbacks receive viewer notifications. Any field may be nil.
type Callbacks struct {
	// OnSelect receives the newly selected item, or nil when cleared.
	OnSelect func(*models.Item)
	// OnHover receives the newly hovered item, or nil when cleared.
	OnHover func(*models.Item)
	// OnLoad runs once a model has been installed and classified.
	OnLoad func(LoadResult)
	// OnFrame is a render request.
	OnFrame func()
}

// Surface is the size of the rendering surface in pixels.
type Surface struct {
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// Viewer owns one model and its interaction state.
type Viewer struct {
	opts Options
	cb   Callbacks

	status        Status
	surface       *Surface
	camera        *Camera
	initialCamera Camera

	model    *graph.Model
	partial  *graph.Model
	resolver *resolver.Resolver
	lastLoad LoadResult

	selected models.ItemHandle
	hovered  models.ItemHandle
	mode     models.ViewMode
	press    *point
	sphere   math32.Sphere

	generation uint64
	idleUntil  time.Time
	frames     uint64
	fullscreen bool

	observers    map[int]func(CameraEvent)
	nextObserver int
}

type point struct {
	X, Y float32
}

// New creates an uninitialized viewer.
func New(opts Options, cb Callbacks) *Viewer {
	if opts.ClickThreshold <= 0 {
		opts.ClickThreshold = DefaultClickThreshold
	}
	if opts.IdleDelay <= 0 {
		opts.IdleDelay = DefaultIdleDelay
	}
	if opts.Palette == (resolver.Palette{}) {
		opts.Palette = resolver.DefaultPalette()
	}
	if opts.Picker == nil {
		opts.Picker = Raycaster{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Viewer{
		opts:      opts,
		cb:        cb,
		selected:  models.NoItem,
		hovered:   models.NoItem,
		mode:      models.ViewModeAll,
		observers: make(map[int]func(CameraEvent)),
	}
}

// Initialize provides the rendering surface and camera and moves the viewer
// to READY. Calling it again replaces both and keeps a loaded model.
func (v *Viewer) Initialize(s Surface, c Camera) error {
	if s.Width <= 0 || s.Height <= 0 {
		return ErrInvalidSurface
	}
	if c.Aspect <= 0 {
		c.Aspect = s.Width / s.Height
	}
	if !c.valid() {
		return ErrNotInitialized
	}
	v.surface = &s
	v.camera = &c
	v.initialCamera = c
	if v.status == StatusNotInitialized {
		v.status = StatusReady
	}
	v.requestFrame()
	return nil
}

// Resize updates the surface size and the camera aspect ratio.
func (v *Viewer) Resize(width, height float32) error {
	if err := v.requireCamera(); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return ErrInvalidSurface
	}
	v.surface.Width, v.surface.Height = width, height
	v.camera.Aspect = width / height
	v.requestFrame()
	return nil
}

// Status returns the current gate state.
func (v *Viewer) Status() Status {
	return v.status
}

// Model returns the installed model, or nil.
func (v *Viewer) Model() *graph.Model {
	return v.model
}

// Camera returns a copy of the current camera.
func (v *Viewer) Camera() (Camera, bool) {
	if v.camera == nil {
		return Camera{}, false
	}
	return *v.camera, true
}

// Surface returns a copy of the current surface.
func (v *Viewer) Surface() (Surface, bool) {
	if v.surface == nil {
		return Surface{}, false
	}
	return *v.surface, true
}

// Options returns the active options.
func (v *Viewer) Options() Options {
	return v.opts
}

// ViewMode returns the active view mode.
func (v *Viewer) ViewMode() models.ViewMode {
	return v.mode
}

// Selected returns the selected item, or nil.
func (v *Viewer) Selected() *models.Item {
	return v.itemAt(v.selected)
}

// Hovered returns the hovered item, or nil.
func (v *Viewer) Hovered() *models.Item {
	return v.itemAt(v.hovered)
}

// BoundingSphere returns the sphere of the current selection, or of the
// whole model when nothing is selected.
func (v *Viewer) BoundingSphere() math32.Sphere {
	return v.sphere
}

// Frames returns the number of render requests issued so far.
func (v *Viewer) Frames() uint64 {
	return v.frames
}

// Requirements returns the active requirement set.
func (v *Viewer) Requirements() models.RequirementSet {
	return v.opts.Requirements
}

// SetRequirements replaces the requirement set and, when a model is loaded,
// reclassifies every item and restyles the whole model.
func (v *Viewer) SetRequirements(rs models.RequirementSet) (classify.Stats, bool) {
	v.opts.Requirements = rs
	if v.status != StatusModelLoaded {
		return classify.Stats{}, false
	}
	stats := v.classify()
	v.resolveAll()
	return stats, true
}

// SetViewMode switches the view mode and restyles the whole model. It works
// with an empty or partial model.
func (v *Viewer) SetViewMode(mode models.ViewMode) {
	v.mode = mode
	v.resolveAll()
}

// CycleViewMode advances to the next view mode and returns it.
func (v *Viewer) CycleViewMode() models.ViewMode {
	v.SetViewMode(v.mode.Next())
	return v.mode
}

// SelectableItems returns every selectable item in model order.
func (v *Viewer) SelectableItems() []*models.Item {
	if v.model == nil {
		return nil
	}
	var out []*models.Item
	for _, it := range v.model.Items() {
		if it.Selectable {
			out = append(out, it)
		}
	}
	return out
}

func (v *Viewer) classify() classify.Stats {
	return classify.Classify(v.model, v.opts.Requirements, classify.Options{
		AlwaysVisibleWhenUnconstrained: v.opts.AlwaysVisibleWhenUnconstrained,
	})
}

func (v *Viewer) state() resolver.State {
	return resolver.State{Selected: v.selected, Hovered: v.hovered, Mode: v.mode}
}

func (v *Viewer) resolveAll() {
	if v.resolver != nil {
		v.resolver.ResolveAll(v.state())
	}
	v.requestFrame()
}

func (v *Viewer) requestFrame() {
	v.frames++
	if v.cb.OnFrame != nil {
		v.cb.OnFrame()
	}
}

func (v *Viewer) requireCamera() error {
	if v.camera == nil || v.surface == nil {
		return ErrNotInitialized
	}
	return nil
}

func (v *Viewer) itemAt(h models.ItemHandle) *models.Item {
	if v.model == nil || h == models.NoItem {
		return nil
	}
	return v.model.Item(h)
}

func sortedObserverIDs(m map[int]func(CameraEvent)) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
