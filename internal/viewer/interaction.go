package viewer

import (
	"time"

	"cogentcore.org/core/math32"
	"github.com/ifc-viewer/backend/internal/matcher"
	"github.com/ifc-viewer/backend/internal/models"
)

// PointerDown records the press position. Ignored until a model is loaded.
func (v *Viewer) PointerDown(x, y float32) {
	if !v.interactive() {
		return
	}
	v.press = &point{X: x, Y: y}
	v.touch()
}

// PointerMove updates the hovered item when hover tracking is enabled and
// reports whether the hovered item changed.
func (v *Viewer) PointerMove(x, y float32) bool {
	if !v.interactive() {
		return false
	}
	v.touch()
	if !v.opts.EnableHover {
		return false
	}
	return v.hover(v.pick(x, y))
}

// PointerUp completes a click. A release further than the click threshold
// from the press on either axis is a drag and leaves the selection alone.
// It reports whether a selection transition ran.
func (v *Viewer) PointerUp(x, y float32) bool {
	if !v.interactive() || v.press == nil {
		return false
	}
	press := *v.press
	v.press = nil

	t := v.opts.ClickThreshold
	if math32.Abs(x-press.X) > t || math32.Abs(y-press.Y) > t {
		return false
	}
	if !v.opts.EnableSelection {
		return false
	}
	v.selectHandle(v.pick(x, y))
	return true
}

// PointerLeave clears the hovered item.
func (v *Viewer) PointerLeave() bool {
	if !v.interactive() {
		return false
	}
	v.press = nil
	return v.hover(models.NoItem)
}

// SelectByID selects the item with the given express id. Zero clears the
// selection, as does an id that is not in the model. It reports whether
// an item was found.
func (v *Viewer) SelectByID(expressID int) (bool, error) {
	if v.status != StatusModelLoaded {
		return false, ErrModelNotLoaded
	}
	if expressID == 0 {
		v.selectHandle(models.NoItem)
		return false, nil
	}
	h, ok := v.model.Lookup(expressID)
	if !ok {
		h = models.NoItem
	}
	v.selectHandle(h)
	return ok, nil
}

// SelectByProperty selects the first item matching query and fits the
// camera to it. A nil query clears the selection. When nothing matches the
// selection is left unchanged and nil is returned.
func (v *Viewer) SelectByProperty(query *models.Requirement) (*models.Item, error) {
	if v.status != StatusModelLoaded {
		return nil, ErrModelNotLoaded
	}
	if query == nil {
		v.selectHandle(models.NoItem)
		return nil, nil
	}
	h, ok := matcher.First(v.model, query)
	if !ok {
		return nil, nil
	}
	v.selectHandle(h)
	if err := v.MoveAt(0); err != nil {
		return v.model.Item(h), err
	}
	return v.model.Item(h), nil
}

// ClearSelection deselects the selected item.
func (v *Viewer) ClearSelection() {
	if v.status != StatusModelLoaded {
		return
	}
	v.selectHandle(models.NoItem)
}

// Eligible reports whether it may be hovered or selected. With no
// selectable requirement configured every item is eligible.
func (v *Viewer) Eligible(it *models.Item) bool {
	if len(v.opts.Requirements.Selectable) == 0 {
		return true
	}
	return it.Selectable
}

// Touch marks pointer activity for idle render throttling.
func (v *Viewer) Touch() {
	v.touch()
}

// Active reports whether continuous rendering should still run at now.
func (v *Viewer) Active(now time.Time) bool {
	return now.Before(v.idleUntil)
}

// Tick is called by the host once per animation frame. It requests a frame
// while the viewer is active and reports whether it did.
func (v *Viewer) Tick(now time.Time) bool {
	if !v.Active(now) {
		return false
	}
	v.requestFrame()
	return true
}

func (v *Viewer) touch() {
	v.idleUntil = v.opts.Now().Add(v.opts.IdleDelay)
}

func (v *Viewer) interactive() bool {
	return v.status == StatusModelLoaded && v.camera != nil && v.surface != nil
}

func (v *Viewer) pick(x, y float32) models.ItemHandle {
	ray := v.camera.Ray(x, y, *v.surface)
	h, ok := v.opts.Picker.Pick(v.model, ray, v.Eligible)
	if !ok {
		return models.NoItem
	}
	return h
}

func (v *Viewer) hover(h models.ItemHandle) bool {
	if h == v.hovered {
		return false
	}
	prev := v.hovered
	v.hovered = h
	v.resolver.ResolveChange(prev, h, v.state())
	v.requestFrame()
	if v.cb.OnHover != nil {
		v.cb.OnHover(v.itemAt(h))
	}
	return true
}

func (v *Viewer) selectHandle(h models.ItemHandle) {
	prev := v.selected
	v.selected = h
	v.resolver.ResolveChange(prev, h, v.state())
	v.updateBoundingSphere()
	v.requestFrame()
	if v.cb.OnSelect != nil {
		v.cb.OnSelect(v.itemAt(h))
	}
}
