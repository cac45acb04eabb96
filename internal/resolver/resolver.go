// Package resolver derives the material, visibility and render order of
// each primitive from the interaction state and the item's derived
// attributes.
package resolver

import (
	"github.com/ifc-viewer/backend/internal/graph"
	"github.com/ifc-viewer/backend/internal/models"
)

// Default tint colors and transparent-variant opacity.
const (
	DefaultSelectColor        uint32  = 0x16a34a
	DefaultHoverColor         uint32  = 0x00498a
	DefaultTransparentOpacity float32 = 0.3

	// HighlightRenderOrder draws tinted items after regular geometry.
	HighlightRenderOrder = 1
)

// Palette holds the host-configurable styling parameters.
type Palette struct {
	SelectColor        uint32
	HoverColor         uint32
	TransparentOpacity float32
}

// DefaultPalette returns the stock palette.
func DefaultPalette() Palette {
	return Palette{
		SelectColor:        DefaultSelectColor,
		HoverColor:         DefaultHoverColor,
		TransparentOpacity: DefaultTransparentOpacity,
	}
}

// State is the interaction state the resolver reads.
type State struct {
	Selected models.ItemHandle
	Hovered  models.ItemHandle
	Mode     models.ViewMode
}

// Role is the styling branch chosen for an item.
type Role int

const (
	RoleDefault Role = iota
	RoleSelected
	RoleHovered
	RoleTransparent
	RoleHidden
)

func (r Role) String() string {
	switch r {
	case RoleSelected:
		return "selected"
	case RoleHovered:
		return "hovered"
	case RoleTransparent:
		return "transparent"
	case RoleHidden:
		return "hidden"
	default:
		return "default"
	}
}

// Decide returns the role of item h under st. Selection wins over hover,
// and both win over the view mode.
func Decide(h models.ItemHandle, it *models.Item, st State) Role {
	switch {
	case h != models.NoItem && h == st.Selected:
		return RoleSelected
	case h != models.NoItem && h == st.Hovered:
		return RoleHovered
	}
	switch st.Mode {
	case models.ViewModeTransparent:
		if it.Visible() {
			return RoleDefault
		}
		return RoleTransparent
	case models.ViewModeSelectable:
		if it.Visible() {
			return RoleDefault
		}
		return RoleHidden
	default:
		return RoleDefault
	}
}

// Resolver applies roles to the primitives of one model. Generated
// materials are cached in the model per base material id.
type Resolver struct {
	model   *graph.Model
	palette Palette
}

// New creates a Resolver for m.
func New(m *graph.Model, p Palette) *Resolver {
	return &Resolver{model: m, palette: p}
}

// Palette returns the active palette.
func (r *Resolver) Palette() Palette {
	return r.palette
}

// Resolve restyles every primitive of item h and returns the role applied.
// Unknown handles are ignored.
func (r *Resolver) Resolve(h models.ItemHandle, st State) Role {
	it := r.model.Item(h)
	if it == nil {
		return RoleDefault
	}
	role := Decide(h, it, st)
	for _, ph := range it.Primitives {
		r.apply(r.model.Primitive(ph), role)
	}
	return role
}

// ResolveAll restyles every item of the model.
func (r *Resolver) ResolveAll(st State) {
	for i := 0; i < r.model.Len(); i++ {
		r.Resolve(models.ItemHandle(i), st)
	}
}

// ResolveChange restyles only the items whose role may differ after a
// selection or hover transition from prev to next.
func (r *Resolver) ResolveChange(prev, next models.ItemHandle, st State) {
	if prev != models.NoItem {
		r.Resolve(prev, st)
	}
	if next != models.NoItem && next != prev {
		r.Resolve(next, st)
	}
}

func (r *Resolver) apply(p *models.Primitive, role Role) {
	if p == nil {
		return
	}
	base, ok := r.model.Materials.Get(p.MaterialID)
	if !ok {
		return
	}

	p.Visible = true
	p.RenderOrder = 0
	switch role {
	case RoleSelected:
		mat := r.tint(r.model.SelectMaterials, base, "select-", r.palette.SelectColor)
		p.SelectMaterialID = mat.ID
		p.Material = mat
		p.RenderOrder = HighlightRenderOrder
	case RoleHovered:
		mat := r.tint(r.model.HoverMaterials, base, "hover-", r.palette.HoverColor)
		p.HoverMaterialID = mat.ID
		p.Material = mat
		p.RenderOrder = HighlightRenderOrder
	case RoleTransparent:
		p.Material = r.model.TransparentMaterials.GetOrCreate("transparent-"+base.ID, func() *models.Material {
			m := base.Clone("")
			m.Transparent = true
			m.Opacity = r.palette.TransparentOpacity
			m.DepthWrite = false
			return m
		})
	case RoleHidden:
		p.Material = base
		p.Visible = false
	default:
		p.Material = base
	}
}

func (r *Resolver) tint(cache *graph.MaterialCache, base *models.Material, prefix string, color uint32) *models.Material {
	return cache.GetOrCreate(prefix+base.ID, func() *models.Material {
		m := base.Clone("")
		m.Emissive = color
		m.Opacity = 1
		m.Transparent = false
		m.DepthTest = false
		m.DepthWrite = true
		return m
	})
}
