package resolver

import (
	"testing"

	"github.com/ifc-viewer/backend/internal/graph"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/ifc-viewer/backend/internal/testutil"
)

// newModel builds three items sharing one base material:
// 0 selectable, 1 always visible, 2 neither.
func newModel(t *testing.T) *graph.Model {
	t.Helper()
	m := graph.New()
	for i, id := range []int{100, 200, 300} {
		min := [3]float32{float32(i) * 2, 0, 0}
		max := [3]float32{float32(i)*2 + 1, 1, 1}
		if _, err := m.AddRecord(testutil.BoxRecord(id, min, max, testutil.Gray)); err != nil {
			t.Fatalf("AddRecord: %v", err)
		}
	}
	m.Item(0).Selectable = true
	m.Item(1).AlwaysVisible = true
	return m
}

func state(sel, hov models.ItemHandle, mode models.ViewMode) State {
	return State{Selected: sel, Hovered: hov, Mode: mode}
}

func TestDecide(t *testing.T) {
	plain := &models.Item{}
	visible := &models.Item{Selectable: true}

	tests := []struct {
		name string
		h    models.ItemHandle
		it   *models.Item
		st   State
		want Role
	}{
		{"selected", 1, plain, state(1, models.NoItem, models.ViewModeAll), RoleSelected},
		{"selected beats hovered", 1, plain, state(1, 1, models.ViewModeAll), RoleSelected},
		{"hovered", 1, plain, state(models.NoItem, 1, models.ViewModeAll), RoleHovered},
		{"all mode", 1, plain, state(models.NoItem, models.NoItem, models.ViewModeAll), RoleDefault},
		{"transparent hides plain", 1, plain, state(models.NoItem, models.NoItem, models.ViewModeTransparent), RoleTransparent},
		{"transparent keeps visible", 1, visible, state(models.NoItem, models.NoItem, models.ViewModeTransparent), RoleDefault},
		{"selectable hides plain", 1, plain, state(models.NoItem, models.NoItem, models.ViewModeSelectable), RoleHidden},
		{"selectable keeps visible", 1, visible, state(models.NoItem, models.NoItem, models.ViewModeSelectable), RoleDefault},
		{"selection overrides hiding", 1, plain, state(1, models.NoItem, models.ViewModeSelectable), RoleSelected},
		{"hover overrides transparency", 1, plain, state(models.NoItem, 1, models.ViewModeTransparent), RoleHovered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.h, tt.it, tt.st); got != tt.want {
				t.Errorf("Decide = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSelectedStyling(t *testing.T) {
	m := newModel(t)
	r := New(m, DefaultPalette())

	r.Resolve(2, state(2, models.NoItem, models.ViewModeSelectable))
	p := m.PrimitivesOf(2)[0]
	if !p.Visible {
		t.Error("Selected item must be visible in selectable mode")
	}
	if p.Material.Emissive != DefaultSelectColor || p.Material.DepthTest || p.Material.Opacity != 1 {
		t.Errorf("Unexpected selected material: %+v", p.Material)
	}
	if p.RenderOrder != HighlightRenderOrder {
		t.Errorf("Expected render order %d, got %d", HighlightRenderOrder, p.RenderOrder)
	}
	if p.SelectMaterialID == "" {
		t.Error("Expected select material id to be recorded")
	}
	if p.MaterialID != testutil.Gray.MaterialID() {
		t.Errorf("Base material id must not change, got %s", p.MaterialID)
	}
}

func TestTintMaterialsAreCachedPerBase(t *testing.T) {
	m := newModel(t)
	r := New(m, DefaultPalette())

	r.Resolve(0, state(0, models.NoItem, models.ViewModeAll))
	first := m.PrimitivesOf(0)[0].Material

	r.ResolveChange(0, 1, state(1, models.NoItem, models.ViewModeAll))
	second := m.PrimitivesOf(1)[0].Material

	if first != second {
		t.Error("Items sharing a base material must share the select material")
	}
	if m.SelectMaterials.Len() != 1 {
		t.Errorf("Expected 1 cached select material, got %d", m.SelectMaterials.Len())
	}
	if got := m.PrimitivesOf(0)[0].Material; got.ID != testutil.Gray.MaterialID() {
		t.Errorf("Deselected item should be restored to base, got %s", got.ID)
	}

	r.Resolve(2, state(models.NoItem, 2, models.ViewModeAll))
	r.Resolve(2, state(models.NoItem, models.NoItem, models.ViewModeAll))
	r.Resolve(2, state(models.NoItem, 2, models.ViewModeAll))
	if m.HoverMaterials.Len() != 1 {
		t.Errorf("Expected 1 cached hover material, got %d", m.HoverMaterials.Len())
	}
	if m.PrimitivesOf(2)[0].Material.Emissive != DefaultHoverColor {
		t.Error("Expected hover tint")
	}
}

func TestTransparentMode(t *testing.T) {
	m := newModel(t)
	r := New(m, DefaultPalette())
	r.ResolveAll(state(models.NoItem, models.NoItem, models.ViewModeTransparent))

	for h, wantTransparent := range map[models.ItemHandle]bool{0: false, 1: false, 2: true} {
		p := m.PrimitivesOf(h)[0]
		if !p.Visible {
			t.Errorf("item %d: expected visible in transparent mode", h)
		}
		got := p.Material.Opacity == DefaultTransparentOpacity && !p.Material.DepthWrite
		if got != wantTransparent {
			t.Errorf("item %d: transparent = %v, want %v (%+v)", h, got, wantTransparent, p.Material)
		}
	}
	if m.TransparentMaterials.Len() != 1 {
		t.Errorf("Expected 1 transparent variant, got %d", m.TransparentMaterials.Len())
	}
}

func TestSelectableModeHidesAndAllRestores(t *testing.T) {
	m := newModel(t)
	r := New(m, DefaultPalette())
	p := m.PrimitivesOf(2)[0]
	original := p.Material

	r.ResolveAll(state(models.NoItem, models.NoItem, models.ViewModeSelectable))
	if p.Visible {
		t.Error("Expected plain item to be hidden in selectable mode")
	}
	for _, h := range []models.ItemHandle{0, 1} {
		if !m.PrimitivesOf(h)[0].Visible {
			t.Errorf("item %d: expected visible in selectable mode", h)
		}
	}

	r.ResolveAll(state(models.NoItem, models.NoItem, models.ViewModeAll))
	if !p.Visible {
		t.Error("Expected item visible again in all mode")
	}
	if p.Material != original || p.Material.ID != p.MaterialID {
		t.Errorf("Expected original material %s, got %s", original.ID, p.Material.ID)
	}
}

func TestResolveUnknownHandle(t *testing.T) {
	m := newModel(t)
	r := New(m, DefaultPalette())
	if role := r.Resolve(42, state(42, models.NoItem, models.ViewModeAll)); role != RoleDefault {
		t.Errorf("Expected no-op for unknown handle, got %s", role)
	}
}
