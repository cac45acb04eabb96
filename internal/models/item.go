package models

import "sort"

// ItemHandle indexes an Item inside a model arena.
type ItemHandle int

// PrimitiveHandle indexes a Primitive inside a model arena.
type PrimitiveHandle int

// NoItem is the handle used when no item is selected or hovered.
const NoItem ItemHandle = -1

// Property is a single named value of a property set.
// Value is a string, float64, bool, []float64 or nil.
type Property struct {
	Name  string `json:"name" msgpack:"name" yaml:"name"`
	Value any    `json:"value,omitempty" msgpack:"value" yaml:"value,omitempty"`
}

// PropertySet is a named, ordered group of properties.
type PropertySet struct {
	Name       string     `json:"name" msgpack:"name"`
	Properties []Property `json:"properties" msgpack:"properties"`
}

// Item is a semantic model element identified by its express id.
// Selectable, AlwaysVisible and Links are derived attributes and are
// only written by the classification pass or a snapshot restore.
type Item struct {
	ID            int              `json:"id"`
	Kind          string           `json:"kind"`
	Name          string           `json:"name"`
	PropertySets  []PropertySet    `json:"propertySets"`
	Selectable    bool             `json:"selectable"`
	AlwaysVisible bool             `json:"alwaysVisible"`
	Links         map[string][]int `json:"links,omitempty"`

	Primitives []PrimitiveHandle `json:"-"`
}

// Visible reports whether the item survives the view-mode filters.
func (it *Item) Visible() bool {
	return it.Selectable || it.AlwaysVisible
}

// LinkedIDs returns the union of linked express ids across all link names,
// in first-seen order.
func (it *Item) LinkedIDs() []int {
	if len(it.Links) == 0 {
		return nil
	}
	seen := make(map[int]struct{})
	var ids []int
	for _, name := range sortedKeys(it.Links) {
		for _, id := range it.Links[name] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// Primitive is a drawable triangle-mesh fragment owned by exactly one Item.
type Primitive struct {
	Item             ItemHandle `json:"-"`
	GeometryID       string     `json:"geometryId"`
	MaterialID       string     `json:"materialId"`
	HoverMaterialID  string     `json:"hoverMaterialId,omitempty"`
	SelectMaterialID string     `json:"selectMaterialId,omitempty"`

	// Transform is a column-major 4x4 placement matrix; nil means identity.
	Transform []float32 `json:"transform,omitempty"`

	Material    *Material `json:"-"`
	Visible     bool      `json:"visible"`
	RenderOrder int       `json:"renderOrder"`
}

func sortedKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
