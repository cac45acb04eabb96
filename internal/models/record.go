package models

// Fragment is one placed geometry of a decoded mesh record.
// Vertices are interleaved as x,y,z,nx,ny,nz.
type Fragment struct {
	GeometryID int       `json:"geometryId" msgpack:"geometryId"`
	Color      RGBA      `json:"color" msgpack:"color"`
	Vertices   []float32 `json:"vertices" msgpack:"vertices"`
	Indices    []uint32  `json:"indices" msgpack:"indices"`
	Transform  []float32 `json:"transform,omitempty" msgpack:"transform,omitempty"`
}

// MeshRecord is a decoded flat mesh: every fragment placed for one item.
type MeshRecord struct {
	ExpressID int        `json:"expressId" msgpack:"expressId"`
	Fragments []Fragment `json:"fragments" msgpack:"fragments"`
}

// ItemProperties is the property query result for one express id.
type ItemProperties struct {
	ExpressID    int           `json:"expressId" msgpack:"expressId"`
	Kind         string        `json:"kind" msgpack:"kind"`
	Name         string        `json:"name" msgpack:"name"`
	PropertySets []PropertySet `json:"propertySets" msgpack:"propertySets"`
}

// ItemSnapshot is the persisted attribute set of one item.
type ItemSnapshot struct {
	ID            int              `json:"id" msgpack:"id"`
	Kind          string           `json:"kind" msgpack:"kind"`
	Name          string           `json:"name" msgpack:"name"`
	PropertySets  []PropertySet    `json:"propertySets" msgpack:"propertySets"`
	Selectable    bool             `json:"selectable" msgpack:"selectable"`
	AlwaysVisible bool             `json:"alwaysVisible" msgpack:"alwaysVisible"`
	Links         map[string][]int `json:"links,omitempty" msgpack:"links,omitempty"`
}
