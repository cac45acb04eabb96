package models

import "fmt"

// Color is a linear RGB color with components in [0,1].
type Color struct {
	R float32 `json:"r" msgpack:"r"`
	G float32 `json:"g" msgpack:"g"`
	B float32 `json:"b" msgpack:"b"`
}

// RGBA is a decoded fragment color; A is the source alpha.
type RGBA struct {
	R float32 `json:"r" msgpack:"r"`
	G float32 `json:"g" msgpack:"g"`
	B float32 `json:"b" msgpack:"b"`
	A float32 `json:"a" msgpack:"a"`
}

// MaterialID returns the cache key of the base material for this color.
func (c RGBA) MaterialID() string {
	return fmt.Sprintf("%g-%g-%g-%g", c.R, c.G, c.B, c.A)
}

// Opaque reports whether the color has full alpha.
func (c RGBA) Opaque() bool {
	return c.A == 1
}

// Material is a shared surface description referenced by id from primitives.
type Material struct {
	ID          string  `json:"id"`
	Color       Color   `json:"color"`
	Opacity     float32 `json:"opacity"`
	Transparent bool    `json:"transparent"`
	DepthTest   bool    `json:"depthTest"`
	DepthWrite  bool    `json:"depthWrite"`
	Emissive    uint32  `json:"emissive"`

	Disposed bool `json:"-"`
}

// NewMaterial builds the base material for a decoded fragment color.
// Translucent colors are rendered at half opacity without depth writes.
func NewMaterial(c RGBA) *Material {
	m := &Material{
		ID:         c.MaterialID(),
		Color:      Color{R: c.R, G: c.G, B: c.B},
		Opacity:    1,
		DepthTest:  true,
		DepthWrite: true,
	}
	if !c.Opaque() {
		m.Opacity = 0.5
		m.Transparent = true
		m.DepthWrite = false
	}
	return m
}

// Clone returns a detached copy with the given id.
func (m *Material) Clone(id string) *Material {
	c := *m
	c.ID = id
	c.Disposed = false
	return &c
}

// Dispose marks the material as released. Safe to call more than once.
func (m *Material) Dispose() {
	if m == nil {
		return
	}
	m.Disposed = true
}
