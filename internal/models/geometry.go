package models

import "strconv"

// Geometry is a triangulated vertex buffer shared between primitives.
// Positions and Normals hold three floats per vertex.
type Geometry struct {
	ID        string    `json:"id" msgpack:"id"`
	Positions []float32 `json:"positions" msgpack:"positions"`
	Normals   []float32 `json:"normals" msgpack:"normals"`
	Indices   []uint32  `json:"indices" msgpack:"indices"`

	Disposed bool `json:"-" msgpack:"-"`
}

// GeometryKey returns the cache key for a decoded geometry.
// Opaque and translucent placements of one geometry are kept apart.
func GeometryKey(geometryID int, opaque bool) string {
	suffix := "T"
	if opaque {
		suffix = "O"
	}
	return strconv.Itoa(geometryID) + suffix
}

// VertexCount returns the number of vertices in the buffer.
func (g *Geometry) VertexCount() int {
	return len(g.Positions) / 3
}

// TriangleCount returns the number of indexed triangles.
func (g *Geometry) TriangleCount() int {
	return len(g.Indices) / 3
}

// Dispose releases the vertex buffers. Safe to call more than once.
func (g *Geometry) Dispose() {
	if g == nil || g.Disposed {
		return
	}
	g.Positions = nil
	g.Normals = nil
	g.Indices = nil
	g.Disposed = true
}
