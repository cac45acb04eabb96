// Package scene projects a viewer's items and primitives into the group and
// mesh shape a renderer traverses every frame.
package scene

import (
	"encoding/json"
	"fmt"
	"io"

	"cogentcore.org/core/math32"
	"github.com/ifc-viewer/backend/internal/graph"
	"github.com/ifc-viewer/backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// Wire formats accepted by Encode.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Scene is the renderer-facing projection of one viewer.
type Scene struct {
	Frame          uint64          `json:"frame" msgpack:"frame"`
	ViewMode       models.ViewMode `json:"viewMode" msgpack:"viewMode"`
	Selected       int             `json:"selected,omitempty" msgpack:"selected,omitempty"`
	Hovered        int             `json:"hovered,omitempty" msgpack:"hovered,omitempty"`
	Translation    [3]float32      `json:"translation" msgpack:"translation"`
	Camera         *Camera         `json:"camera,omitempty" msgpack:"camera,omitempty"`
	BoundingSphere *Sphere         `json:"boundingSphere,omitempty" msgpack:"boundingSphere,omitempty"`
	Groups         []Group         `json:"groups" msgpack:"groups"`
	Materials      []Material      `json:"materials" msgpack:"materials"`
	Geometries     []Geometry      `json:"geometries,omitempty" msgpack:"geometries,omitempty"`
}

// Group is one item.
type Group struct {
	ID            int    `json:"id" msgpack:"id"`
	Kind          string `json:"kind" msgpack:"kind"`
	Name          string `json:"name,omitempty" msgpack:"name,omitempty"`
	Selectable    bool   `json:"selectable" msgpack:"selectable"`
	AlwaysVisible bool   `json:"alwaysVisible" msgpack:"alwaysVisible"`
	Meshes        []Mesh `json:"meshes" msgpack:"meshes"`
}

// Mesh is one primitive.
type Mesh struct {
	GeometryID  string    `json:"geometryId" msgpack:"geometryId"`
	MaterialID  string    `json:"materialId" msgpack:"materialId"`
	Visible     bool      `json:"visible" msgpack:"visible"`
	RenderOrder int       `json:"renderOrder" msgpack:"renderOrder"`
	Transform   []float32 `json:"transform,omitempty" msgpack:"transform,omitempty"`
}

// Material is a material referenced by at least one mesh.
type Material struct {
	ID          string     `json:"id" msgpack:"id"`
	Color       [3]float32 `json:"color" msgpack:"color"`
	Opacity     float32    `json:"opacity" msgpack:"opacity"`
	Transparent bool       `json:"transparent" msgpack:"transparent"`
	DepthTest   bool       `json:"depthTest" msgpack:"depthTest"`
	DepthWrite  bool       `json:"depthWrite" msgpack:"depthWrite"`
	Emissive    uint32     `json:"emissive" msgpack:"emissive"`
}

// Geometry is a vertex buffer referenced by at least one mesh.
type Geometry struct {
	ID        string    `json:"id" msgpack:"id"`
	Positions []float32 `json:"positions" msgpack:"positions"`
	Normals   []float32 `json:"normals" msgpack:"normals"`
	Indices   []uint32  `json:"indices" msgpack:"indices"`
}

// Camera is the renderer camera.
type Camera struct {
	Position [3]float32 `json:"position" msgpack:"position"`
	Target   [3]float32 `json:"target" msgpack:"target"`
	Up       [3]float32 `json:"up" msgpack:"up"`
	FOV      float32    `json:"fov" msgpack:"fov"`
	Aspect   float32    `json:"aspect" msgpack:"aspect"`
	Near     float32    `json:"near" msgpack:"near"`
	Far      float32    `json:"far" msgpack:"far"`
}

// Sphere is a bounding sphere helper.
type Sphere struct {
	Center [3]float32 `json:"center" msgpack:"center"`
	Radius float32    `json:"radius" msgpack:"radius"`
}

// Options control what a projection includes.
type Options struct {
	// Geometry includes vertex buffers; otherwise only ids are sent.
	Geometry bool
	// SkipHidden leaves out meshes that are not visible.
	SkipHidden bool
}

// Input is everything a projection reads.
type Input struct {
	// Frame is the number of render requests so far; clients redraw when
	// it changes.
	Frame    uint64
	Model    *graph.Model
	Mode     models.ViewMode
	Selected *models.Item
	Hovered  *models.Item
	Camera   *Camera
	// Sphere is set when the bounding-sphere helper should be drawn.
	Sphere *math32.Sphere
}

// Project builds the scene for in. Items keep model order; materials and
// geometries appear once, in first-reference order.
func Project(in Input, opts Options) Scene {
	s := Scene{
		Frame:     in.Frame,
		ViewMode:  in.Mode,
		Camera:    in.Camera,
		Groups:    []Group{},
		Materials: []Material{},
	}
	if in.Selected != nil {
		s.Selected = in.Selected.ID
	}
	if in.Hovered != nil {
		s.Hovered = in.Hovered.ID
	}
	if in.Sphere != nil {
		s.BoundingSphere = &Sphere{Center: vec(in.Sphere.Center), Radius: in.Sphere.Radius}
	}
	m := in.Model
	if m == nil {
		return s
	}
	s.Translation = vec(m.Translation())

	seenMat := make(map[string]struct{})
	seenGeom := make(map[string]struct{})
	for h, it := range m.Items() {
		g := Group{
			ID:            it.ID,
			Kind:          it.Kind,
			Name:          it.Name,
			Selectable:    it.Selectable,
			AlwaysVisible: it.AlwaysVisible,
			Meshes:        make([]Mesh, 0, len(it.Primitives)),
		}
		for _, p := range m.PrimitivesOf(models.ItemHandle(h)) {
			if opts.SkipHidden && !p.Visible {
				continue
			}
			mat := p.Material
			if mat == nil {
				continue
			}
			g.Meshes = append(g.Meshes, Mesh{
				GeometryID:  p.GeometryID,
				MaterialID:  mat.ID,
				Visible:     p.Visible,
				RenderOrder: p.RenderOrder,
				Transform:   p.Transform,
			})
			if _, ok := seenMat[mat.ID]; !ok {
				seenMat[mat.ID] = struct{}{}
				s.Materials = append(s.Materials, material(mat))
			}
			if !opts.Geometry {
				continue
			}
			if _, ok := seenGeom[p.GeometryID]; ok {
				continue
			}
			if geom, ok := m.Geometries.Get(p.GeometryID); ok {
				seenGeom[p.GeometryID] = struct{}{}
				s.Geometries = append(s.Geometries, Geometry{
					ID:        geom.ID,
					Positions: geom.Positions,
					Normals:   geom.Normals,
					Indices:   geom.Indices,
				})
			}
		}
		s.Groups = append(s.Groups, g)
	}
	return s
}

// Encode writes s in the given format.
func Encode(w io.Writer, s Scene, format string) error {
	switch format {
	case "", FormatJSON:
		return json.NewEncoder(w).Encode(s)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(s)
	default:
		return fmt.Errorf("unsupported scene format: %s", format)
	}
}

// ContentType returns the MIME type of format.
func ContentType(format string) string {
	if format == FormatMsgpack {
		return "application/msgpack"
	}
	return "application/json"
}

// CameraOf converts camera vectors into their wire form.
func CameraOf(position, target, up math32.Vector3, fov, aspect, near, far float32) *Camera {
	return &Camera{
		Position: vec(position),
		Target:   vec(target),
		Up:       vec(up),
		FOV:      fov,
		Aspect:   aspect,
		Near:     near,
		Far:      far,
	}
}

func material(m *models.Material) Material {
	return Material{
		ID:          m.ID,
		Color:       [3]float32{m.Color.R, m.Color.G, m.Color.B},
		Opacity:     m.Opacity,
		Transparent: m.Transparent,
		DepthTest:   m.DepthTest,
		DepthWrite:  m.DepthWrite,
		Emissive:    m.Emissive,
	}
}

func vec(v math32.Vector3) [3]float32 {
	return [3]float32{v.X, v.Y, v.Z}
}
