package viewer

import (
	"github.com/ifc-viewer/backend/internal/scene"
)

// Project returns the renderer-facing scene of the viewer. The bounding
// sphere helper is included when ShowBoundingSphere is set.
func (v *Viewer) Project(opts scene.Options) scene.Scene {
	in := scene.Input{
		Frame:    v.Frames(),
		Model:    v.model,
		Mode:     v.mode,
		Selected: v.Selected(),
		Hovered:  v.Hovered(),
	}
	if c := v.camera; c != nil {
		in.Camera = scene.CameraOf(c.Position, c.Target, c.Up, c.FOV, c.Aspect, c.Near, c.Far)
	}
	if v.opts.ShowBoundingSphere && v.model != nil {
		sphere := v.sphere
		in.Sphere = &sphere
	}
	return scene.Project(in, opts)
}
