package viewer

import (
	"cogentcore.org/core/math32"
)

// Camera fitting parameters.
const (
	FitMargin      float32 = 1.1
	FitMinDistance float32 = 1
)

// Camera is a perspective camera looking at Target.
type Camera struct {
	Position math32.Vector3 `json:"position"`
	Target   math32.Vector3 `json:"target"`
	Up       math32.Vector3 `json:"up"`
	FOV      float32        `json:"fov"` // vertical, degrees
	Aspect   float32        `json:"aspect"`
	Near     float32        `json:"near"`
	Far      float32        `json:"far"`
}

// DefaultCamera returns the initial camera of a new viewer.
func DefaultCamera() Camera {
	return Camera{
		Position: math32.Vec3(10, 20, 20),
		Up:       math32.Vec3(0, 1, 0),
		FOV:      45,
		Aspect:   1,
		Near:     0.1,
		Far:      5000,
	}
}

func (c Camera) valid() bool {
	return c.FOV > 0 && c.FOV < 180 && c.Aspect > 0
}

// Direction returns the unit vector from Position towards Target.
func (c Camera) Direction() math32.Vector3 {
	d := c.Target.Sub(c.Position)
	if d.Length() == 0 {
		return math32.Vec3(0, 0, -1)
	}
	return d.Normal()
}

// effectiveFOV returns the narrower of the vertical and horizontal field of
// view, in radians.
func (c Camera) effectiveFOV() float32 {
	v := math32.DegToRad(c.FOV)
	if c.Aspect > 1 {
		return v
	}
	return 2 * math32.Atan(math32.Tan(v/2)*c.Aspect)
}

// FitDistance returns the distance at which a sphere of the given radius
// fills the narrower field of view, with the fit margin applied.
func (c Camera) FitDistance(radius float32) float32 {
	d := radius / math32.Sin(c.effectiveFOV()/2)
	return math32.Max(d, FitMinDistance) * FitMargin
}

// Fit moves the camera along its current view direction so that sphere is
// framed, and targets the sphere centre.
func (c *Camera) Fit(sphere math32.Sphere) {
	c.MoveTo(sphere.Center, c.FitDistance(sphere.Radius))
}

// MoveTo places the camera distance away from dest along the direction from
// the camera to dest, and targets dest.
func (c *Camera) MoveTo(dest math32.Vector3, distance float32) {
	dir := dest.Sub(c.Position)
	if dir.Length() == 0 {
		dir = c.Direction()
	}
	c.Position = dest.Add(dir.Normal().MulScalar(-distance))
	c.Target = dest
}

// Ray returns the world-space ray through the pointer at (x, y) on a
// surface of the given size.
func (c Camera) Ray(x, y float32, s Surface) math32.Ray {
	nx := x/s.Width*2 - 1
	ny := -(y/s.Height)*2 + 1

	forward := c.Direction()
	up := c.Up
	if up.Length() == 0 {
		up = math32.Vec3(0, 1, 0)
	}
	right := forward.Cross(up)
	if right.Length() == 0 {
		right = math32.Vec3(1, 0, 0)
	}
	right = right.Normal()
	trueUp := right.Cross(forward).Normal()

	tanHalf := math32.Tan(math32.DegToRad(c.FOV) / 2)
	dir := forward.
		Add(right.MulScalar(nx * tanHalf * c.Aspect)).
		Add(trueUp.MulScalar(ny * tanHalf))
	return math32.Ray{Origin: c.Position, Dir: dir.Normal()}
}

// CameraCommand names an operation broadcast to camera observers.
type CameraCommand string

const (
	CommandLookAt        CameraCommand = "lookAt"
	CommandMoveAt        CameraCommand = "moveAt"
	CommandSetFullscreen CameraCommand = "setFullscreen"
	CommandResetView     CameraCommand = "resetView"
	CommandFit           CameraCommand = "fit"
)

// CameraEvent is delivered to observers after a camera command ran.
type CameraEvent struct {
	Command    CameraCommand `json:"command"`
	Camera     Camera        `json:"camera"`
	Fullscreen bool          `json:"fullscreen"`
}

// CameraController is the camera surface hosts hold a reference to.
type CameraController interface {
	LookAt(expressID int) error
	MoveAt(expressID int) error
	SetFullscreen(on bool)
	ResetView() error
	Subscribe(fn func(CameraEvent)) (unsubscribe func())
}

var _ CameraController = (*Viewer)(nil)

// LookAt retargets the camera on the bounding sphere of the given item, or
// on the current selection sphere when expressID is zero. The camera
// position is kept.
func (v *Viewer) LookAt(expressID int) error {
	if err := v.requireCamera(); err != nil {
		return err
	}
	sphere, err := v.commandSphere(expressID)
	if err != nil {
		return err
	}
	v.camera.Target = sphere.Center
	v.broadcast(CommandLookAt)
	v.requestFrame()
	return nil
}

// MoveAt fits the camera to the bounding sphere of the given item, or to the
// current selection sphere when expressID is zero.
func (v *Viewer) MoveAt(expressID int) error {
	if err := v.requireCamera(); err != nil {
		return err
	}
	sphere, err := v.commandSphere(expressID)
	if err != nil {
		return err
	}
	v.camera.Fit(sphere)
	v.broadcast(CommandMoveAt)
	v.requestFrame()
	return nil
}

// SetFullscreen records the fullscreen flag and notifies observers.
func (v *Viewer) SetFullscreen(on bool) {
	v.fullscreen = on
	v.broadcast(CommandSetFullscreen)
}

// Fullscreen reports the last fullscreen flag.
func (v *Viewer) Fullscreen() bool {
	return v.fullscreen
}

// ResetView restores the initial camera and fits the whole model.
func (v *Viewer) ResetView() error {
	if err := v.requireCamera(); err != nil {
		return err
	}
	*v.camera = v.initialCamera
	if v.model != nil {
		v.camera.Fit(v.model.BoundingSphere())
	}
	v.broadcast(CommandResetView)
	v.requestFrame()
	return nil
}

// Subscribe registers fn for camera events. The returned function removes it.
func (v *Viewer) Subscribe(fn func(CameraEvent)) func() {
	id := v.nextObserver
	v.nextObserver++
	v.observers[id] = fn
	return func() {
		delete(v.observers, id)
	}
}

func (v *Viewer) commandSphere(expressID int) (math32.Sphere, error) {
	if expressID == 0 {
		return v.sphere, nil
	}
	if v.model == nil {
		return math32.Sphere{}, ErrModelNotLoaded
	}
	h, ok := v.model.Lookup(expressID)
	if !ok {
		return math32.Sphere{}, ErrItemNotFound
	}
	return v.model.BoundingSphere(h), nil
}

func (v *Viewer) broadcast(cmd CameraCommand) {
	if len(v.observers) == 0 {
		return
	}
	ev := CameraEvent{Command: cmd, Fullscreen: v.fullscreen}
	if v.camera != nil {
		ev.Camera = *v.camera
	}
	for _, id := range sortedObserverIDs(v.observers) {
		v.observers[id](ev)
	}
}
