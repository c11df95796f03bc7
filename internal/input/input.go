package input

import (
	"math"

	"voxelmind.ai/internal/action"
)

type Key uint8

const (
	Forward Key = iota
	Back
	Left
	Right
	Jump
	Crouch
	Sprint
	Primary
	Secondary
	numKeys
)

var keyNames = [...]string{"forward", "back", "left", "right", "jump", "crouch", "sprint", "primary", "secondary"}

func (k Key) String() string {
	if k < numKeys {
		return keyNames[k]
	}
	return "unknown"
}

// Keys lists every key in declaration order.
func Keys() []Key {
	out := make([]Key, 0, numKeys)
	for k := Key(0); k < numKeys; k++ {
		out = append(out, k)
	}
	return out
}

// Sink is the host's key and camera surface.
type Sink interface {
	SetKey(k Key, down bool)
	TapKey(k Key)
	SetView(yaw, pitch float32)
	View() (yaw, pitch float32)
}

func WrapYaw(v float32) float32 {
	f := float32(math.Mod(float64(v), 360))
	if f >= 180 {
		f -= 360
	}
	if f < -180 {
		f += 360
	}
	return f
}

func ClampPitch(v float32) float32 {
	return max(-90, min(90, v))
}

// Applier translates movement, mouse and view directives into Sink calls and
// remembers which keys it is holding so they can all be released at once.
type Applier struct {
	sink Sink
	held [numKeys]bool
}

func NewApplier(s Sink) *Applier { return &Applier{sink: s} }

func (a *Applier) Sink() Sink { return a.sink }

func (a *Applier) Held(k Key) bool { return k < numKeys && a.held[k] }

func (a *Applier) AnyHeld() bool {
	for _, h := range a.held {
		if h {
			return true
		}
	}
	return false
}

func (a *Applier) ApplyMovement(m action.Movement) {
	a.hold(Forward, m.Forward)
	a.hold(Back, m.Back)
	a.hold(Left, m.Left)
	a.hold(Right, m.Right)
	if m.Jump {
		a.sink.TapKey(Jump)
	}
	a.hold(Crouch, m.Crouch)
	a.hold(Sprint, m.Sprint)
}

func (a *Applier) ApplyMouse(m action.Mouse) {
	a.press(Primary, m.Left)
	a.press(Secondary, m.Right)
}

// ApplyView sets absolute angles first, then adds deltas.
func (a *Applier) ApplyView(v action.View) {
	if v.IsZero() {
		return
	}
	yaw, pitch := a.sink.View()
	if v.YawAbs != nil {
		yaw = WrapYaw(*v.YawAbs)
	}
	if v.PitchAbs != nil {
		pitch = ClampPitch(*v.PitchAbs)
	}
	if v.YawDelta != nil {
		yaw = WrapYaw(yaw + *v.YawDelta)
	}
	if v.PitchDelta != nil {
		pitch = ClampPitch(pitch + *v.PitchDelta)
	}
	a.sink.SetView(yaw, pitch)
}

// ReleaseAll lifts every key, held by us or not.
func (a *Applier) ReleaseAll() {
	for k := Key(0); k < numKeys; k++ {
		a.sink.SetKey(k, false)
		a.held[k] = false
	}
}

func (a *Applier) hold(k Key, down bool) {
	a.sink.SetKey(k, down)
	a.held[k] = down
}

func (a *Applier) press(k Key, p action.PressKind) {
	switch p {
	case action.PressTap:
		a.sink.TapKey(k)
		a.held[k] = false
	case action.PressHold:
		a.sink.SetKey(k, true)
		a.held[k] = true
	case action.PressRelease:
		a.sink.SetKey(k, false)
		a.held[k] = false
	}
}
