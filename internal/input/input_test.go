package input

import (
	"testing"

	"voxelmind.ai/internal/action"
)

func TestWrapYawAndClampPitch(t *testing.T) {
	yaws := []struct{ in, want float32 }{
		{0, 0},
		{179, 179},
		{180, -180},
		{270, -90},
		{-190, 170},
		{725, 5},
	}
	for _, tc := range yaws {
		if got := WrapYaw(tc.in); got != tc.want {
			t.Fatalf("WrapYaw(%v)=%v want %v", tc.in, got, tc.want)
		}
	}
	if ClampPitch(120) != 90 || ClampPitch(-91) != -90 || ClampPitch(12.5) != 12.5 {
		t.Fatalf("ClampPitch out of range")
	}
}

func TestApplier_Movement(t *testing.T) {
	rec := &Recorder{}
	a := NewApplier(rec)

	a.ApplyMovement(action.Movement{Forward: true, Jump: true, Crouch: true})
	if !rec.Down(Forward) || !rec.Down(Crouch) || rec.Down(Jump) {
		t.Fatalf("unexpected key state")
	}
	if rec.Taps(Jump) != 1 {
		t.Fatalf("jump should be a tap, got %d", rec.Taps(Jump))
	}
	if !a.Held(Forward) || a.Held(Jump) {
		t.Fatalf("held bookkeeping wrong")
	}

	a.ApplyMovement(action.Movement{})
	if a.AnyHeld() || rec.AnyDown() {
		t.Fatalf("empty movement should release movement keys")
	}
}

func TestApplier_Mouse(t *testing.T) {
	rec := &Recorder{}
	a := NewApplier(rec)

	a.ApplyMouse(action.Mouse{Left: action.PressHold, Right: action.PressTap})
	if !rec.Down(Primary) || !a.Held(Primary) {
		t.Fatalf("primary should be held")
	}
	if rec.Taps(Secondary) != 1 || a.Held(Secondary) {
		t.Fatalf("secondary should be tapped, not held")
	}

	a.ApplyMouse(action.Mouse{})
	if !rec.Down(Primary) {
		t.Fatalf("PressNone must not touch the key")
	}

	a.ApplyMouse(action.Mouse{Left: action.PressRelease})
	if rec.Down(Primary) || a.Held(Primary) {
		t.Fatalf("primary should be released")
	}
}

func TestApplier_ViewAbsoluteThenDelta(t *testing.T) {
	rec := &Recorder{}
	rec.SetView(10, 10)
	a := NewApplier(rec)

	a.ApplyView(action.View{YawAbs: action.Float(170), YawDelta: action.Float(20), PitchDelta: action.Float(100)})
	yaw, pitch := rec.View()
	if yaw != -170 || pitch != 90 {
		t.Fatalf("view: got %v/%v want -170/90", yaw, pitch)
	}

	a.ApplyView(action.View{PitchAbs: action.Float(-30)})
	yaw, pitch = rec.View()
	if yaw != -170 || pitch != -30 {
		t.Fatalf("view: got %v/%v want -170/-30", yaw, pitch)
	}
}

func TestApplier_ReleaseAll(t *testing.T) {
	rec := &Recorder{}
	a := NewApplier(rec)
	a.ApplyMovement(action.Movement{Forward: true, Sprint: true, Left: true})
	a.ApplyMouse(action.Mouse{Left: action.PressHold, Right: action.PressHold})

	a.ReleaseAll()
	for _, k := range Keys() {
		if rec.Down(k) || a.Held(k) {
			t.Fatalf("%v still down after ReleaseAll", k)
		}
	}
}
