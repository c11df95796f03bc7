package action

import "strings"

// PressKind describes the transition a button should make this tick.
type PressKind int

const (
	PressNone PressKind = iota
	PressTap
	PressHold
	PressRelease
)

func (k PressKind) String() string {
	switch k {
	case PressTap:
		return "TAP"
	case PressHold:
		return "HOLD"
	case PressRelease:
		return "RELEASE"
	default:
		return "NONE"
	}
}

// ParsePressKind is case-insensitive; anything unknown is PressNone.
func ParsePressKind(s string) PressKind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TAP":
		return PressTap
	case "HOLD":
		return PressHold
	case "RELEASE":
		return PressRelease
	default:
		return PressNone
	}
}

type Chat struct {
	Message *string
}

func (c Chat) Text() (string, bool) {
	if c.Message == nil {
		return "", false
	}
	return *c.Message, true
}

// Navigation is a relative block offset from the avatar's current cell.
// Each axis keeps its absent state so a decision survives a round trip.
type Navigation struct {
	DX *int
	DY *int
	DZ *int
}

func (n Navigation) HasRequest() bool {
	return n.DXOrZero() != 0 || n.DYOrZero() != 0 || n.DZOrZero() != 0
}

func (n Navigation) DXOrZero() int { return intOrZero(n.DX) }
func (n Navigation) DYOrZero() int { return intOrZero(n.DY) }
func (n Navigation) DZOrZero() int { return intOrZero(n.DZ) }

// View sets absolute angles first, then applies deltas.
type View struct {
	YawAbs     *float32
	PitchAbs   *float32
	YawDelta   *float32
	PitchDelta *float32
}

func (v View) IsZero() bool {
	return v.YawAbs == nil && v.PitchAbs == nil && v.YawDelta == nil && v.PitchDelta == nil
}

type Mouse struct {
	Left  PressKind
	Right PressKind
}

// Target is a preferred-exclusive union: entity selectors win over block
// selectors, and a full position wins over block id/tag.
type Target struct {
	X *int
	Y *int
	Z *int

	BlockID    *string
	BlockTag   *string
	EntityType *string
	EntityName *string
}

func (t Target) HasPos() bool    { return t.X != nil && t.Y != nil && t.Z != nil }
func (t Target) HasEntity() bool { return t.EntityType != nil || t.EntityName != nil }
func (t Target) HasBlock() bool  { return t.BlockID != nil || t.BlockTag != nil || t.HasPos() }

// Action is one decision round's intent. Target is nil when the decision did
// not mention a target; a non-nil empty Target clears the active lock.
type Action struct {
	Chat       Chat
	Navigation Navigation
	View       View
	Mouse      Mouse
	Target     *Target
}

func None() Action { return Action{} }

// Movement is the low-level control vector the navigator emits per tick.
type Movement struct {
	Forward bool
	Back    bool
	Left    bool
	Right   bool
	Jump    bool
	Crouch  bool
	Sprint  bool
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func Int(v int) *int             { return &v }
func Float(v float32) *float32   { return &v }
func String(v string) *string    { return &v }
func ChatText(msg string) Chat   { return Chat{Message: String(msg)} }
func Nav(dx, dy, dz int) Navigation {
	return Navigation{DX: Int(dx), DY: Int(dy), DZ: Int(dz)}
}
