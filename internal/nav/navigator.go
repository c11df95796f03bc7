package nav

import (
	"math"

	"voxelmind.ai/internal/action"
	"voxelmind.ai/internal/voxel"
)

type State uint8

const (
	Idle State = iota
	Planning
	Executing
)

func (s State) String() string {
	switch s {
	case Planning:
		return "planning"
	case Executing:
		return "executing"
	default:
		return "idle"
	}
}

const (
	reachRadius   = 0.35
	reachMaxDY    = 1.1
	jumpCountdown = 5
)

// Step is what the avatar should do this tick to follow the plan.
type Step struct {
	Movement action.Movement
	Yaw      float32
	Node     Node
}

// Navigator owns one plan and a cursor into it. It is driven from the tick
// goroutine only.
type Navigator struct {
	planner *Planner

	state    State
	plan     Plan
	cursor   int
	jumpWait int
}

func NewNavigator(p *Planner) *Navigator {
	return &Navigator{planner: p}
}

// SetPlanner swaps the planner for the next Start; the current plan is kept.
func (n *Navigator) SetPlanner(p *Planner) { n.planner = p }

func (n *Navigator) State() State { return n.state }

func (n *Navigator) Active() bool { return n.plan != nil && n.cursor < len(n.plan) }

func (n *Navigator) Cancel() {
	n.plan = nil
	n.cursor = 0
	n.jumpWait = 0
	n.state = Idle
}

// Remaining counts nodes not yet reached.
func (n *Navigator) Remaining() int {
	if !n.Active() {
		return 0
	}
	return len(n.plan) - n.cursor
}

// Plan returns the unreached part of the current plan.
func (n *Navigator) Plan() Plan {
	if !n.Active() {
		return nil
	}
	return append(Plan(nil), n.plan[n.cursor:]...)
}

// Start replaces any current plan with one toward origin+(dx,dy,dz).
// A zero offset only cancels. It reports whether a non-empty plan was found.
func (n *Navigator) Start(origin voxel.Pos, dx, dy, dz int) bool {
	n.Cancel()
	if dx == 0 && dy == 0 && dz == 0 || n.planner == nil {
		return false
	}
	n.state = Planning
	plan := n.planner.Plan(origin, origin.Offset(dx, dy, dz))
	if len(plan) == 0 {
		n.state = Idle
		return false
	}
	n.plan = plan
	n.state = Executing
	return true
}

// ProduceStep advances past reached nodes and returns the directive for the
// current one. ok is false once the plan is done or absent.
func (n *Navigator) ProduceStep(pos voxel.Vec3) (Step, bool) {
	if !n.Active() {
		if n.state != Idle {
			n.Cancel()
		}
		return Step{}, false
	}
	cur := n.plan[n.cursor]
	if reached(pos, cur.Pos) {
		n.cursor++
		n.jumpWait = 0
		if n.cursor >= len(n.plan) {
			n.Cancel()
			return Step{}, false
		}
		cur = n.plan[n.cursor]
	}

	c := cur.Pos.Center()
	dx, dz := c.X-pos.X, c.Z-pos.Z
	step := Step{
		Yaw:      float32(math.Atan2(-dx, dz) * 180 / math.Pi),
		Node:     cur,
		Movement: action.Movement{Forward: true},
	}
	switch cur.Kind {
	case StepUp, JumpGap:
		if n.jumpWait == 0 {
			step.Movement.Jump = true
			n.jumpWait = jumpCountdown
		} else {
			n.jumpWait--
		}
	case StepDown, SwimDescend:
		step.Movement.Crouch = true
	case SwimAscend:
		step.Movement.Jump = true
	}
	return step, true
}

func reached(pos voxel.Vec3, cell voxel.Pos) bool {
	c := cell.Center()
	dx, dz := c.X-pos.X, c.Z-pos.Z
	dy := float64(cell.Y) - math.Floor(pos.Y)
	return dx*dx+dz*dz < reachRadius*reachRadius && math.Abs(dy) <= reachMaxDY
}
