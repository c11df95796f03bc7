package nav

import (
	"reflect"
	"testing"

	"voxelmind.ai/internal/action"
	"voxelmind.ai/internal/voxel"
)

func newTestGrid() *voxel.Grid { return voxel.NewGrid(nil, -4, 32) }

func stone(g *voxel.Grid) uint16 { return g.Palette.MustLookup("stone") }

// stepCorridor is a one-wide corridor along +X whose floor rises by one at x=5.
func stepCorridor() *voxel.Grid {
	g := newTestGrid()
	g.Fill(voxel.Pos{X: 0, Y: 0, Z: 0}, voxel.Pos{X: 10, Y: 0, Z: 0}, stone(g))
	g.Fill(voxel.Pos{X: 5, Y: 1, Z: 0}, voxel.Pos{X: 10, Y: 1, Z: 0}, stone(g))
	return g
}

func countKind(p Plan, k StepKind) int {
	n := 0
	for _, node := range p {
		if node.Kind == k {
			n++
		}
	}
	return n
}

func TestPlan_CorridorWithOneStep(t *testing.T) {
	g := stepCorridor()
	p := NewPlanner(g, DefaultLimits())

	plan := p.Plan(voxel.Pos{X: 0, Y: 1, Z: 0}, voxel.Pos{X: 10, Y: 2, Z: 0})
	if len(plan) != 10 {
		t.Fatalf("expected 10 nodes, got %d: %+v", len(plan), plan)
	}
	if got := countKind(plan, StepUp); got != 1 {
		t.Fatalf("expected exactly one StepUp, got %d", got)
	}
	if plan[4].Kind != StepUp || plan[4].Pos != (voxel.Pos{X: 5, Y: 2, Z: 0}) {
		t.Fatalf("expected StepUp onto (5,2,0), got %+v", plan[4])
	}
	last := plan[len(plan)-1]
	if last.Pos != (voxel.Pos{X: 10, Y: 2, Z: 0}) {
		t.Fatalf("plan does not end at goal: %+v", last)
	}
	if last.Cost < 10.29 || last.Cost > 10.31 {
		t.Fatalf("cumulative cost: got %v want 10.3", last.Cost)
	}
}

func TestPlan_StepUpNeedsHeadroom(t *testing.T) {
	g := stepCorridor()
	// Ceiling right above the avatar's head before the step.
	g.Set(voxel.Pos{X: 4, Y: 3, Z: 0}, stone(g))
	p := NewPlanner(g, DefaultLimits())
	if plan := p.Plan(voxel.Pos{X: 0, Y: 1, Z: 0}, voxel.Pos{X: 10, Y: 2, Z: 0}); len(plan) != 0 {
		t.Fatalf("expected no plan without headroom, got %+v", plan)
	}
}

func TestPlan_Deterministic(t *testing.T) {
	g := newTestGrid()
	g.Fill(voxel.Pos{X: -8, Y: 0, Z: -8}, voxel.Pos{X: 8, Y: 0, Z: 8}, stone(g))
	g.Fill(voxel.Pos{X: 0, Y: 1, Z: -3}, voxel.Pos{X: 0, Y: 2, Z: 3}, stone(g))
	p := NewPlanner(g, DefaultLimits())

	start, goal := voxel.Pos{X: -5, Y: 1, Z: -5}, voxel.Pos{X: 6, Y: 1, Z: 4}
	first := p.Plan(start, goal)
	if len(first) == 0 {
		t.Fatalf("expected a plan")
	}
	for i := 0; i < 5; i++ {
		if again := p.Plan(start, goal); !reflect.DeepEqual(first, again) {
			t.Fatalf("plan %d differs:\n%+v\n%+v", i, first, again)
		}
	}
}

func TestPlan_JumpGapLandsOnWalkable(t *testing.T) {
	g := newTestGrid()
	g.Fill(voxel.Pos{X: 0, Y: 0, Z: 0}, voxel.Pos{X: 2, Y: 0, Z: 0}, stone(g))
	g.Fill(voxel.Pos{X: 4, Y: 0, Z: 0}, voxel.Pos{X: 6, Y: 0, Z: 0}, stone(g))
	p := NewPlanner(g, DefaultLimits())

	plan := p.Plan(voxel.Pos{X: 0, Y: 1, Z: 0}, voxel.Pos{X: 6, Y: 1, Z: 0})
	if countKind(plan, JumpGap) != 1 {
		t.Fatalf("expected one JumpGap, got %+v", plan)
	}
	for _, n := range plan {
		if n.Kind == JumpGap && !voxel.Walkable(g, n.Pos) {
			t.Fatalf("JumpGap lands on non-walkable %+v", n.Pos)
		}
	}
}

func TestPlan_NoJumpOnFlatGround(t *testing.T) {
	g := newTestGrid()
	g.Fill(voxel.Pos{X: 0, Y: 0, Z: 0}, voxel.Pos{X: 8, Y: 0, Z: 0}, stone(g))
	p := NewPlanner(g, DefaultLimits())
	plan := p.Plan(voxel.Pos{X: 0, Y: 1, Z: 0}, voxel.Pos{X: 8, Y: 1, Z: 0})
	if len(plan) != 8 || countKind(plan, StepWalk) != 8 {
		t.Fatalf("expected 8 walk steps, got %+v", plan)
	}
}

func TestPlan_SwimsAcrossPool(t *testing.T) {
	g := newTestGrid()
	g.Fill(voxel.Pos{X: 0, Y: 0, Z: 0}, voxel.Pos{X: 6, Y: 0, Z: 0}, stone(g))
	g.Fill(voxel.Pos{X: 2, Y: 1, Z: 0}, voxel.Pos{X: 4, Y: 1, Z: 0}, g.Palette.MustLookup("water"))
	p := NewPlanner(g, DefaultLimits())

	plan := p.Plan(voxel.Pos{X: 0, Y: 1, Z: 0}, voxel.Pos{X: 6, Y: 1, Z: 0})
	want := []struct {
		x    int
		mode Mode
		kind StepKind
	}{
		{1, Walk, StepWalk},
		{2, Swim, StepSwim},
		{3, Swim, StepSwim},
		{4, Swim, StepSwim},
		{5, Walk, StepWalk},
		{6, Walk, StepWalk},
	}
	if len(plan) != len(want) {
		t.Fatalf("expected %d nodes, got %+v", len(want), plan)
	}
	for i, w := range want {
		n := plan[i]
		if n.Pos.X != w.x || n.Mode != w.mode || n.Kind != w.kind {
			t.Fatalf("node %d: got %+v want x=%d %v %v", i, n, w.x, w.mode, w.kind)
		}
	}
}

func TestPlan_StartInWaterUsesSwimLayer(t *testing.T) {
	g := newTestGrid()
	g.Fill(voxel.Pos{X: -2, Y: 0, Z: -2}, voxel.Pos{X: 2, Y: 0, Z: 2}, stone(g))
	g.Fill(voxel.Pos{X: 0, Y: 1, Z: 0}, voxel.Pos{X: 0, Y: 3, Z: 0}, g.Palette.MustLookup("water"))
	p := NewPlanner(g, DefaultLimits())

	plan := p.Plan(voxel.Pos{X: 0, Y: 1, Z: 0}, voxel.Pos{X: 0, Y: 3, Z: 0})
	if len(plan) != 2 || plan[0].Kind != SwimAscend || plan[1].Kind != SwimAscend {
		t.Fatalf("expected two ascents, got %+v", plan)
	}
}

func TestPlan_EmptyCases(t *testing.T) {
	g := stepCorridor()
	start := voxel.Pos{X: 0, Y: 1, Z: 0}

	if plan := NewPlanner(g, DefaultLimits()).Plan(start, start); plan != nil {
		t.Fatalf("start==goal should be empty, got %+v", plan)
	}
	if plan := NewPlanner(g, DefaultLimits()).Plan(start, voxel.Pos{X: 0, Y: 1, Z: 9}); plan != nil {
		t.Fatalf("unreachable goal should be empty, got %+v", plan)
	}
	capped := NewPlanner(g, Limits{MaxNodes: 3})
	if plan := capped.Plan(start, voxel.Pos{X: 10, Y: 2, Z: 0}); plan != nil {
		t.Fatalf("node cap should yield empty plan, got %+v", plan)
	}
}

func TestNavigator_FollowsPlan(t *testing.T) {
	g := stepCorridor()
	n := NewNavigator(NewPlanner(g, DefaultLimits()))

	if n.Start(voxel.Pos{X: 0, Y: 1, Z: 0}, 0, 0, 0) {
		t.Fatalf("zero offset should not start")
	}
	if !n.Start(voxel.Pos{X: 0, Y: 1, Z: 0}, 10, 1, 0) {
		t.Fatalf("expected plan")
	}
	if n.State() != Executing || n.Remaining() != 10 {
		t.Fatalf("state=%v remaining=%d", n.State(), n.Remaining())
	}

	step, ok := n.ProduceStep(voxel.Vec3{X: 0.5, Y: 1, Z: 0.5})
	if !ok || !step.Movement.Forward || step.Movement.Jump {
		t.Fatalf("first step: %+v ok=%v", step, ok)
	}
	if step.Yaw != -90 {
		t.Fatalf("yaw toward +X: got %v", step.Yaw)
	}

	// Stand on each flat node in turn; the cursor advances one node per call.
	for x := 1; x <= 4; x++ {
		step, ok = n.ProduceStep(voxel.Vec3{X: float64(x) + 0.5, Y: 1, Z: 0.5})
		if !ok {
			t.Fatalf("plan ended early at x=%d", x)
		}
	}
	if step.Node.Kind != StepUp || !step.Movement.Jump {
		t.Fatalf("expected jump pulse entering step-up, got %+v", step)
	}
	at := voxel.Vec3{X: 4.5, Y: 1, Z: 0.5}
	for i := 2; i <= 6; i++ {
		step, _ = n.ProduceStep(at)
		if step.Movement.Jump {
			t.Fatalf("jump retriggered on call %d", i)
		}
	}
	if step, _ = n.ProduceStep(at); !step.Movement.Jump {
		t.Fatalf("expected jump after countdown")
	}

	for x := 5; x <= 10; x++ {
		step, ok = n.ProduceStep(voxel.Vec3{X: float64(x) + 0.5, Y: 2, Z: 0.5})
	}
	if ok || n.Active() || n.State() != Idle {
		t.Fatalf("expected plan finished: ok=%v active=%v state=%v", ok, n.Active(), n.State())
	}
}

func TestNavigator_CancelAndStepDown(t *testing.T) {
	g := stepCorridor()
	n := NewNavigator(NewPlanner(g, DefaultLimits()))
	if !n.Start(voxel.Pos{X: 6, Y: 2, Z: 0}, -2, -1, 0) {
		t.Fatalf("expected plan")
	}
	step, ok := n.ProduceStep(voxel.Vec3{X: 6.5, Y: 2, Z: 0.5})
	if !ok || step.Node.Kind != StepWalk {
		t.Fatalf("first node: %+v", step)
	}
	step, ok = n.ProduceStep(voxel.Vec3{X: 5.5, Y: 2, Z: 0.5})
	if !ok || step.Node.Kind != StepDown || !step.Movement.Crouch {
		t.Fatalf("expected crouch on step-down, got %+v", step)
	}
	n.Cancel()
	if n.Active() || n.Remaining() != 0 {
		t.Fatalf("cancel should drop the plan")
	}
	if _, ok := n.ProduceStep(voxel.Vec3{X: 5.5, Y: 2, Z: 0.5}); ok {
		t.Fatalf("no step after cancel")
	}
}

func TestNavigator_SwimSteps(t *testing.T) {
	g := newTestGrid()
	g.Fill(voxel.Pos{X: -2, Y: 0, Z: -2}, voxel.Pos{X: 2, Y: 0, Z: 2}, stone(g))
	g.Fill(voxel.Pos{X: 0, Y: 1, Z: 0}, voxel.Pos{X: 0, Y: 3, Z: 0}, g.Palette.MustLookup("water"))
	n := NewNavigator(NewPlanner(g, DefaultLimits()))

	if !n.Start(voxel.Pos{X: 0, Y: 1, Z: 0}, 0, 2, 0) {
		t.Fatalf("expected ascent plan")
	}
	step, ok := n.ProduceStep(voxel.Vec3{X: 0.5, Y: 1, Z: 0.5})
	if !ok || step.Node.Kind != SwimAscend || !step.Movement.Jump || step.Movement.Crouch {
		t.Fatalf("ascent should jump: %+v ok=%v", step, ok)
	}

	if !n.Start(voxel.Pos{X: 0, Y: 3, Z: 0}, 0, -2, 0) {
		t.Fatalf("expected descent plan")
	}
	step, ok = n.ProduceStep(voxel.Vec3{X: 0.5, Y: 3, Z: 0.5})
	if !ok || step.Node.Kind != SwimDescend || !step.Movement.Crouch || step.Movement.Jump {
		t.Fatalf("descent should crouch: %+v ok=%v", step, ok)
	}

	pool := newTestGrid()
	pool.Fill(voxel.Pos{X: 0, Y: 0, Z: 0}, voxel.Pos{X: 6, Y: 0, Z: 0}, stone(pool))
	pool.Fill(voxel.Pos{X: 2, Y: 1, Z: 0}, voxel.Pos{X: 4, Y: 1, Z: 0}, pool.Palette.MustLookup("water"))
	n = NewNavigator(NewPlanner(pool, DefaultLimits()))
	if !n.Start(voxel.Pos{X: 1, Y: 1, Z: 0}, 2, 0, 0) {
		t.Fatalf("expected swim plan")
	}
	step, ok = n.ProduceStep(voxel.Vec3{X: 1.5, Y: 1, Z: 0.5})
	want := Step{Yaw: -90, Node: step.Node, Movement: action.Movement{Forward: true}}
	if !ok || step.Node.Kind != StepSwim || step != want {
		t.Fatalf("level swim is forward only: %+v ok=%v", step, ok)
	}
}
