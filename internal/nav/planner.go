package nav

import (
	"container/heap"
	"math"

	"voxelmind.ai/internal/voxel"
)

// Mode is the graph layer a node lives on.
type Mode uint8

const (
	Walk Mode = iota
	Swim
)

func (m Mode) String() string {
	if m == Swim {
		return "swim"
	}
	return "walk"
}

type StepKind uint8

const (
	StepWalk StepKind = iota
	StepUp
	StepDown
	JumpGap
	StepSwim
	SwimAscend
	SwimDescend
)

var stepKindNames = [...]string{"walk", "step_up", "step_down", "jump_gap", "swim", "swim_ascend", "swim_descend"}

func (k StepKind) String() string {
	if int(k) < len(stepKindNames) {
		return stepKindNames[k]
	}
	return "unknown"
}

// Step costs.
const (
	costWalk      = 1.0
	costStepDown  = 1.05
	costStepUp    = 1.3
	costSwim      = 1.4
	costExitWater = 1.6
	costJumpGap   = 1.8
)

// Node is one plan step: the cell to reach, the layer it is on, how it is
// entered and the cumulative cost from the start.
type Node struct {
	Pos  voxel.Pos
	Mode Mode
	Kind StepKind
	Cost float64
}

// Plan excludes the start cell. Empty means no move.
type Plan []Node

type Limits struct {
	HorizontalPad int
	VerticalPad   int
	MaxNodes      int
}

func DefaultLimits() Limits {
	return Limits{HorizontalPad: 64, VerticalPad: 8, MaxNodes: 15000}
}

func (l Limits) normalized() Limits {
	d := DefaultLimits()
	if l.HorizontalPad <= 0 {
		l.HorizontalPad = d.HorizontalPad
	}
	if l.VerticalPad <= 0 {
		l.VerticalPad = d.VerticalPad
	}
	if l.MaxNodes <= 0 {
		l.MaxNodes = d.MaxNodes
	}
	return l
}

type Planner struct {
	World  voxel.World
	Limits Limits
}

func NewPlanner(w voxel.World, lim Limits) *Planner {
	return &Planner{World: w, Limits: lim.normalized()}
}

// nodeKey identifies a vertex of the layered graph: the walk layer and the
// swim layer share coordinates but not vertices.
type nodeKey struct {
	pos  voxel.Pos
	mode Mode
}

type bounds struct {
	min, max voxel.Pos
}

func (b bounds) contains(p voxel.Pos) bool {
	return p.X >= b.min.X && p.X <= b.max.X &&
		p.Y >= b.min.Y && p.Y <= b.max.Y &&
		p.Z >= b.min.Z && p.Z <= b.max.Z
}

type searchNode struct {
	key    nodeKey
	kind   StepKind
	g      float64
	f      float64
	seq    uint64
	index  int
	parent *searchNode
}

type openSet []*searchNode

func (pq openSet) Len() int { return len(pq) }

func (pq openSet) Less(i, j int) bool {
	if pq[i].f != pq[j].f {
		return pq[i].f < pq[j].f
	}
	return pq[i].seq < pq[j].seq
}

func (pq openSet) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *openSet) Push(x any) {
	n := len(*pq)
	item := x.(*searchNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *openSet) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

func heuristic(a, b voxel.Pos) float64 {
	dx := math.Abs(float64(a.X - b.X))
	dy := math.Abs(float64(a.Y - b.Y))
	dz := math.Abs(float64(a.Z - b.Z))
	return dx + dz + 1.2*dy
}

// edge is a candidate successor produced by a layer.
type edge struct {
	to   nodeKey
	kind StepKind
	cost float64
}

// Fixed neighbor order keeps plans deterministic.
var cardinal = [...]voxel.Pos{{X: 1}, {X: -1}, {Z: 1}, {Z: -1}}

var swimDirs = [...]voxel.Pos{{X: 1}, {X: -1}, {Z: 1}, {Z: -1}, {Y: 1}, {Y: -1}}

// Plan searches from start to goal. It returns nil when start equals goal,
// when the goal is unreachable inside the padded box, or when the node cap is
// hit first.
func (p *Planner) Plan(start, goal voxel.Pos) Plan {
	if start == goal || p.World == nil {
		return nil
	}
	lim := p.Limits.normalized()
	box := bounds{
		min: voxel.Pos{
			X: min(start.X, goal.X) - lim.HorizontalPad,
			Y: min(start.Y, goal.Y) - lim.VerticalPad,
			Z: min(start.Z, goal.Z) - lim.HorizontalPad,
		},
		max: voxel.Pos{
			X: max(start.X, goal.X) + lim.HorizontalPad,
			Y: max(start.Y, goal.Y) + lim.VerticalPad,
			Z: max(start.Z, goal.Z) + lim.HorizontalPad,
		},
	}

	startMode := Walk
	if voxel.Liquid(p.World, start) {
		startMode = Swim
	}

	var seq uint64
	open := &openSet{}
	root := &searchNode{key: nodeKey{pos: start, mode: startMode}, kind: StepWalk, f: heuristic(start, goal)}
	heap.Push(open, root)
	best := map[nodeKey]float64{root.key: 0}

	edges := make([]edge, 0, 16)
	for open.Len() > 0 && len(best) < lim.MaxNodes {
		cur := heap.Pop(open).(*searchNode)
		if cur.key.pos == goal {
			return reconstruct(cur)
		}
		if g, ok := best[cur.key]; ok && cur.g > g {
			continue // superseded by a cheaper entry
		}

		edges = edges[:0]
		if cur.key.mode == Swim {
			edges = p.swimEdges(edges, cur.key.pos, box)
		} else {
			edges = p.walkEdges(edges, cur.key.pos, box)
		}
		for _, e := range edges {
			g := cur.g + e.cost
			if prev, ok := best[e.to]; ok && g >= prev {
				continue
			}
			best[e.to] = g
			seq++
			heap.Push(open, &searchNode{
				key:    e.to,
				kind:   e.kind,
				g:      g,
				f:      g + heuristic(e.to.pos, goal),
				seq:    seq,
				parent: cur,
			})
		}
	}
	return nil
}

func (p *Planner) walkEdges(out []edge, pos voxel.Pos, box bounds) []edge {
	w := p.World
	for _, d := range cardinal {
		same := pos.Add(d)
		if box.contains(same) {
			if voxel.Walkable(w, same) {
				out = append(out, edge{to: nodeKey{same, Walk}, kind: StepWalk, cost: costWalk})
			} else {
				up := same.Above()
				// Raised feet and head must be clear, and the avatar needs
				// headroom above its current cell to jump.
				if box.contains(up) && voxel.Walkable(w, up) && voxel.Passable(w, pos.Offset(0, 2, 0)) {
					out = append(out, edge{to: nodeKey{up, Walk}, kind: StepUp, cost: costStepUp})
				}
			}
		}

		down := same.Below()
		if box.contains(down) && voxel.Walkable(w, down) {
			out = append(out, edge{to: nodeKey{down, Walk}, kind: StepDown, cost: costStepDown})
		}

		land := pos.Add(d).Add(d)
		if box.contains(land) && voxel.OpenColumn(w, same) && !voxel.Walkable(w, same) && voxel.Walkable(w, land) {
			out = append(out, edge{to: nodeKey{land, Walk}, kind: JumpGap, cost: costJumpGap})
		}

		if box.contains(same) && voxel.Liquid(w, same) {
			out = append(out, edge{to: nodeKey{same, Swim}, kind: StepSwim, cost: costSwim})
		}
	}
	return out
}

func (p *Planner) swimEdges(out []edge, pos voxel.Pos, box bounds) []edge {
	w := p.World
	for _, d := range swimDirs {
		np := pos.Add(d)
		if !box.contains(np) {
			continue
		}
		switch {
		case voxel.Liquid(w, np):
			kind := StepSwim
			if d.Y > 0 {
				kind = SwimAscend
			} else if d.Y < 0 {
				kind = SwimDescend
			}
			out = append(out, edge{to: nodeKey{np, Swim}, kind: kind, cost: costSwim})
		case voxel.Walkable(w, np):
			out = append(out, edge{to: nodeKey{np, Walk}, kind: StepWalk, cost: costExitWater})
		}
	}
	return out
}

func reconstruct(end *searchNode) Plan {
	var plan Plan
	for n := end; n != nil && n.parent != nil; n = n.parent {
		plan = append(plan, Node{Pos: n.key.pos, Mode: n.key.mode, Kind: n.kind, Cost: n.g})
	}
	for i := 0; i < len(plan)/2; i++ {
		j := len(plan) - 1 - i
		plan[i], plan[j] = plan[j], plan[i]
	}
	return plan
}
