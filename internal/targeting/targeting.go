package targeting

import (
	"math"
	"strings"

	"voxelmind.ai/internal/action"
	"voxelmind.ai/internal/input"
	"voxelmind.ai/internal/voxel"
)

// EyeHeight is the avatar's eye offset above its feet.
const EyeHeight = 1.62

const sampleStep = 0.2

func Eye(feet voxel.Vec3) voxel.Vec3 {
	return voxel.Vec3{X: feet.X, Y: feet.Y + EyeHeight, Z: feet.Z}
}

// Resolver finds the world object an action.Target refers to.
type Resolver struct {
	World  voxel.World
	Radius int
}

func (r *Resolver) radius() int { return max(1, r.Radius) }

// ResolveEntity picks the nearest entity other than self matching the
// target's type and name substring.
func (r *Resolver) ResolveEntity(feet voxel.Vec3, t action.Target, self int) (voxel.Entity, bool) {
	if r.World == nil || !t.HasEntity() {
		return voxel.Entity{}, false
	}
	match := entityMatcher(t, self)
	box := voxel.BoxAround(feet.Floor().Center(), float64(r.radius())+0.5)

	var best voxel.Entity
	bestD := math.Inf(1)
	found := false
	for _, e := range r.World.EntitiesIn(box) {
		if !match(e) {
			continue
		}
		if d := e.Pos.DistSq(feet); d < bestD {
			best, bestD, found = e, d, true
		}
	}
	return best, found
}

// SightedEntity returns the nearest entity matching t whose box the look ray
// enters within maxDist and before any non-air block.
func (r *Resolver) SightedEntity(eye voxel.Vec3, yaw, pitch float32, maxDist float64, t action.Target, self int) (voxel.Entity, bool) {
	if r.World == nil || !t.HasEntity() {
		return voxel.Entity{}, false
	}
	limit := maxDist
	if hit, ok := Raycast(r.World, eye, yaw, pitch, maxDist); ok {
		limit = hit.Distance
	}
	dir := LookDir(yaw, pitch)
	match := entityMatcher(t, self)

	var best voxel.Entity
	bestT := math.Inf(1)
	found := false
	for _, e := range r.World.EntitiesIn(voxel.BoxAround(eye, maxDist+2)) {
		if !match(e) {
			continue
		}
		lo, hi := EntityBounds(e)
		if d, ok := rayBox(eye, dir, lo, hi); ok && d <= limit && d < bestT {
			best, bestT, found = e, d, true
		}
	}
	return best, found
}

func entityMatcher(t action.Target, self int) func(voxel.Entity) bool {
	var typeID, name string
	if t.EntityType != nil {
		typeID = voxel.Namespaced(*t.EntityType)
	}
	if t.EntityName != nil {
		name = strings.ToLower(*t.EntityName)
	}
	return func(e voxel.Entity) bool {
		if e.ID == self {
			return false
		}
		if typeID != "" && voxel.Namespaced(e.Type) != typeID {
			return false
		}
		return name == "" || strings.Contains(strings.ToLower(e.Name), name)
	}
}

// Default entity box when the world does not report one.
const (
	defaultEntityWidth  = 0.6
	defaultEntityHeight = 1.8
)

// EntityBounds is the entity's axis-aligned box, feet at the bottom center.
func EntityBounds(e voxel.Entity) (lo, hi voxel.Vec3) {
	w, h := e.Width, e.Height
	if w <= 0 {
		w = defaultEntityWidth
	}
	if h <= 0 {
		h = defaultEntityHeight
	}
	lo = voxel.Vec3{X: e.Pos.X - w/2, Y: e.Pos.Y, Z: e.Pos.Z - w/2}
	hi = voxel.Vec3{X: e.Pos.X + w/2, Y: e.Pos.Y + h, Z: e.Pos.Z + w/2}
	return lo, hi
}

// rayBox is the slab test. It returns the entry distance along a unit dir,
// zero when origin is inside the box.
func rayBox(origin, dir, lo, hi voxel.Vec3) (float64, bool) {
	tmin, tmax := 0.0, math.Inf(1)
	axes := [3][4]float64{
		{origin.X, dir.X, lo.X, hi.X},
		{origin.Y, dir.Y, lo.Y, hi.Y},
		{origin.Z, dir.Z, lo.Z, hi.Z},
	}
	for _, a := range axes {
		o, d, l, h := a[0], a[1], a[2], a[3]
		if math.Abs(d) < 1e-12 {
			if o < l || o > h {
				return 0, false
			}
			continue
		}
		t1, t2 := (l-o)/d, (h-o)/d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

// ResolveBlock returns the target's explicit position, or the nearest matching
// cell in the radius cube preferring cells visible from eye.
func (r *Resolver) ResolveBlock(eye, feet voxel.Vec3, t action.Target) (voxel.Pos, bool) {
	if t.HasPos() {
		return voxel.Pos{X: *t.X, Y: *t.Y, Z: *t.Z}, true
	}
	if r.World == nil || (t.BlockID == nil && t.BlockTag == nil) {
		return voxel.Pos{}, false
	}
	origin := feet.Floor()
	rad := r.radius()

	var bestVis, bestAny voxel.Pos
	dVis, dAny := math.Inf(1), math.Inf(1)
	for dx := -rad; dx <= rad; dx++ {
		for dy := -rad; dy <= rad; dy++ {
			for dz := -rad; dz <= rad; dz++ {
				p := origin.Offset(dx, dy, dz)
				if !blockMatches(r.World.Block(p), t) {
					continue
				}
				d := p.DistSqTo(feet)
				if d < dAny {
					bestAny, dAny = p, d
				}
				if d < dVis && Visible(r.World, eye, p) {
					bestVis, dVis = p, d
				}
			}
		}
	}
	switch {
	case !math.IsInf(dVis, 1):
		return bestVis, true
	case !math.IsInf(dAny, 1):
		return bestAny, true
	}
	return voxel.Pos{}, false
}

func blockMatches(b voxel.BlockDef, t action.Target) bool {
	if b.IsAir() {
		return false
	}
	if t.BlockID != nil && voxel.Namespaced(*t.BlockID) == b.ID {
		return true
	}
	return t.BlockTag != nil && b.HasTag(*t.BlockTag)
}

// Matches reports whether the block at hit is what t asks for: the exact
// position, or the block id or tag.
func Matches(w voxel.World, t action.Target, hit voxel.Pos) bool {
	if t.HasPos() && (voxel.Pos{X: *t.X, Y: *t.Y, Z: *t.Z}) == hit {
		return true
	}
	return blockMatches(w.Block(hit), t)
}

// Visible samples the segment from eye to the cell center. The cell is visible
// when no other non-air cell is crossed first.
func Visible(w voxel.World, eye voxel.Vec3, p voxel.Pos) bool {
	target := p.Center()
	delta := target.Sub(eye)
	dist := delta.Len()
	if dist < sampleStep {
		return true
	}
	dir := delta.Scale(1 / dist)
	steps := int(math.Ceil(dist / sampleStep))
	for i := 0; i <= steps; i++ {
		s := eye.Add(dir.Scale(math.Min(dist, float64(i)*sampleStep)))
		c := s.Floor()
		if c == p {
			return true
		}
		if !w.Block(c).IsAir() {
			return false
		}
	}
	return true
}

// ViewTo returns absolute yaw and pitch looking from eye at point. Yaw 0 faces
// +Z and -90 faces +X; positive pitch looks down.
func ViewTo(eye, point voxel.Vec3) action.View {
	d := point.Sub(eye)
	horiz := math.Hypot(d.X, d.Z)
	yaw := float32(math.Atan2(d.Z, d.X)*180/math.Pi - 90)
	pitch := float32(-math.Atan2(d.Y, horiz) * 180 / math.Pi)
	return action.View{
		YawAbs:   action.Float(input.WrapYaw(yaw)),
		PitchAbs: action.Float(input.ClampPitch(pitch)),
	}
}

// LookDir is the unit vector for a yaw/pitch pair in ViewTo's convention.
func LookDir(yaw, pitch float32) voxel.Vec3 {
	y := float64(yaw) * math.Pi / 180
	p := float64(pitch) * math.Pi / 180
	return voxel.Vec3{
		X: -math.Sin(y) * math.Cos(p),
		Y: -math.Sin(p),
		Z: math.Cos(y) * math.Cos(p),
	}
}

// Hit is the first non-air cell along the crosshair.
type Hit struct {
	Pos      voxel.Pos
	Distance float64
	Block    voxel.BlockDef
}

// Raycast walks the look vector in small steps up to maxDist.
func Raycast(w voxel.World, eye voxel.Vec3, yaw, pitch float32, maxDist float64) (Hit, bool) {
	dir := LookDir(yaw, pitch)
	const step = 0.05
	last := voxel.Pos{X: math.MinInt32}
	for t := 0.0; t <= maxDist; t += step {
		c := eye.Add(dir.Scale(t)).Floor()
		if c == last {
			continue
		}
		last = c
		if b := w.Block(c); !b.IsAir() {
			return Hit{Pos: c, Distance: t, Block: b}, true
		}
	}
	return Hit{}, false
}
