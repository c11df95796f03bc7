package targeting

import (
	"voxelmind.ai/internal/action"
	"voxelmind.ai/internal/voxel"
)

// Cache memoizes the resolved cell of a block target between ticks.
type Cache struct {
	pos voxel.Pos
	ok  bool
}

func (c *Cache) Clear() { *c = Cache{} }

func (c *Cache) Get() (voxel.Pos, bool) { return c.pos, c.ok }

// Resolve returns the cached cell while it stays usable, otherwise resolves
// again and remembers the result.
func (c *Cache) Resolve(r *Resolver, eye, feet voxel.Vec3, t action.Target) (voxel.Pos, bool) {
	if t.HasPos() {
		p, _ := r.ResolveBlock(eye, feet, t)
		c.pos, c.ok = p, true
		return p, true
	}
	if c.ok && !c.stale(r, eye, feet, t) {
		return c.pos, true
	}
	c.pos, c.ok = r.ResolveBlock(eye, feet, t)
	return c.pos, c.ok
}

func (c *Cache) stale(r *Resolver, eye, feet voxel.Vec3, t action.Target) bool {
	lim := float64(r.radius() + 2)
	if c.pos.DistSqTo(feet) > lim*lim {
		return true
	}
	if !Visible(r.World, eye, c.pos) {
		return true
	}
	return !blockMatches(r.World.Block(c.pos), t)
}
