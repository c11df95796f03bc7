package voxel

// World is the read-only terrain/entity oracle the pathfinder and targeting
// code query. Implementations must be safe for concurrent readers.
type World interface {
	Block(p Pos) BlockDef
	EntitiesIn(b Box) []Entity
}

type Entity struct {
	ID     int     `json:"id"`
	Type   string  `json:"type"`
	Name   string  `json:"name"`
	Pos    Vec3    `json:"pos"` // feet
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
}

// HeadPoint biases aim toward the head.
func (e Entity) HeadPoint() Vec3 {
	return Vec3{X: e.Pos.X, Y: e.Pos.Y + e.Height*0.85, Z: e.Pos.Z}
}

// Passable reports whether an avatar can occupy the cell.
func Passable(w World, p Pos) bool { return w.Block(p).IsAir() }

// Walkable: feet and head cells clear, floor solid.
func Walkable(w World, feet Pos) bool {
	if !Passable(w, feet) || !Passable(w, feet.Above()) {
		return false
	}
	return w.Block(feet.Below()).Solid
}

// OpenColumn reports a two-cell-high air column at p.
func OpenColumn(w World, p Pos) bool {
	return Passable(w, p) && Passable(w, p.Above())
}

func Liquid(w World, p Pos) bool { return w.Block(p).Liquid }
