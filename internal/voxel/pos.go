package voxel

import "math"

// Pos is a discrete cell coordinate.
type Pos struct {
	X int
	Y int
	Z int
}

func (p Pos) Add(o Pos) Pos             { return Pos{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z} }
func (p Pos) Offset(dx, dy, dz int) Pos { return Pos{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz} }
func (p Pos) Above() Pos                { return Pos{X: p.X, Y: p.Y + 1, Z: p.Z} }
func (p Pos) Below() Pos                { return Pos{X: p.X, Y: p.Y - 1, Z: p.Z} }

// Center is the middle of the cell.
func (p Pos) Center() Vec3 {
	return Vec3{X: float64(p.X) + 0.5, Y: float64(p.Y) + 0.5, Z: float64(p.Z) + 0.5}
}

// DistSqTo is the squared distance from v to the cell center.
func (p Pos) DistSqTo(v Vec3) float64 {
	d := p.Center().Sub(v)
	return d.X*d.X + d.Y*d.Y + d.Z*d.Z
}

// Vec3 is a continuous world position.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s} }
func (v Vec3) Len() float64         { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }
func (v Vec3) DistSq(o Vec3) float64 {
	d := v.Sub(o)
	return d.X*d.X + d.Y*d.Y + d.Z*d.Z
}
func (v Vec3) Floor() Pos { return Pos{X: floor(v.X), Y: floor(v.Y), Z: floor(v.Z)} }

func floor(f float64) int { return int(math.Floor(f)) }

// Box is an axis-aligned volume, inclusive on both ends.
type Box struct {
	Min Vec3
	Max Vec3
}

func BoxAround(c Vec3, r float64) Box {
	return Box{
		Min: Vec3{X: c.X - r, Y: c.Y - r, Z: c.Z - r},
		Max: Vec3{X: c.X + r, Y: c.Y + r, Z: c.Z + r},
	}
}

func (b Box) Contains(v Vec3) bool {
	return v.X >= b.Min.X && v.X <= b.Max.X &&
		v.Y >= b.Min.Y && v.Y <= b.Max.Y &&
		v.Z >= b.Min.Z && v.Z <= b.Max.Z
}

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
