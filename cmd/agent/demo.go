package main

import (
	"voxelmind.ai/internal/voxel"
)

const demoBiome = "minecraft:plains"

// demoWorld is a small grass plateau with a tree line, a one-block ledge and
// a pond, enough to exercise walking, swimming and block targeting.
func demoWorld() (*voxel.Grid, voxel.Pos) {
	g := voxel.NewGrid(nil, 0, 32)
	p := g.Palette
	stone, dirt, grass := p.MustLookup("stone"), p.MustLookup("dirt"), p.MustLookup("grass_block")

	g.Fill(voxel.Pos{X: -24, Y: 0, Z: -24}, voxel.Pos{X: 24, Y: 2, Z: 24}, stone)
	g.Fill(voxel.Pos{X: -24, Y: 3, Z: -24}, voxel.Pos{X: 24, Y: 3, Z: 24}, dirt)
	g.Fill(voxel.Pos{X: -24, Y: 4, Z: -24}, voxel.Pos{X: 24, Y: 4, Z: 24}, grass)

	// Ledge to the east.
	g.Fill(voxel.Pos{X: 8, Y: 5, Z: -24}, voxel.Pos{X: 24, Y: 5, Z: 24}, grass)

	// Pond to the south.
	water := p.MustLookup("water")
	g.Fill(voxel.Pos{X: -6, Y: 2, Z: 8}, voxel.Pos{X: 2, Y: 4, Z: 14}, water)

	for _, t := range []voxel.Pos{{X: 4, Y: 5, Z: -6}, {X: -5, Y: 5, Z: -4}, {X: 12, Y: 6, Z: 3}} {
		tree(g, t)
	}

	g.AddEntity(voxel.Entity{Type: "minecraft:cow", Name: "Daisy", Pos: voxel.Vec3{X: -3.5, Y: 5, Z: 3.5}, Height: 1.4, Width: 0.9})
	g.AddEntity(voxel.Entity{Type: "minecraft:player", Name: "Alex", Pos: voxel.Vec3{X: 6.5, Y: 5, Z: 6.5}})
	return g, voxel.Pos{X: 0, Y: 5, Z: 0}
}

func tree(g *voxel.Grid, base voxel.Pos) {
	for dy := 0; dy < 4; dy++ {
		g.SetBlock(base.Offset(0, dy, 0), "oak_log")
	}
	for dx := -2; dx <= 2; dx++ {
		for dz := -2; dz <= 2; dz++ {
			for dy := 3; dy <= 4; dy++ {
				if dx == 0 && dz == 0 && dy == 3 {
					continue
				}
				g.SetBlock(base.Offset(dx, dy, dz), "oak_leaves")
			}
		}
	}
	g.SetBlock(base.Offset(0, 5, 0), "oak_leaves")
}
