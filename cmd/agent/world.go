package main

import (
	"log"
	"math"
	"sync"

	"voxelmind.ai/internal/agent"
	"voxelmind.ai/internal/input"
	"voxelmind.ai/internal/targeting"
	"voxelmind.ai/internal/voxel"
)

const (
	walkSpeed   = 0.215 // blocks per tick
	sprintSpeed = 0.28
	sneakSpeed  = 0.065
	jumpWindow  = 6 // ticks a tap lets the avatar climb one block
	breakTicks  = 12
	reach       = 4.5
)

// world is the headless game: a grid, one avatar driven by the input
// recorder, and a tick clock. Position reads are locked because the capture
// worker renders around the avatar.
type world struct {
	grid  *voxel.Grid
	keys  *input.Recorder
	log   *log.Logger
	name  string
	self  int
	biome string

	mu   sync.Mutex
	tick int64
	feet voxel.Vec3

	jump     int
	mining   voxel.Pos
	progress int

	echoes []string
}

func newWorld(g *voxel.Grid, spawn voxel.Pos, biome, name string, logger *log.Logger) *world {
	feet := voxel.Vec3{X: float64(spawn.X) + 0.5, Y: float64(spawn.Y), Z: float64(spawn.Z) + 0.5}
	w := &world{grid: g, keys: &input.Recorder{}, log: logger, name: name, biome: biome, feet: feet}
	w.self = g.AddEntity(voxel.Entity{Type: "minecraft:player", Name: name, Pos: feet})
	return w
}

func (w *world) GameTime() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

func (w *world) Feet() voxel.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.feet
}

func (w *world) Avatar() agent.Avatar {
	return agent.Avatar{Name: w.name, EntityID: w.self, Feet: w.Feet(), Dimension: "minecraft:overworld", Biome: w.biome}
}

func (w *world) World() voxel.World { return w.grid }

// SendChat prints the line. Public lines come back as chat from the local
// player on the next tick, as a server would echo them.
func (w *world) SendChat(text string, public bool) {
	if public {
		w.log.Printf("<%s> %s", w.name, text)
		w.echoes = append(w.echoes, text)
		return
	}
	w.log.Printf("(local) %s", text)
}

func (w *world) Notify(text string) { w.log.Printf("%s", text) }

// takeEchoes returns the chat lines to deliver back this tick.
func (w *world) takeEchoes() []string {
	out := w.echoes
	w.echoes = nil
	return out
}

// step advances the clock and moves the avatar by the held keys.
func (w *world) step() {
	yaw, pitch := w.keys.View()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.tick++

	feetCell := w.feet.Floor()
	inWater := w.grid.Block(feetCell).Liquid
	onGround := !voxel.Passable(w.grid, feetCell.Below())
	if w.keys.ConsumeTaps(input.Jump) > 0 && (onGround || inWater) {
		w.jump = jumpWindow
	}

	var fwd, strafe float64
	if w.keys.Down(input.Forward) {
		fwd++
	}
	if w.keys.Down(input.Back) {
		fwd--
	}
	if w.keys.Down(input.Left) {
		strafe++
	}
	if w.keys.Down(input.Right) {
		strafe--
	}
	speed := walkSpeed
	switch {
	case w.keys.Down(input.Crouch) && !inWater:
		speed = sneakSpeed
	case w.keys.Down(input.Sprint):
		speed = sprintSpeed
	}
	if fwd != 0 || strafe != 0 {
		rad := float64(yaw) * math.Pi / 180
		dx := (-math.Sin(rad)*fwd + math.Cos(rad)*strafe) * speed
		dz := (math.Cos(rad)*fwd + math.Sin(rad)*strafe) * speed
		w.moveLocked(dx, dz)
	}

	w.fallLocked(inWater)
	if w.jump > 0 {
		w.jump--
	}
	w.grid.MoveEntity(w.self, w.feet)
	w.mineLocked(yaw, pitch)
}

func (w *world) moveLocked(dx, dz float64) {
	next := voxel.Vec3{X: w.feet.X + dx, Y: w.feet.Y, Z: w.feet.Z + dz}
	cell := next.Floor()
	if voxel.Passable(w.grid, cell) && voxel.Passable(w.grid, cell.Above()) {
		w.feet = next
		return
	}
	up := cell.Above()
	if w.jump > 0 && voxel.Passable(w.grid, up) && voxel.Passable(w.grid, up.Above()) &&
		voxel.Passable(w.grid, w.feet.Floor().Above().Above()) {
		w.feet = voxel.Vec3{X: next.X, Y: float64(up.Y), Z: next.Z}
		w.jump = 0
	}
}

func (w *world) fallLocked(inWater bool) {
	cell := w.feet.Floor()
	if inWater {
		if w.jump > 0 && voxel.Passable(w.grid, cell.Above()) {
			w.feet.Y = float64(cell.Y + 1)
		} else if w.keys.Down(input.Crouch) && voxel.Passable(w.grid, cell.Below()) {
			w.feet.Y = float64(cell.Y - 1)
		}
		return
	}
	if voxel.Passable(w.grid, cell.Below()) && cell.Y > w.grid.MinY {
		w.feet.Y = float64(cell.Y - 1)
	} else {
		w.feet.Y = float64(cell.Y)
	}
}

// mineLocked breaks the crosshair block after the primary key has been held
// on it for breakTicks.
func (w *world) mineLocked(yaw, pitch float32) {
	if !w.keys.Down(input.Primary) {
		w.progress = 0
		return
	}
	hit, ok := targeting.Raycast(w.grid, targeting.Eye(w.feet), yaw, pitch, reach)
	if !ok || hit.Block.Liquid {
		w.progress = 0
		return
	}
	if hit.Pos != w.mining {
		w.mining, w.progress = hit.Pos, 0
	}
	w.progress++
	if w.progress >= breakTicks {
		w.grid.SetBlock(hit.Pos, "air")
		w.progress = 0
		w.log.Printf("broke %s at %d,%d,%d", hit.Block.ID, hit.Pos.X, hit.Pos.Y, hit.Pos.Z)
	}
}
