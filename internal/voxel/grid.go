package voxel

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"sync"
)

const ChunkSize = 16

type ChunkKey struct {
	CX int
	CZ int
}

// Chunk holds a 16x16 column slice of the grid between the grid's MinY and
// MinY+Height.
type Chunk struct {
	CX, CZ int
	Blocks []uint16

	dirty bool
	hash  [32]byte
}

func (c *Chunk) index(x, y, z int) int {
	// x fastest, then z, then y
	return x + z*ChunkSize + y*ChunkSize*ChunkSize
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

// Grid is an in-memory World. Cells outside the vertical range read as air.
type Grid struct {
	Palette *Palette
	MinY    int
	Height  int

	mu       sync.RWMutex
	chunks   map[ChunkKey]*Chunk
	entities map[int]Entity
	nextID   int
}

func NewGrid(p *Palette, minY, height int) *Grid {
	if p == nil {
		p = DefaultPalette()
	}
	if height <= 0 {
		height = 128
	}
	return &Grid{
		Palette:  p,
		MinY:     minY,
		Height:   height,
		chunks:   map[ChunkKey]*Chunk{},
		entities: map[int]Entity{},
		nextID:   1,
	}
}

func (g *Grid) inRange(y int) bool { return y >= g.MinY && y < g.MinY+g.Height }

func (g *Grid) chunkFor(p Pos, create bool) (*Chunk, int) {
	k := ChunkKey{CX: floorDiv(p.X, ChunkSize), CZ: floorDiv(p.Z, ChunkSize)}
	c := g.chunks[k]
	if c == nil {
		if !create {
			return nil, 0
		}
		c = &Chunk{CX: k.CX, CZ: k.CZ, Blocks: make([]uint16, ChunkSize*ChunkSize*g.Height), dirty: true}
		g.chunks[k] = c
	}
	return c, c.index(mod(p.X, ChunkSize), p.Y-g.MinY, mod(p.Z, ChunkSize))
}

func (g *Grid) ID(p Pos) uint16 {
	if !g.inRange(p.Y) {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, i := g.chunkFor(p, false)
	if c == nil {
		return 0
	}
	return c.Blocks[i]
}

func (g *Grid) Block(p Pos) BlockDef { return g.Palette.Def(g.ID(p)) }

func (g *Grid) Set(p Pos, id uint16) {
	if !g.inRange(p.Y) {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	c, i := g.chunkFor(p, true)
	if c.Blocks[i] == id {
		return
	}
	c.Blocks[i] = id
	c.dirty = true
}

// SetBlock is Set by block id; unknown ids are ignored.
func (g *Grid) SetBlock(p Pos, blockID string) bool {
	id, ok := g.Palette.Lookup(blockID)
	if !ok {
		return false
	}
	g.Set(p, id)
	return true
}

// Fill sets every cell in the inclusive box spanned by a and b.
func (g *Grid) Fill(a, b Pos, id uint16) {
	lo := Pos{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)}
	hi := Pos{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)}
	for y := lo.Y; y <= hi.Y; y++ {
		for z := lo.Z; z <= hi.Z; z++ {
			for x := lo.X; x <= hi.X; x++ {
				g.Set(Pos{X: x, Y: y, Z: z}, id)
			}
		}
	}
}

// SurfaceY is the highest non-air cell in the column, or MinY-1.
func (g *Grid) SurfaceY(x, z int) int {
	for y := g.MinY + g.Height - 1; y >= g.MinY; y-- {
		if g.ID(Pos{X: x, Y: y, Z: z}) != 0 {
			return y
		}
	}
	return g.MinY - 1
}

func (g *Grid) AddEntity(e Entity) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e.ID == 0 {
		e.ID = g.nextID
	}
	if e.ID >= g.nextID {
		g.nextID = e.ID + 1
	}
	if e.Height <= 0 {
		e.Height = 1.8
	}
	if e.Width <= 0 {
		e.Width = 0.6
	}
	g.entities[e.ID] = e
	return e.ID
}

func (g *Grid) MoveEntity(id int, pos Vec3) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entities[id]
	if !ok {
		return false
	}
	e.Pos = pos
	g.entities[id] = e
	return true
}

func (g *Grid) RemoveEntity(id int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entities, id)
}

func (g *Grid) Entity(id int) (Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.entities[id]
	return e, ok
}

// EntitiesIn returns entities whose feet are inside b, ordered by id.
func (g *Grid) EntitiesIn(b Box) []Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Entity
	for _, e := range g.entities {
		if b.Contains(e.Pos) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *Grid) chunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(g.chunks))
	for k := range g.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

// Digest hashes all chunk digests in key order.
func (g *Grid) Digest() [32]byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	h := sha256.New()
	var tmp [8]byte
	for _, k := range g.chunkKeys() {
		binary.LittleEndian.PutUint32(tmp[:4], uint32(int32(k.CX)))
		binary.LittleEndian.PutUint32(tmp[4:], uint32(int32(k.CZ)))
		h.Write(tmp[:])
		d := g.chunks[k].Digest()
		h.Write(d[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
