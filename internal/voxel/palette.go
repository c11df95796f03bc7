package voxel

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const DefaultNamespace = "minecraft"

// Namespaced adds the default namespace to a bare id ("stone" -> "minecraft:stone").
func Namespaced(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" || strings.Contains(id, ":") {
		return id
	}
	return DefaultNamespace + ":" + id
}

type BlockDef struct {
	ID     string   `json:"id"`
	Solid  bool     `json:"solid"`
	Liquid bool     `json:"liquid,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Color  string   `json:"color,omitempty"` // CSS color used by map renders
}

func (b BlockDef) IsAir() bool { return !b.Solid && !b.Liquid }

func (b BlockDef) HasTag(tag string) bool {
	tag = Namespaced(tag)
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Palette maps block ids to the compact uint16 ids stored in chunks.
// Index 0 is always air.
type Palette struct {
	IDs    []string
	Index  map[string]uint16
	Defs   []BlockDef
	Digest string
}

var defaultBlocks = []BlockDef{
	{ID: "minecraft:air"},
	{ID: "minecraft:stone", Solid: true, Color: "#7d7d7d"},
	{ID: "minecraft:dirt", Solid: true, Tags: []string{"minecraft:dirt"}, Color: "#866043"},
	{ID: "minecraft:grass_block", Solid: true, Tags: []string{"minecraft:dirt"}, Color: "#5d9b3a"},
	{ID: "minecraft:sand", Solid: true, Color: "#dbd3a0"},
	{ID: "minecraft:gravel", Solid: true, Color: "#857f7e"},
	{ID: "minecraft:water", Liquid: true, Color: "rgb(52, 90, 200)"},
	{ID: "minecraft:oak_log", Solid: true, Tags: []string{"minecraft:logs"}, Color: "saddlebrown"},
	{ID: "minecraft:birch_log", Solid: true, Tags: []string{"minecraft:logs"}, Color: "#d7cb8d"},
	{ID: "minecraft:oak_leaves", Solid: true, Tags: []string{"minecraft:leaves"}, Color: "forestgreen"},
	{ID: "minecraft:glass", Solid: true, Color: "rgba(200, 230, 240, 0.6)"},
}

func DefaultPalette() *Palette {
	p, err := NewPalette(defaultBlocks)
	if err != nil {
		panic(err)
	}
	return p
}

func NewPalette(defs []BlockDef) (*Palette, error) {
	p := &Palette{Index: map[string]uint16{}}
	air := BlockDef{ID: "minecraft:air"}
	p.add(air)
	for _, d := range defs {
		d.ID = Namespaced(d.ID)
		if d.ID == "" {
			return nil, fmt.Errorf("palette: empty block id")
		}
		if d.ID == air.ID {
			continue
		}
		if _, dup := p.Index[d.ID]; dup {
			return nil, fmt.Errorf("palette: duplicate block id %q", d.ID)
		}
		for i, t := range d.Tags {
			d.Tags[i] = Namespaced(t)
		}
		if len(p.IDs) > 0xFFFF {
			return nil, fmt.Errorf("palette: too many blocks")
		}
		p.add(d)
	}
	b, _ := json.Marshal(p.Defs)
	sum := sha256.Sum256(b)
	p.Digest = hex.EncodeToString(sum[:])
	return p, nil
}

// LoadPalette reads a JSON array of block definitions.
func LoadPalette(path string) (*Palette, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewPalette(defs)
}

func (p *Palette) add(d BlockDef) {
	p.Index[d.ID] = uint16(len(p.IDs))
	p.IDs = append(p.IDs, d.ID)
	p.Defs = append(p.Defs, d)
}

func (p *Palette) Def(id uint16) BlockDef {
	if int(id) >= len(p.Defs) {
		return p.Defs[0]
	}
	return p.Defs[id]
}

func (p *Palette) Lookup(blockID string) (uint16, bool) {
	id, ok := p.Index[Namespaced(blockID)]
	return id, ok
}

// MustLookup is for fixtures and demo worlds.
func (p *Palette) MustLookup(blockID string) uint16 {
	id, ok := p.Lookup(blockID)
	if !ok {
		panic("unknown block " + blockID)
	}
	return id
}
