// Package capture produces the PNG frames attached to decision requests.
package capture

import (
	"bytes"
	"context"
	"errors"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/mazznoer/csscolorparser"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/colornames"

	"voxelmind.ai/internal/voxel"
)

var ErrEmptyFrame = errors.New("capture: empty frame")

// Capturer returns one PNG-encoded frame.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Func adapts a plain function to Capturer.
type Func func(ctx context.Context) ([]byte, error)

func (f Func) Capture(ctx context.Context) ([]byte, error) { return f(ctx) }

// TopDown renders a map of the columns around the avatar: one cell per
// column colored by its highest non-air block, darker when lower. North is up.
type TopDown struct {
	World  voxel.World
	Center func() voxel.Vec3
	Self   int // entity drawn as the avatar marker

	Radius int // columns on each side; default 16
	Scale  int // pixels per column; default 8
	Above  int // cells scanned above the avatar; default 8
	Below  int // cells scanned below the avatar; default 24
}

func (t *TopDown) Capture(ctx context.Context) ([]byte, error) {
	if t.World == nil || t.Center == nil {
		return nil, ErrEmptyFrame
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	radius := orDefault(t.Radius, 16)
	scale := orDefault(t.Scale, 8)
	above := orDefault(t.Above, 8)
	below := orDefault(t.Below, 24)

	center := t.Center()
	c := center.Floor()
	size := 2*radius + 1
	small := image.NewRGBA(image.Rect(0, 0, size, size))

	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			px := color.RGBA{A: 255}
			for y := c.Y + above; y >= c.Y-below; y-- {
				b := t.World.Block(voxel.Pos{X: c.X + dx, Y: y, Z: c.Z + dz})
				if b.IsAir() {
					continue
				}
				px = shade(blockColor(b), y-c.Y, below)
				break
			}
			small.SetRGBA(dx+radius, dz+radius, px)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	box := voxel.BoxAround(c.Center(), float64(radius)+0.5)
	box.Min.Y, box.Max.Y = float64(c.Y-below), float64(c.Y+above+1)
	for _, e := range t.World.EntitiesIn(box) {
		ep := e.Pos.Floor()
		col := colornames.Red
		if e.ID == t.Self {
			col = colornames.Yellow
		}
		small.SetRGBA(ep.X-c.X+radius, ep.Z-c.Z+radius, col)
	}

	out := image.NewRGBA(image.Rect(0, 0, size*scale, size*scale))
	xdraw.NearestNeighbor.Scale(out, out.Bounds(), small, small.Bounds(), xdraw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, ErrEmptyFrame
	}
	return buf.Bytes(), nil
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

var (
	colorMu    sync.Mutex
	colorCache = map[string]color.RGBA{}
)

// blockColor parses the palette color, falling back to a stable color
// derived from the block id.
func blockColor(b voxel.BlockDef) color.RGBA {
	colorMu.Lock()
	defer colorMu.Unlock()
	if c, ok := colorCache[b.ID]; ok {
		return c
	}
	var c color.RGBA
	if parsed, err := csscolorparser.Parse(b.Color); b.Color != "" && err == nil {
		r, g, bl, _ := parsed.RGBA255()
		c = color.RGBA{R: r, G: g, B: bl, A: 255}
	} else {
		h := fnv.New32a()
		_, _ = h.Write([]byte(b.ID))
		v := h.Sum32()
		c = color.RGBA{R: uint8(64 + v%160), G: uint8(64 + (v>>8)%160), B: uint8(64 + (v>>16)%160), A: 255}
	}
	colorCache[b.ID] = c
	return c
}

// shade darkens columns whose top lies below the avatar.
func shade(c color.RGBA, dy, depth int) color.RGBA {
	if dy >= 0 || depth <= 0 {
		return c
	}
	f := 1 - 0.6*float64(-dy)/float64(depth)
	return color.RGBA{R: uint8(float64(c.R) * f), G: uint8(float64(c.G) * f), B: uint8(float64(c.B) * f), A: 255}
}
