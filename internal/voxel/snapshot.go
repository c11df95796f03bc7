package voxel

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
)

const SnapshotVersion = 1

type SnapshotHeader struct {
	Version       int    `json:"version"`
	Name          string `json:"name,omitempty"`
	PaletteDigest string `json:"palette_digest"`
	Chunks        int    `json:"chunks"`
}

// Snapshot is the on-disk terrain format: a JSON header line followed by the
// JSON body, all inside one zstd stream.
type Snapshot struct {
	Header   SnapshotHeader `json:"header"`
	MinY     int            `json:"min_y"`
	Height   int            `json:"height"`
	Palette  []BlockDef     `json:"palette"`
	Chunks   []ChunkV1      `json:"chunks"`
	Entities []Entity       `json:"entities,omitempty"`
	Spawn    [3]int         `json:"spawn"`
	Biome    string         `json:"biome,omitempty"`
}

type ChunkV1 struct {
	CX     int    `json:"cx"`
	CZ     int    `json:"cz"`
	Blocks string `json:"blocks"` // RLE
}

// Export captures the grid into a snapshot.
func (g *Grid) Export(name string, spawn Pos, biome string) Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	snap := Snapshot{
		Header: SnapshotHeader{
			Version:       SnapshotVersion,
			Name:          name,
			PaletteDigest: g.Palette.Digest,
			Chunks:        len(g.chunks),
		},
		MinY:    g.MinY,
		Height:  g.Height,
		Palette: append([]BlockDef(nil), g.Palette.Defs...),
		Spawn:   [3]int{spawn.X, spawn.Y, spawn.Z},
		Biome:   biome,
	}
	for _, k := range g.chunkKeys() {
		c := g.chunks[k]
		snap.Chunks = append(snap.Chunks, ChunkV1{CX: c.CX, CZ: c.CZ, Blocks: EncodeRLE(c.Blocks)})
	}
	for _, e := range g.entities {
		snap.Entities = append(snap.Entities, e)
	}
	sort.Slice(snap.Entities, func(i, j int) bool { return snap.Entities[i].ID < snap.Entities[j].ID })
	return snap
}

// Import builds a grid from a snapshot.
func Import(snap Snapshot) (*Grid, error) {
	if snap.Header.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	pal, err := NewPalette(snap.Palette)
	if err != nil {
		return nil, err
	}
	if snap.Header.PaletteDigest != "" && snap.Header.PaletteDigest != pal.Digest {
		return nil, fmt.Errorf("palette digest mismatch")
	}
	g := NewGrid(pal, snap.MinY, snap.Height)
	n := ChunkSize * ChunkSize * g.Height
	for _, cv := range snap.Chunks {
		blocks, err := DecodeRLE(cv.Blocks, n)
		if err != nil {
			return nil, fmt.Errorf("chunk %d,%d: %w", cv.CX, cv.CZ, err)
		}
		for _, id := range blocks {
			if int(id) >= len(pal.IDs) {
				return nil, fmt.Errorf("chunk %d,%d: block id %d outside palette", cv.CX, cv.CZ, id)
			}
		}
		g.chunks[ChunkKey{CX: cv.CX, CZ: cv.CZ}] = &Chunk{CX: cv.CX, CZ: cv.CZ, Blocks: blocks, dirty: true}
	}
	for _, e := range snap.Entities {
		g.AddEntity(e)
	}
	return g, nil
}

func WriteSnapshot(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	// Header line; the body repeats it.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := json.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("json decode: %w", err)
	}
	return snap, nil
}
