package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"voxelmind.ai/internal/action"
	plog "voxelmind.ai/internal/persistence/log"
	"voxelmind.ai/internal/voxel"
)

func main() {
	var (
		journalDir = flag.String("journal", "./data/journal", "journal dir containing decisions-*.jsonl.zst")
		snapPath   = flag.String("snapshot", "", "terrain snapshot to describe (optional)")
		fromTick   = flag.Int64("from_tick", 0, "first tick to print (inclusive, optional)")
		toTick     = flag.Int64("to_tick", 0, "last tick to print (inclusive, optional)")
		outcome    = flag.String("outcome", "", "only print rounds with this outcome (optional)")
		withChat   = flag.Bool("chat", false, "also print the conversation journal")
	)
	flag.Parse()

	if *snapPath != "" {
		snap, err := voxel.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot v%d name=%s chunks=%d entities=%d min_y=%d height=%d spawn=%v biome=%s\n",
			snap.Header.Version, snap.Header.Name, len(snap.Chunks), len(snap.Entities), snap.MinY, snap.Height, snap.Spawn, snap.Biome)
	}

	f := filter{from: *fromTick, to: *toTick, outcome: *outcome}
	t, err := summarize(os.Stdout, *journalDir, f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	if t.rounds == 0 {
		fmt.Fprintln(os.Stderr, "no rounds found in", *journalDir)
		os.Exit(1)
	}
	t.print(os.Stdout)

	if *withChat {
		if err := printChat(os.Stdout, *journalDir, f); err != nil {
			fmt.Fprintln(os.Stderr, "chat:", err)
			os.Exit(1)
		}
	}
}

type filter struct {
	from, to int64
	outcome  string
}

func (f filter) tick(t int64) bool {
	return t >= f.from && (f.to == 0 || t <= f.to)
}

type totals struct {
	rounds    int
	outcomes  map[string]int
	providers map[string]int
	chatSent  int
	navs      int
	latencyMS int64
}

// summarize prints one line per matching round and returns the totals.
func summarize(out io.Writer, dir string, f filter) (totals, error) {
	t := totals{outcomes: map[string]int{}, providers: map[string]int{}}
	err := plog.ReadRounds(dir, func(e plog.RoundEntry) error {
		if !f.tick(e.Tick) || (f.outcome != "" && e.Outcome != f.outcome) {
			return nil
		}
		t.rounds++
		t.outcomes[e.Outcome]++
		t.providers[e.Provider]++
		t.latencyMS += e.LatencyMS
		if e.ChatSent {
			t.chatSent++
		}
		if e.Nav != nil {
			t.navs++
		}
		_, err := fmt.Fprintln(out, roundLine(e))
		return err
	})
	return t, err
}

func roundLine(e plog.RoundEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tick=%d %s %s %s %dms", e.Tick, e.Mode, e.Provider, e.Outcome, e.LatencyMS)
	if e.Error != "" {
		fmt.Fprintf(&b, " err=%q", e.Error)
	}
	if e.Action != nil {
		if d := describe(action.Parse(e.Action)); d != "" {
			b.WriteString(" " + d)
		}
	}
	if e.Chat != "" {
		state := "sent"
		if !e.ChatSent {
			state = "suppressed"
		}
		fmt.Fprintf(&b, " chat(%s)=%q", state, e.Chat)
	}
	return b.String()
}

// describe renders the control parts of a decision; chat is printed from the
// round itself.
func describe(a action.Action) string {
	var parts []string
	if a.Navigation.HasRequest() {
		parts = append(parts, fmt.Sprintf("nav=(%d,%d,%d)", a.Navigation.DXOrZero(), a.Navigation.DYOrZero(), a.Navigation.DZOrZero()))
	}
	if a.Mouse.Left != action.PressNone {
		parts = append(parts, "left="+a.Mouse.Left.String())
	}
	if a.Mouse.Right != action.PressNone {
		parts = append(parts, "right="+a.Mouse.Right.String())
	}
	if t := a.Target; t != nil {
		switch {
		case t.HasEntity() && t.EntityType != nil:
			parts = append(parts, "target=entity:"+*t.EntityType)
		case t.HasEntity():
			parts = append(parts, "target=name:"+*t.EntityName)
		case t.HasPos():
			parts = append(parts, fmt.Sprintf("target=pos:%d,%d,%d", *t.X, *t.Y, *t.Z))
		case t.BlockID != nil:
			parts = append(parts, "target=block:"+*t.BlockID)
		case t.BlockTag != nil:
			parts = append(parts, "target=tag:"+*t.BlockTag)
		default:
			parts = append(parts, "target=clear")
		}
	}
	return strings.Join(parts, " ")
}

func (t totals) print(out io.Writer) {
	avg := int64(0)
	if t.rounds > 0 {
		avg = t.latencyMS / int64(t.rounds)
	}
	fmt.Fprintf(out, "rounds=%d chat_sent=%d nav=%d avg_latency=%dms\n", t.rounds, t.chatSent, t.navs, avg)
	for _, k := range sortedKeys(t.outcomes) {
		fmt.Fprintf(out, "  outcome %-15s %d\n", k, t.outcomes[k])
	}
	for _, k := range sortedKeys(t.providers) {
		fmt.Fprintf(out, "  provider %-14s %d\n", k, t.providers[k])
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printChat(out io.Writer, dir string, f filter) error {
	files, err := plog.ListFiles(dir, "chat")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, path := range files {
		err := plog.ReadLines(path, func(line []byte) error {
			var e plog.ChatEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			if !f.tick(e.Tick) {
				return nil
			}
			who := e.Role
			if e.Sender != "" {
				who += ":" + e.Sender
			}
			_, err := fmt.Fprintf(out, "tick=%d %s: %s\n", e.Tick, who, e.Text)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}
