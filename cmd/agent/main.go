package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"voxelmind.ai/internal/agent"
	"voxelmind.ai/internal/capture"
	"voxelmind.ai/internal/config"
	"voxelmind.ai/internal/persistence/indexdb"
	plog "voxelmind.ai/internal/persistence/log"
	"voxelmind.ai/internal/provider"
	"voxelmind.ai/internal/voxel"
)

func main() {
	var (
		configPath = flag.String("config", "./voxelmind.yaml", "settings file (created with defaults when missing)")
		terrain    = flag.String("terrain", "", "terrain snapshot (.snap.zst); empty generates a demo world")
		modeFlag   = flag.String("mode", "observe", "initial mode: disabled, observe or control")
		tickHz     = flag.Int("tick_hz", 20, "game ticks per second")
		name       = flag.String("name", "Steve", "avatar name")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		journal    = flag.Bool("journal", true, "write the decision journal under <data>/journal")
		index      = flag.String("index", "", "sqlite decision index path (default: <data>/index/voxelmind.sqlite; \"off\" disables)")
	)
	flag.Parse()

	_ = godotenv.Load()
	logger := log.New(os.Stdout, "[agent] ", log.LstdFlags|log.Lmicroseconds)

	if _, err := config.LoadOrCreate(*configPath); err != nil {
		logger.Fatalf("config: %v", err)
	}
	settings, err := config.Watch(*configPath, true, logger)
	if err != nil {
		logger.Fatalf("watch config: %v", err)
	}
	defer settings.Close()

	mode, err := agent.ParseMode(*modeFlag)
	if err != nil {
		logger.Fatalf("mode: %v", err)
	}

	grid, spawn, biome, err := loadTerrain(*terrain)
	if err != nil {
		logger.Fatalf("terrain: %v", err)
	}
	w := newWorld(grid, spawn, biome, *name, log.New(os.Stdout, "[game] ", log.LstdFlags|log.Lmicroseconds))
	logger.Printf("world ready spawn=%d,%d,%d biome=%s", spawn.X, spawn.Y, spawn.Z, biome)

	var recs agent.Recorders
	if *journal {
		mir, err := openMirror(*name, logger)
		if err != nil {
			logger.Fatalf("mirror: %v", err)
		}
		// Registered first so it drains after the journal seals its files.
		defer mir.Close()

		dl := plog.NewDecisionLogger(plog.Dir(*dataDir))
		if mir != nil {
			dl.OnSealed(mir.Enqueue)
		}
		defer dl.Close()
		recs = append(recs, dl)
	}
	idx, err := openIndex(*dataDir, *index)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		recs = append(recs, idx)
	}

	ctrl, err := agent.New(agent.Deps{
		Host:        w,
		Sink:        w.keys,
		Capturer:    &capture.TopDown{World: grid, Center: w.Feet, Self: w.self},
		Config:      settings,
		NewProvider: provider.New,
		Recorder:    recs,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatalf("agent: %v", err)
	}
	defer ctrl.Close()
	ctrl.SetMode(mode)
	logger.Printf("provider=%s mode=%s tick_hz=%d", ctrl.Status().Provider, mode, *tickHz)

	lines := make(chan string, 16)
	go readLines(os.Stdin, lines)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Second / time.Duration(max(1, *tickHz)))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Printf("shutting down")
			return
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if quit := handleLine(ctx, ctrl, w, idx, logger, line); quit {
				return
			}
		case <-ticker.C:
			w.step()
			for _, echo := range w.takeEchoes() {
				ctrl.OnPlayerChat(w.name, echo, true)
			}
			ctrl.Tick()
		}
	}
}

func loadTerrain(path string) (*voxel.Grid, voxel.Pos, string, error) {
	if strings.TrimSpace(path) == "" {
		g, spawn := demoWorld()
		return g, spawn, demoBiome, nil
	}
	snap, err := voxel.ReadSnapshot(path)
	if err != nil {
		return nil, voxel.Pos{}, "", err
	}
	g, err := voxel.Import(snap)
	if err != nil {
		return nil, voxel.Pos{}, "", err
	}
	spawn := voxel.Pos{X: snap.Spawn[0], Y: snap.Spawn[1], Z: snap.Spawn[2]}
	return g, spawn, snap.Biome, nil
}

func openIndex(dataDir, path string) (*indexdb.SQLiteIndex, error) {
	switch strings.TrimSpace(path) {
	case "off":
		return nil, nil
	case "":
		path = filepath.Join(dataDir, "index", "voxelmind.sqlite")
	}
	return indexdb.OpenSQLite(path)
}

func readLines(f *os.File, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out <- sc.Text()
	}
}

// handleLine runs on the tick goroutine. Plain text is said to the AI;
// slash commands drive the harness.
func handleLine(ctx context.Context, ctrl *agent.Controller, w *world, idx *indexdb.SQLiteIndex, logger *log.Logger, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		ctrl.SayToAI(line)
		return false
	}
	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "mode":
		m, err := agent.ParseMode(arg)
		if err != nil {
			logger.Printf("%v", err)
			return false
		}
		ctrl.SetMode(m)
	case "decide":
		if !ctrl.TriggerDecisionNow() {
			logger.Printf("decision not started (disabled or already in flight)")
		}
	case "clear":
		ctrl.ClearConversation()
	case "chat":
		// /chat <sender> <text> simulates another player.
		sender, text, ok := strings.Cut(arg, " ")
		if !ok {
			logger.Printf("usage: /chat <sender> <text>")
			return false
		}
		ctrl.OnPlayerChat(sender, text, false)
	case "history":
		fmt.Print(ctrl.ConversationSnapshot(10))
	case "status":
		printStatus(ctx, ctrl, w, idx)
	case "quit", "exit":
		return true
	default:
		logger.Printf("unknown command /%s (mode, decide, clear, chat, history, status, quit)", cmd)
	}
	return false
}

func printStatus(ctx context.Context, ctrl *agent.Controller, w *world, idx *indexdb.SQLiteIndex) {
	st := ctrl.Status()
	feet := w.Feet()
	fmt.Printf("mode=%s provider=%s in_flight=%v pending=%v ticks=%d last=%s\n",
		st.Mode, st.Provider, st.InFlight, st.Pending, st.Ticks, st.LastOutcome)
	fmt.Printf("pos=%.2f,%.2f,%.2f nav=%s remaining=%d target=%q conversation=%d\n",
		feet.X, feet.Y, feet.Z, st.NavState, st.PlanRemaining, st.Target, st.Conversation)
	if st.Waypoint != nil {
		fmt.Printf("next waypoint=%d,%d,%d\n", st.Waypoint.X, st.Waypoint.Y, st.Waypoint.Z)
	}
	if st.Locked != nil {
		fmt.Printf("locked cell=%d,%d,%d\n", st.Locked.X, st.Locked.Y, st.Locked.Z)
	}
	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Printf("index queue=%d/%d dropped rounds=%d chat=%d\n", s.QueueDepth, s.QueueCapacity, s.DropRoundTotal, s.DropChatTotal)
	qctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	rows, err := idx.RecentRounds(qctx, 5)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		fmt.Printf("recent rounds: %v\n", err)
		return
	}
	for _, r := range rows {
		fmt.Printf("  tick=%d %s %s %dms %q\n", r.Tick, r.Mode, r.Outcome, r.LatencyMS, r.Chat)
	}
}
