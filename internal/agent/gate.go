package agent

// chatRecord is one emitted AI line.
type chatRecord struct {
	msg  string
	tick int64
}

// chatGate tracks recent AI emissions for the anti-spam rules.
type chatGate struct {
	ring     []chatRecord // oldest first
	lastMsg  string
	lastTick int64
	hasLast  bool
}

type gateLimits struct {
	dedup       int
	minInterval int
	recentLimit int
	noRepeat    bool
	lastHumanAt int64
}

func (g *chatGate) prune(now int64, dedup, limit int) {
	keep := g.ring[:0]
	for _, r := range g.ring {
		if now-r.tick <= 2*int64(dedup) {
			keep = append(keep, r)
		}
	}
	g.ring = keep
	if over := len(g.ring) - max(1, limit); over > 0 {
		g.ring = append(g.ring[:0], g.ring[over:]...)
	}
}

// allow applies, in order: the consecutive-repeat rule, the minimum interval
// and the dedup window. All three must pass.
func (g *chatGate) allow(msg string, now int64, l gateLimits) bool {
	g.prune(now, l.dedup, l.recentLimit)
	if l.noRepeat && g.hasLast && msg == g.lastMsg && l.lastHumanAt <= g.lastTick {
		return false
	}
	if n := len(g.ring); n > 0 && now-g.ring[n-1].tick < int64(l.minInterval) {
		return false
	}
	for _, r := range g.ring {
		if r.msg == msg && now-r.tick < int64(l.dedup) {
			return false
		}
	}
	return true
}

func (g *chatGate) record(msg string, now int64, l gateLimits) {
	g.lastMsg, g.lastTick, g.hasLast = msg, now, true
	g.ring = append(g.ring, chatRecord{msg: msg, tick: now})
	g.prune(now, l.dedup, l.recentLimit)
}

// ownEcho reports whether text matches an AI line emitted within window ticks.
func (g *chatGate) ownEcho(text string, now int64, window int) bool {
	for i := len(g.ring) - 1; i >= 0; i-- {
		r := g.ring[i]
		if now-r.tick > int64(window) {
			break
		}
		if r.msg == text {
			return true
		}
	}
	return false
}
