package agent

import (
	"context"
	"fmt"
	"time"

	"voxelmind.ai/internal/action"
	"voxelmind.ai/internal/capture"
	"voxelmind.ai/internal/config"
	plog "voxelmind.ai/internal/persistence/log"
	"voxelmind.ai/internal/provider"
)

// round is everything the tick goroutine snapshots before handing off.
type round struct {
	req      provider.Request
	mode     Mode
	provider string
	started  time.Time

	// Observe consumption taken by this round, for rollback.
	consumed bool
	prevUsed int64
	usedSet  int64
}

// outcome is what a worker leaves in the pending slot.
type outcome struct {
	round
	kind    string
	action  *action.Action
	err     error
	latency time.Duration
}

// startRound claims the in-flight guard and launches a worker. It reports
// false when a round is already running.
func (c *Controller) startRound(cfg config.Config) bool {
	if !c.inFlight.CompareAndSwap(false, true) {
		return false
	}
	av := c.host.Avatar()
	yaw, pitch := c.input.Sink().View()
	wc := provider.WorldContext{
		Dimension: av.Dimension,
		Biome:     av.Biome,
		X:         av.Feet.X,
		Y:         av.Feet.Y,
		Z:         av.Feet.Z,
		Yaw:       yaw,
		Pitch:     pitch,
	}
	r := round{
		req:      provider.NewRequest(c.host.GameTime(), nil, wc, c.conversationContext(cfg)),
		mode:     c.mode,
		provider: c.prov.Name(),
		started:  time.Now(),
	}
	if c.mode == Observe {
		r.consumed, r.prevUsed, r.usedSet = true, c.usedSeq, c.humanSeq
		c.usedSeq = c.humanSeq
		c.observeInit = false
	}
	c.debugf("round %s tick=%d mode=%s provider=%s", r.req.ID, r.req.Tick, r.mode, r.provider)
	go c.runRound(r, c.prov, provider.Timeout(cfg.DecisionIntervalTicks))
	return true
}

// runRound executes on its own goroutine and touches only the guard and the
// pending slot.
func (c *Controller) runRound(r round, p provider.Provider, timeout time.Duration) {
	out := &outcome{round: r}
	defer func() {
		if v := recover(); v != nil {
			out.kind = plog.OutcomeProviderError
			out.err = fmt.Errorf("round panic: %v", v)
			out.latency = time.Since(r.started)
			c.pending.CompareAndSwap(nil, out)
		}
		c.inFlight.Store(false)
	}()

	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	img, err := c.capturer.Capture(ctx)
	if err == nil && len(img) == 0 {
		err = capture.ErrEmptyFrame
	}
	if err != nil {
		out.kind, out.err, out.latency = plog.OutcomeCaptureError, err, time.Since(r.started)
		c.pending.CompareAndSwap(nil, out)
		return
	}
	out.req.Image = img

	a, err := p.Decide(ctx, out.req)
	out.latency = time.Since(r.started)
	switch {
	case err != nil:
		out.kind, out.err = plog.OutcomeProviderError, err
		c.pending.CompareAndSwap(nil, out)
	case a == nil:
		out.kind = plog.OutcomeEmpty
		c.pending.CompareAndSwap(nil, out)
	default:
		out.kind, out.action = plog.OutcomeDecided, a
		c.pending.Store(out)
	}
}

// drain consumes at most one outcome on the tick goroutine.
func (c *Controller) drain(cfg config.Config) {
	out := c.pending.Swap(nil)
	if out == nil {
		return
	}
	c.lastOutcome = out.kind
	entry := plog.RoundEntry{
		Tick:      out.req.Tick,
		RequestID: out.req.ID,
		Mode:      out.mode.String(),
		Provider:  out.provider,
		Outcome:   out.kind,
		LatencyMS: out.latency.Milliseconds(),
		Time:      time.Now(),
	}
	if out.err != nil {
		entry.Error = out.err.Error()
	}

	switch out.kind {
	case plog.OutcomeCaptureError:
		c.logf("capture failed: %v", out.err)
		c.maybeSayOnce(cfg, "Screenshot capture failed: "+out.err.Error())
		// The conversation was never seen; let the next round pick it up.
		if out.consumed && c.usedSeq == out.usedSet {
			c.usedSeq = out.prevUsed
		}
	case plog.OutcomeProviderError:
		c.logf("decision %s failed: %v", out.req.ID, out.err)
		c.maybeSayOnce(cfg, "Agent request failed: "+out.err.Error())
	case plog.OutcomeEmpty:
		c.debugf("decision %s: no action", out.req.ID)
	case plog.OutcomeDecided:
		res := c.apply(*out.action, out.mode)
		entry.Chat, entry.ChatSent = res.Chat, res.ChatSent
		entry.Action = action.Summary(*out.action)
		if n := out.action.Navigation; n.HasRequest() {
			entry.Nav = &[3]int{n.DXOrZero(), n.DYOrZero(), n.DZOrZero()}
		}
	}

	if c.rec != nil {
		if err := c.rec.RecordRound(entry); err != nil {
			c.logf("journal round: %v", err)
		}
	}
}
