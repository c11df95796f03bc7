// Package agent runs the decision loop: it schedules decision rounds on the
// tick goroutine, applies the returned actions and keeps the chat history.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"voxelmind.ai/internal/action"
	"voxelmind.ai/internal/capture"
	"voxelmind.ai/internal/config"
	"voxelmind.ai/internal/input"
	"voxelmind.ai/internal/nav"
	plog "voxelmind.ai/internal/persistence/log"
	"voxelmind.ai/internal/provider"
	"voxelmind.ai/internal/targeting"
	"voxelmind.ai/internal/voxel"
)

const (
	noticePrefix      = "[VoxelMind] "
	aiPrefix          = "[AI] "
	heartbeatTicks    = 200
	minAutoReplyTicks = 40
)

var autoReplyKeywords = []string{"ai", "bot", "你是谁", "帮助", "helper", "assist", "助手"}

// Avatar is the controlled player as the host sees it this tick.
type Avatar struct {
	Name      string
	EntityID  int
	Feet      voxel.Vec3
	Dimension string
	Biome     string
}

// Host is the game side of the controller. All methods are called from the
// tick goroutine.
type Host interface {
	GameTime() int64
	Avatar() Avatar
	World() voxel.World
	SendChat(text string, public bool)
	Notify(text string)
}

// Recorder receives finished rounds and conversation lines.
type Recorder interface {
	RecordRound(plog.RoundEntry) error
	RecordChat(plog.ChatEntry) error
}

// Recorders fans out to every recorder and returns the first error.
type Recorders []Recorder

func (rs Recorders) RecordRound(e plog.RoundEntry) error {
	var first error
	for _, r := range rs {
		if err := r.RecordRound(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (rs Recorders) RecordChat(e plog.ChatEntry) error {
	var first error
	for _, r := range rs {
		if err := r.RecordChat(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Deps wires a Controller. Provider is used as is when NewProvider is nil;
// with NewProvider set the provider is rebuilt whenever its settings change.
type Deps struct {
	Host        Host
	Sink        input.Sink
	Capturer    capture.Capturer
	Config      config.Source
	Provider    provider.Provider
	NewProvider func(config.Config, *log.Logger) (provider.Provider, error)
	Recorder    Recorder
	Logger      *log.Logger
}

// Controller is owned by the tick goroutine. Only inFlight and pending are
// touched by round workers.
type Controller struct {
	host     Host
	input    *input.Applier
	capturer capture.Capturer
	cfg      config.Source
	rec      Recorder
	log      *log.Logger

	newProvider func(config.Config, *log.Logger) (provider.Provider, error)
	prov        provider.Provider
	provKey     string

	ctx    context.Context
	cancel context.CancelFunc

	inFlight atomic.Bool
	pending  atomic.Pointer[outcome]

	mode        Mode
	counter     int64
	observeInit bool

	conv       *Conversation
	humanSeq   int64
	usedSeq    int64
	gate       chatGate
	lastReply  int64
	lastError  int64
	errorShown bool

	navigator *nav.Navigator
	navMoving bool
	stepped   bool
	target    *action.Target
	cache     targeting.Cache

	lastOutcome string
}

func New(d Deps) (*Controller, error) {
	if d.Host == nil || d.Sink == nil || d.Capturer == nil || d.Config == nil {
		return nil, errors.New("agent: host, sink, capturer and config are required")
	}
	cfg := d.Config.Current()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		host:        d.Host,
		input:       input.NewApplier(d.Sink),
		capturer:    d.Capturer,
		cfg:         d.Config,
		rec:         d.Recorder,
		log:         d.Logger,
		newProvider: d.NewProvider,
		prov:        d.Provider,
		ctx:         ctx,
		cancel:      cancel,
		conv:        NewConversation(cfg.AIConversationLimit),
		lastReply:   -1 << 40,
	}
	if c.prov == nil {
		if c.newProvider == nil {
			c.newProvider = provider.New
		}
		p, err := c.newProvider(cfg, c.log)
		if err != nil {
			cancel()
			return nil, err
		}
		c.prov = p
	}
	if c.newProvider != nil {
		c.provKey = provider.Fingerprint(cfg)
	}
	c.navigator = nav.NewNavigator(nil)
	return c, nil
}

func limitsOf(cfg config.Config) nav.Limits {
	return nav.Limits{
		HorizontalPad: cfg.NavHorizontalPad,
		VerticalPad:   cfg.NavVerticalPad,
		MaxNodes:      cfg.NavMaxNodes,
	}
}

// Close releases held input and stops scheduling. Rounds already running
// see a cancelled context.
func (c *Controller) Close() {
	c.cancel()
	c.input.ReleaseAll()
	if cl, ok := c.prov.(io.Closer); ok {
		_ = cl.Close()
	}
}

func (c *Controller) Mode() Mode { return c.mode }

// InFlight reports whether a round is outstanding.
func (c *Controller) InFlight() bool { return c.inFlight.Load() }

func (c *Controller) SetMode(next Mode) {
	prev := c.mode
	cl := Transition(prev, next)
	c.mode = next
	if cl.ReleaseInputs {
		c.input.ReleaseAll()
		c.navMoving = false
	}
	if cl.CancelPlan {
		c.navigator.Cancel()
	}
	if cl.ClearTarget {
		c.target = nil
		c.cache.Clear()
	}
	if cl.DiscardPending {
		c.pending.Store(nil)
	}
	if cl.ForceDecision {
		c.observeInit = true
		c.notify("Observe mode enabled. Waiting for chat or interval.")
	}
	if prev != next {
		c.debugf("mode %s -> %s", prev, next)
	}
}

// Tick advances the loop by one game tick.
func (c *Controller) Tick() {
	if c.mode == Disabled {
		return
	}
	cfg := c.cfg.Current()
	c.stepped = false
	if cfg.Debug && c.counter%heartbeatTicks == 0 {
		c.logf("heartbeat mode=%s inFlight=%v convo=%d observeInit=%v", c.mode, c.inFlight.Load(), c.conv.Len(), c.observeInit)
	}
	c.refresh(cfg)
	c.drain(cfg)

	c.counter++
	runNow := c.counter%int64(max(1, cfg.DecisionIntervalTicks)) == 0
	if c.mode == Observe {
		if c.observeInit {
			runNow = true
		} else if c.conv.Len() > 0 && c.humanSeq <= c.usedSeq {
			runNow = false
		}
	}
	if runNow {
		c.startRound(cfg)
	}

	if c.mode == Control {
		c.followPath()
		c.autoAim(cfg)
		c.applyMouse(cfg, action.Mouse{})
	}
}

// TriggerDecisionNow starts a round unless one is already running.
func (c *Controller) TriggerDecisionNow() bool {
	if c.mode == Disabled {
		return false
	}
	return c.startRound(c.cfg.Current())
}

// refresh applies settings that can change between ticks.
func (c *Controller) refresh(cfg config.Config) {
	c.conv.SetLimit(cfg.AIConversationLimit)
	if c.newProvider == nil {
		return
	}
	key := provider.Fingerprint(cfg)
	if key == c.provKey {
		return
	}
	c.provKey = key
	p, err := c.newProvider(cfg, c.log)
	if err != nil {
		c.logf("provider: %v", err)
		c.maybeSayOnce(cfg, "Agent settings invalid: "+err.Error())
		return
	}
	old := c.prov
	c.prov = p
	if cl, ok := old.(io.Closer); ok {
		// A running round may still hold the old provider.
		go func() { _ = cl.Close() }()
	}
	c.notify("Agent switched to " + p.Name())
}

// SayToAI adds a line typed by the local player.
func (c *Controller) SayToAI(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	name := c.host.Avatar().Name
	if name == "" {
		name = "player"
	}
	c.addConversation(RoleUser, name, text)
}

// OnPlayerChat feeds a chat line seen in game. local marks lines from the
// controlled player.
func (c *Controller) OnPlayerChat(sender, text string, local bool) {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "[AI]") {
		return
	}
	cfg := c.cfg.Current()
	now := c.host.GameTime()
	if local && c.gate.ownEcho(text, now, cfg.AILocalEchoWindowTicks) {
		c.debugf("ignoring own AI message echoed locally: %s", text)
		return
	}
	role := RoleOther
	if local {
		role = RoleUser
	}
	c.addConversation(role, sender, text)

	if !cfg.AIAutoReply || c.mode == Disabled {
		return
	}
	cooldown := int64(max(2*cfg.AIChatMinIntervalTicks, minAutoReplyTicks))
	if now-c.lastReply < cooldown || !c.shouldAutoReply(cfg, text, local) {
		return
	}
	c.lastReply = now
	c.TriggerDecisionNow()
}

func (c *Controller) shouldAutoReply(cfg config.Config, msg string, local bool) bool {
	if cfg.AutoReplyLoose {
		return true
	}
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "[ai]") {
		return false
	}
	for _, k := range autoReplyKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return local && c.mode == Control
}

func (c *Controller) addConversation(role, sender, text string) {
	now := c.host.GameTime()
	c.conv.Add(Entry{Role: role, Sender: sender, Text: text, Tick: now})
	if role != RoleAI {
		c.humanSeq++
	}
	if c.rec != nil {
		if err := c.rec.RecordChat(plog.ChatEntry{Tick: now, Role: role, Sender: sender, Text: text, Time: time.Now()}); err != nil {
			c.logf("journal chat: %v", err)
		}
	}
}

// ConversationSnapshot renders the newest n conversation lines.
func (c *Controller) ConversationSnapshot(n int) string { return c.conv.Snapshot(n) }

func (c *Controller) ClearConversation() { c.conv.Clear() }

func (c *Controller) conversationContext(cfg config.Config) string {
	return c.conv.Context(cfg.ObserveAnswerOnly && c.mode == Observe)
}

// ShouldAllowAIChat reports whether msg may be emitted at tick now. It has
// no side effects beyond pruning expired history.
func (c *Controller) ShouldAllowAIChat(msg string, now int64) bool {
	return c.gate.allow(msg, now, c.gateLimits(c.cfg.Current()))
}

func (c *Controller) gateLimits(cfg config.Config) gateLimits {
	return gateLimits{
		dedup:       cfg.AIChatDedupTicks,
		minInterval: cfg.AIChatMinIntervalTicks,
		recentLimit: cfg.AIChatRecentLimit,
		noRepeat:    cfg.AINoRepeatConsecutive,
		lastHumanAt: c.conv.LastHumanTick(),
	}
}

// maybeSayOnce posts a diagnostic unless one was posted within the cooldown.
func (c *Controller) maybeSayOnce(cfg config.Config, msg string) {
	now := c.host.GameTime()
	if c.errorShown && now-c.lastError <= int64(cfg.ErrorCooldownTicks) {
		return
	}
	c.errorShown = true
	c.lastError = now
	c.notify(msg)
}

func (c *Controller) notify(msg string) { c.host.Notify(noticePrefix + msg) }

func (c *Controller) logf(format string, args ...any) {
	if c.log != nil {
		c.log.Printf(format, args...)
	}
}

func (c *Controller) debugf(format string, args ...any) {
	if c.log != nil && c.cfg.Current().Debug {
		c.log.Printf(format, args...)
	}
}

// Status is a point-in-time view for front ends.
type Status struct {
	Mode          Mode
	InFlight      bool
	Pending       bool
	Conversation  int
	PlanRemaining int
	NavState      nav.State
	Waypoint      *voxel.Pos // next unreached plan node
	Target        string
	Locked        *voxel.Pos // cell the block target resolved to
	Provider      string
	Ticks         int64
	LastOutcome   string
}

func (c *Controller) Status() Status {
	st := Status{
		Mode:          c.mode,
		InFlight:      c.inFlight.Load(),
		Pending:       c.pending.Load() != nil,
		Conversation:  c.conv.Len(),
		PlanRemaining: c.navigator.Remaining(),
		NavState:      c.navigator.State(),
		Target:        describeTarget(c.target),
		Provider:      c.prov.Name(),
		Ticks:         c.counter,
		LastOutcome:   c.lastOutcome,
	}
	if plan := c.navigator.Plan(); len(plan) > 0 {
		p := plan[0].Pos
		st.Waypoint = &p
	}
	if p, ok := c.cache.Get(); ok && c.target != nil {
		st.Locked = &p
	}
	return st
}

func describeTarget(t *action.Target) string {
	if t == nil {
		return ""
	}
	var parts []string
	if t.HasPos() {
		parts = append(parts, fmt.Sprintf("pos=%d,%d,%d", *t.X, *t.Y, *t.Z))
	}
	for _, f := range []struct {
		k string
		v *string
	}{{"block", t.BlockID}, {"tag", t.BlockTag}, {"entity", t.EntityType}, {"name", t.EntityName}} {
		if f.v != nil {
			parts = append(parts, f.k+"="+*f.v)
		}
	}
	return strings.Join(parts, " ")
}
