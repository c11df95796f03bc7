package agent

import (
	"voxelmind.ai/internal/action"
	"voxelmind.ai/internal/config"
	"voxelmind.ai/internal/input"
	"voxelmind.ai/internal/nav"
	"voxelmind.ai/internal/targeting"
)

// Applied reports what Apply did with a decision.
type Applied struct {
	Chat       string
	ChatSent   bool
	NavStarted bool
}

// Apply executes a decision made in the current mode on the tick goroutine.
// Chat is handled in every active mode; movement, aim and mouse only in
// Control.
func (c *Controller) Apply(a action.Action) Applied {
	return c.apply(a, c.mode)
}

// apply enacts movement, aim and mouse only when the round was started in
// Control and the controller is still in Control.
func (c *Controller) apply(a action.Action, made Mode) Applied {
	cfg := c.cfg.Current()
	var res Applied
	if text, ok := a.Chat.Text(); ok {
		res.Chat, res.ChatSent = c.emitChat(cfg, text)
	}
	if c.mode != Control || made != Control {
		if c.mode == Control {
			c.debugf("decision from %s round not enacted", made)
		}
		return res
	}

	if n := a.Navigation; n.HasRequest() {
		origin := c.host.Avatar().Feet.Floor()
		c.navigator.SetPlanner(nav.NewPlanner(c.host.World(), limitsOf(cfg)))
		res.NavStarted = c.navigator.Start(origin, n.DXOrZero(), n.DYOrZero(), n.DZOrZero())
		c.debugf("nav start from %v by (%d,%d,%d): %v", origin, n.DXOrZero(), n.DYOrZero(), n.DZOrZero(), res.NavStarted)
	}
	if a.Target != nil {
		c.cache.Clear()
		if t := *a.Target; t.HasEntity() || t.HasBlock() {
			c.target = &t
		} else {
			c.target = nil
		}
	}
	c.autoAim(cfg)
	c.followPath()
	c.applyMouse(cfg, a.Mouse)
	return res
}

// emitChat sanitizes and gates one AI line, then sends it.
func (c *Controller) emitChat(cfg config.Config, text string) (string, bool) {
	s := SanitizeChat(text)
	if s.Text == "" {
		return "", false
	}
	if s.Changed {
		c.debugf("chat sanitized, removed %d", s.Removed)
	}
	now := c.host.GameTime()
	lim := c.gateLimits(cfg)
	if !c.gate.allow(s.Text, now, lim) {
		c.debugf("chat suppressed: %q", s.Text)
		return s.Text, false
	}
	out := s.Text
	if cfg.ShowAIPrefix {
		out = aiPrefix + out
	}
	c.host.SendChat(out, cfg.AllowPublicChat)
	c.gate.record(s.Text, now, lim)
	c.addConversation(RoleAI, "AI", s.Text)
	return s.Text, true
}

// followPath runs at most one navigator step per tick. When the plan ends
// the movement keys it was holding are lifted.
func (c *Controller) followPath() {
	if c.stepped {
		return
	}
	c.stepped = true
	st, ok := c.navigator.ProduceStep(c.host.Avatar().Feet)
	if !ok {
		if c.navMoving {
			c.input.ApplyMovement(action.Movement{})
			c.navMoving = false
		}
		return
	}
	c.input.ApplyView(action.View{YawAbs: action.Float(st.Yaw)})
	c.input.ApplyMovement(st.Movement)
	c.navMoving = true
}

// autoAim points the camera at the locked target. The path owns the yaw
// while a plan is running.
func (c *Controller) autoAim(cfg config.Config) {
	if c.target == nil || c.navigator.Active() {
		return
	}
	av := c.host.Avatar()
	eye := targeting.Eye(av.Feet)
	r := &targeting.Resolver{World: c.host.World(), Radius: cfg.TargetLockRadius}
	t := *c.target
	if t.HasEntity() {
		if e, ok := r.ResolveEntity(av.Feet, t, av.EntityID); ok {
			c.input.ApplyView(targeting.ViewTo(eye, e.HeadPoint()))
		}
		return
	}
	if p, ok := c.cache.Resolve(r, eye, av.Feet, t); ok {
		c.input.ApplyView(targeting.ViewTo(eye, p.Center()))
	}
}

// applyMouse gates the primary button: off target, a press becomes a
// release and a button still held from an earlier decision is lifted.
func (c *Controller) applyMouse(cfg config.Config, m action.Mouse) {
	pressing := m.Left == action.PressTap || m.Left == action.PressHold
	held := m.Left == action.PressNone && c.input.Held(input.Primary)
	if (pressing || held) && cfg.AssistOnlyPrimaryWhenAiming && !c.primaryAllowed(cfg) {
		c.debugf("primary %s blocked: crosshair not on a target", m.Left)
		m.Left = action.PressRelease
	}
	c.input.ApplyMouse(m)
}

// primaryAllowed reports whether the crosshair rests on the locked target,
// or on a default interactable block when nothing is locked.
func (c *Controller) primaryAllowed(cfg config.Config) bool {
	av := c.host.Avatar()
	w := c.host.World()
	eye := targeting.Eye(av.Feet)
	reach := cfg.AssistPrimaryReachDistance

	yaw, pitch := c.input.Sink().View()
	if c.target != nil && c.target.HasEntity() {
		r := &targeting.Resolver{World: w, Radius: cfg.TargetLockRadius}
		_, ok := r.SightedEntity(eye, yaw, pitch, reach, *c.target, av.EntityID)
		return ok
	}
	hit, ok := targeting.Raycast(w, eye, yaw, pitch, reach)
	if !ok {
		return false
	}
	if c.target != nil {
		return targeting.Matches(w, *c.target, hit.Pos)
	}
	return hit.Block.HasTag(cfg.AssistDefaultTag)
}
