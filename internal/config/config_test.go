package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	c := Defaults().Normalize()
	if c.DecisionIntervalTicks != 5 || c.TargetLockRadius != 8 || c.AssistPrimaryReachDistance != 4.5 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.AIChatDedupTicks != 600 || c.AIChatMinIntervalTicks != 60 || c.AIChatRecentLimit != 8 {
		t.Fatalf("unexpected chat defaults: %+v", c)
	}
	if !c.ObserveAnswerOnly || !c.AIAutoReply || !c.AINoRepeatConsecutive || !c.ShowAIPrefix || c.AllowPublicChat {
		t.Fatalf("unexpected flag defaults: %+v", c)
	}
	if c.AIConversationLimit != 30 || c.AILocalEchoWindowTicks != 10 || c.ErrorCooldownTicks != 200 {
		t.Fatalf("unexpected limits: %+v", c)
	}
}

func TestNormalize_Clamps(t *testing.T) {
	c := Config{
		DecisionIntervalTicks:      -3,
		AIConversationLimit:        1,
		AIChatMinIntervalTicks:     -1,
		AssistPrimaryReachDistance: 0.2,
		Provider:                   "  OpenAI ",
	}.Normalize()
	if c.DecisionIntervalTicks != 1 || c.AIConversationLimit != 4 || c.AIChatMinIntervalTicks != 0 {
		t.Fatalf("clamps: %+v", c)
	}
	if c.AssistPrimaryReachDistance != 1 || c.TargetLockRadius != 1 || c.AIChatDedupTicks != 1 {
		t.Fatalf("clamps: %+v", c)
	}
	if c.Provider != "openai" || c.AssistDefaultTag != "minecraft:logs" || c.NavMaxNodes != 15000 {
		t.Fatalf("normalize: %+v", c)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxelmind.yaml")
	raw := "agent_url: http://localhost:8080/v1\ndecision_interval_ticks: 20\nobserve_answer_only: false\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.AgentURL != "http://localhost:8080/v1" || c.DecisionIntervalTicks != 20 || c.ObserveAnswerOnly {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.AIChatDedupTicks != 600 {
		t.Fatalf("unset keys keep defaults: %+v", c)
	}
}

func TestLoad_MissingAndBad(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(filepath.Join(dir, "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if c.DecisionIntervalTicks != 5 {
		t.Fatalf("missing file still yields defaults")
	}

	bad := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(bad, []byte("decision_interval_ticks: [oops"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestLoadOrCreate_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "voxelmind.yaml")
	if _, err := LoadOrCreate(path); err != nil {
		t.Fatalf("create: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if c != Defaults().Normalize() {
		t.Fatalf("written file should round trip to defaults: %+v", c)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAPIKey, "sk-test")
	t.Setenv(EnvModel, "gpt-4o")
	t.Setenv(EnvAgentURL, "")
	c := Config{AgentURL: "http://keep"}.ApplyEnv()
	if c.APIKey != "sk-test" || c.Model != "gpt-4o" || c.AgentURL != "http://keep" {
		t.Fatalf("env: %+v", c)
	}
}

func TestStaticAndHolder(t *testing.T) {
	var s Source = Static(Defaults())
	if s.Current().DecisionIntervalTicks != 5 {
		t.Fatalf("static")
	}
	h := NewHolder(Defaults())
	c := Defaults()
	c.DecisionIntervalTicks = 0
	h.Set(c)
	if h.Current().DecisionIntervalTicks != 1 {
		t.Fatalf("holder should normalize on Set")
	}
}

func TestWatcher_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxelmind.yaml")
	if err := os.WriteFile(path, []byte("decision_interval_ticks: 5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := Watch(path, false, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("decision_interval_ticks: 9\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for w.Current().DecisionIntervalTicks != 9 {
		if time.Now().After(deadline) {
			t.Fatalf("watcher did not pick up change")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if w.Reloads() < 1 {
		t.Fatalf("reload counter not bumped")
	}

	// A broken file keeps the last good settings.
	_ = os.WriteFile(path, []byte("decision_interval_ticks: [\n"), 0o644)
	time.Sleep(400 * time.Millisecond)
	if w.Current().DecisionIntervalTicks != 9 {
		t.Fatalf("bad file should not replace settings")
	}
}
