package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the agent's settings file (voxelmind.yaml).
type Config struct {
	AgentURL string `yaml:"agent_url"`
	Provider string `yaml:"provider"` // "", "stub", "openai", "anthropic", "remote"
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`

	DecisionIntervalTicks int  `yaml:"decision_interval_ticks"`
	Debug                 bool `yaml:"debug"`
	AllowPublicChat       bool `yaml:"allow_public_chat"`
	ShowAIPrefix          bool `yaml:"show_ai_prefix"`

	TargetLockRadius            int     `yaml:"target_lock_radius"`
	AssistOnlyPrimaryWhenAiming bool    `yaml:"assist_only_primary_when_aiming"`
	AssistPrimaryReachDistance  float64 `yaml:"assist_primary_reach_distance"`
	AssistDefaultTag            string  `yaml:"assist_default_tag"`

	AIChatDedupTicks        int  `yaml:"ai_chat_dedup_ticks"`
	AIChatMinIntervalTicks  int  `yaml:"ai_chat_min_interval_ticks"`
	AIChatRecentLimit       int  `yaml:"ai_chat_recent_limit"`
	AIAutoReply             bool `yaml:"ai_auto_reply"`
	AIConversationLimit     int  `yaml:"ai_conversation_limit"`
	ObserveAnswerOnly       bool `yaml:"observe_answer_only"`
	AutoReplyLoose          bool `yaml:"auto_reply_loose"`
	AILocalEchoWindowTicks  int  `yaml:"ai_local_echo_window_ticks"`
	AINoRepeatConsecutive   bool `yaml:"ai_no_repeat_consecutive"`
	ErrorCooldownTicks      int  `yaml:"error_cooldown_ticks"`

	NavHorizontalPad int `yaml:"nav_horizontal_pad"`
	NavVerticalPad   int `yaml:"nav_vertical_pad"`
	NavMaxNodes      int `yaml:"nav_max_nodes"`
}

func Defaults() Config {
	return Config{
		DecisionIntervalTicks: 5,
		ShowAIPrefix:          true,

		TargetLockRadius:            8,
		AssistOnlyPrimaryWhenAiming: true,
		AssistPrimaryReachDistance:  4.5,
		AssistDefaultTag:            "minecraft:logs",

		AIChatDedupTicks:       600,
		AIChatMinIntervalTicks: 60,
		AIChatRecentLimit:      8,
		AIAutoReply:            true,
		AIConversationLimit:    30,
		ObserveAnswerOnly:      true,
		AILocalEchoWindowTicks: 10,
		AINoRepeatConsecutive:  true,
		ErrorCooldownTicks:     200,

		NavHorizontalPad: 64,
		NavVerticalPad:   8,
		NavMaxNodes:      15000,
	}
}

// Normalize clamps values into their usable ranges.
func (c Config) Normalize() Config {
	c.AgentURL = strings.TrimSpace(c.AgentURL)
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Model = strings.TrimSpace(c.Model)
	c.DecisionIntervalTicks = max(1, c.DecisionIntervalTicks)
	c.TargetLockRadius = max(1, c.TargetLockRadius)
	c.AssistPrimaryReachDistance = max(1, c.AssistPrimaryReachDistance)
	if strings.TrimSpace(c.AssistDefaultTag) == "" {
		c.AssistDefaultTag = "minecraft:logs"
	}
	c.AIChatDedupTicks = max(1, c.AIChatDedupTicks)
	c.AIChatMinIntervalTicks = max(0, c.AIChatMinIntervalTicks)
	c.AIChatRecentLimit = max(1, c.AIChatRecentLimit)
	c.AIConversationLimit = max(4, c.AIConversationLimit)
	c.AILocalEchoWindowTicks = max(1, c.AILocalEchoWindowTicks)
	c.ErrorCooldownTicks = max(1, c.ErrorCooldownTicks)
	if c.NavHorizontalPad <= 0 {
		c.NavHorizontalPad = 64
	}
	if c.NavVerticalPad <= 0 {
		c.NavVerticalPad = 8
	}
	if c.NavMaxNodes <= 0 {
		c.NavMaxNodes = 15000
	}
	return c
}

// Load reads path over the defaults. A missing file yields the defaults
// together with an error wrapping os.ErrNotExist.
func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c.Normalize(), err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Defaults().Normalize(), fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return c.Normalize(), nil
}

// LoadOrCreate is Load, writing the defaults when the file does not exist yet.
func LoadOrCreate(path string) (Config, error) {
	c, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, Save(path, c)
	}
	return c, err
}

func Save(path string, c Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

const (
	EnvAPIKey   = "VOXELMIND_API_KEY"
	EnvAgentURL = "VOXELMIND_AGENT_URL"
	EnvModel    = "VOXELMIND_MODEL"
	EnvProvider = "VOXELMIND_PROVIDER"
)

// ApplyEnv overrides connection settings from the environment.
func (c Config) ApplyEnv() Config {
	if v, ok := os.LookupEnv(EnvAPIKey); ok && v != "" {
		c.APIKey = v
	}
	if v, ok := os.LookupEnv(EnvAgentURL); ok && v != "" {
		c.AgentURL = v
	}
	if v, ok := os.LookupEnv(EnvModel); ok && v != "" {
		c.Model = v
	}
	if v, ok := os.LookupEnv(EnvProvider); ok && v != "" {
		c.Provider = v
	}
	return c.Normalize()
}
