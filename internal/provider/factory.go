package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"voxelmind.ai/internal/config"
)

const (
	KindStub      = "stub"
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindRemote    = "remote"
)

// Kind reports which provider New would build for cfg.
func Kind(cfg config.Config) string {
	url := strings.ToLower(strings.TrimSpace(cfg.AgentURL))
	isWS := strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://")
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case KindStub:
		return KindStub
	case KindRemote:
		return KindRemote
	case KindAnthropic:
		return KindAnthropic
	case KindOpenAI:
		return KindOpenAI
	}
	switch {
	case url == "":
		return KindStub
	case isWS:
		return KindRemote
	}
	return KindOpenAI
}

// Fingerprint changes whenever a setting that affects the built provider
// changes. It is safe to log.
func Fingerprint(cfg config.Config) string {
	sum := sha256.Sum256([]byte(cfg.APIKey))
	return fmt.Sprintf("%s|%s|%s|%s", Kind(cfg), strings.TrimSpace(cfg.AgentURL), cfg.Model, hex.EncodeToString(sum[:4]))
}

// New builds the provider selected by cfg.
func New(cfg config.Config, logger *log.Logger) (Provider, error) {
	url := strings.TrimSpace(cfg.AgentURL)
	switch Kind(cfg) {
	case KindStub:
		return &Stub{}, nil
	case KindRemote:
		if url == "" {
			return nil, fmt.Errorf("provider: remote needs agent_url")
		}
		return NewRemote(url, "voxelmind", cfg.APIKey, cfg.Debug, logger), nil
	case KindAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("provider: anthropic needs api_key")
		}
		return NewAnthropic(url, cfg.APIKey, cfg.Model, cfg.Debug, logger), nil
	default:
		return NewOpenAI(url, cfg.APIKey, cfg.Model, cfg.Debug, logger), nil
	}
}
