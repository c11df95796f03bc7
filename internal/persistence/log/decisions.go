package log

import (
	"encoding/json"
	"path/filepath"
	"time"
)

// Round outcomes.
const (
	OutcomeDecided       = "decided"
	OutcomeEmpty         = "empty"
	OutcomeCaptureError  = "capture_error"
	OutcomeProviderError = "provider_error"
)

// RoundEntry is one finished decision round as seen by the tick thread.
type RoundEntry struct {
	Tick      int64          `json:"tick"`
	RequestID string         `json:"request_id"`
	Mode      string         `json:"mode"`
	Provider  string         `json:"provider"`
	Outcome   string         `json:"outcome"`
	Error     string         `json:"error,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
	Chat      string         `json:"chat,omitempty"`
	ChatSent  bool           `json:"chat_sent,omitempty"`
	Nav       *[3]int        `json:"nav,omitempty"`
	Action    map[string]any `json:"action,omitempty"`
	Time      time.Time      `json:"time"`
}

// ChatEntry is one conversation line.
type ChatEntry struct {
	Tick   int64     `json:"tick"`
	Role   string    `json:"role"`
	Sender string    `json:"sender,omitempty"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
}

// DecisionLogger journals rounds and conversation lines under dir.
type DecisionLogger struct {
	rounds *JSONLZstdWriter
	chat   *JSONLZstdWriter
}

func NewDecisionLogger(dir string) *DecisionLogger {
	return &DecisionLogger{
		rounds: NewJSONLZstdWriter(dir, "decisions"),
		chat:   NewJSONLZstdWriter(dir, "chat"),
	}
}

// OnSealed forwards finished journal files of both streams to fn.
func (l *DecisionLogger) OnSealed(fn func(path string)) {
	l.rounds.OnSealed(fn)
	l.chat.OnSealed(fn)
}

func (l *DecisionLogger) RecordRound(e RoundEntry) error { return l.rounds.Write(e) }
func (l *DecisionLogger) RecordChat(e ChatEntry) error   { return l.chat.Write(e) }

func (l *DecisionLogger) Close() error {
	err := l.rounds.Close()
	if cerr := l.chat.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadRounds decodes every round in the decisions files under dir.
func ReadRounds(dir string, fn func(RoundEntry) error) error {
	files, err := ListFiles(dir, "decisions")
	if err != nil {
		return err
	}
	for _, path := range files {
		err := ReadLines(path, func(line []byte) error {
			var e RoundEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			return fn(e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Dir is the conventional journal directory inside a data dir.
func Dir(dataDir string) string { return filepath.Join(dataDir, "journal") }
