package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "decisions")
	now := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(RoundEntry{Tick: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(RoundEntry{Tick: 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(dir, "decisions")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{
		filepath.Join(dir, "decisions-2024-05-01-10.jsonl.zst"),
		filepath.Join(dir, "decisions-2024-05-01-11.jsonl.zst"),
	}
	if len(files) != len(want) || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files: %v", files)
	}
}

func TestJSONLZstdWriter_OnSealed(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "chat")
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	var sealed []string
	w.OnSealed(func(path string) { sealed = append(sealed, path) })

	_ = w.Write(ChatEntry{Tick: 1, Text: "a"})
	_ = w.Write(ChatEntry{Tick: 2, Text: "b"})
	if len(sealed) != 0 {
		t.Fatalf("nothing sealed yet: %v", sealed)
	}
	now = now.Add(time.Hour)
	_ = w.Write(ChatEntry{Tick: 3, Text: "c"})
	if len(sealed) != 1 || sealed[0] != filepath.Join(dir, "chat-2024-05-01-10.jsonl.zst") {
		t.Fatalf("rotation seal: %v", sealed)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(sealed) != 2 || sealed[1] != filepath.Join(dir, "chat-2024-05-01-11.jsonl.zst") {
		t.Fatalf("close seal: %v", sealed)
	}
	_ = w.Close()
	if len(sealed) != 2 {
		t.Fatalf("double close sealed again: %v", sealed)
	}
}

func TestDecisionLogger_ReadBack(t *testing.T) {
	dir := t.TempDir()
	l := NewDecisionLogger(dir)
	nav := [3]int{1, 0, -2}
	rounds := []RoundEntry{
		{Tick: 5, RequestID: "a", Mode: "control", Provider: "stub", Outcome: OutcomeDecided, Chat: "hi", ChatSent: true, Nav: &nav},
		{Tick: 10, RequestID: "b", Mode: "control", Provider: "stub", Outcome: OutcomeProviderError, Error: "boom"},
	}
	for _, r := range rounds {
		if err := l.RecordRound(r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := l.RecordChat(ChatEntry{Tick: 5, Role: "ai", Text: "hi"}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen and append: the same hourly file now holds two zstd frames.
	l = NewDecisionLogger(dir)
	if err := l.RecordRound(RoundEntry{Tick: 15, Outcome: OutcomeEmpty}); err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = l.Close()

	var got []RoundEntry
	if err := ReadRounds(dir, func(e RoundEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rounds", len(got))
	}
	if got[0].Nav == nil || *got[0].Nav != nav || !got[0].ChatSent {
		t.Fatalf("first round: %+v", got[0])
	}
	if got[1].Error != "boom" || got[2].Tick != 15 {
		t.Fatalf("rounds: %+v", got)
	}

	chat, _ := ListFiles(dir, "chat")
	if len(chat) != 1 {
		t.Fatalf("chat files: %v", chat)
	}
}

func TestReadRounds_MissingDir(t *testing.T) {
	err := ReadRounds(filepath.Join(t.TempDir(), "nope"), func(RoundEntry) error { return nil })
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist, got %v", err)
	}
}
