package mirror

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestBucket_SignsPut(t *testing.T) {
	b, err := NewBucket(Options{Endpoint: "r2.example.com", Bucket: "voxel", AccessKey: "AKID", SecretKey: "secret"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	var got *http.Request
	var body string
	b.http = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		got = r
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("")), Header: http.Header{}}, nil
	})}

	if err := b.Put(context.Background(), "/sessions//decisions-2024-05-01-10.jsonl.zst", []byte("hello journal")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got.Method != http.MethodPut || got.URL.String() != "https://r2.example.com/voxel/sessions/decisions-2024-05-01-10.jsonl.zst" {
		t.Fatalf("request: %s %s", got.Method, got.URL)
	}
	if body != "hello journal" {
		t.Fatalf("body: %q", body)
	}
	if h := got.Header.Get("x-amz-content-sha256"); h != "252fa500843b227a56da6c1f5b084aab6919bf2dc4be0a42be45f7500a7fc624" {
		t.Fatalf("payload hash: %s", h)
	}
	want := "AWS4-HMAC-SHA256 Credential=AKID/20240501/auto/s3/aws4_request, " +
		"SignedHeaders=host;x-amz-content-sha256;x-amz-date, " +
		"Signature=5be7104f839ef1704d97a8c94c4278e24057960b2c0f0d76dce01765fecc2f7f"
	if a := got.Header.Get("Authorization"); a != want {
		t.Fatalf("authorization:\n got %s\nwant %s", a, want)
	}
}

func TestBucket_StatusErrors(t *testing.T) {
	code := http.StatusForbidden
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		_, _ = io.WriteString(w, "<Error>nope</Error>")
	}))
	defer srv.Close()

	b, err := NewBucket(Options{Endpoint: srv.URL, Bucket: "voxel", AccessKey: "a", SecretKey: "s"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = b.Put(context.Background(), "k", []byte("x"))
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 403 || se.Retryable() || se.Body != "<Error>nope</Error>" {
		t.Fatalf("expected 403 status error, got %v", err)
	}
	code = http.StatusServiceUnavailable
	err = b.Put(context.Background(), "k", []byte("x"))
	if !errors.As(err, &se) || !se.Retryable() {
		t.Fatalf("503 should be retryable: %v", err)
	}
	if err := b.Put(context.Background(), "..", []byte("x")); err == nil {
		t.Fatalf("empty key accepted")
	}
}

func TestNewBucket_Validates(t *testing.T) {
	cases := []Options{
		{Bucket: "b", AccessKey: "a", SecretKey: "s"},
		{Endpoint: "ftp://host", Bucket: "b", AccessKey: "a", SecretKey: "s"},
		{Endpoint: "host", AccessKey: "a", SecretKey: "s"},
	}
	for i, o := range cases {
		if _, err := NewBucket(o); err == nil {
			t.Fatalf("case %d accepted", i)
		}
	}
}

type fakeUploader struct {
	mu    sync.Mutex
	fails map[string]int
	err   error
	keys  []string
	gate  chan struct{}
}

func (f *fakeUploader) PutFile(_ context.Context, key, _ string) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	if f.fails[key] > 0 {
		f.fails[key]--
		return f.err
	}
	return nil
}

func (f *fakeUploader) attempts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

func TestMirror_RetriesTransientFailures(t *testing.T) {
	up := &fakeUploader{
		fails: map[string]int{"steve/a.jsonl.zst": 2, "steve/b.jsonl.zst": 9},
		err:   &StatusError{Code: 500},
	}
	m := New(up, "/steve/", 1, 4, 0, nil)
	m.backoff = func(int) time.Duration { return 0 }
	m.Enqueue(filepath.Join("data", "journal", "a.jsonl.zst"))
	m.Enqueue(filepath.Join("data", "journal", "b.jsonl.zst"))
	m.Close()

	if n := len(up.attempts()); n != 3+maxAttempts {
		t.Fatalf("attempts: %d %v", n, up.attempts())
	}
	s := m.Stats()
	if s.Uploaded != 1 || s.Failed != 1 || s.Enqueued != 2 || s.LastError == "" {
		t.Fatalf("stats: %+v", s)
	}
}

func TestMirror_PermanentFailureIsNotRetried(t *testing.T) {
	up := &fakeUploader{fails: map[string]int{"a": 5}, err: &StatusError{Code: 403}}
	m := New(up, "", 1, 4, 0, nil)
	m.Enqueue("a")
	m.Close()
	if n := len(up.attempts()); n != 1 {
		t.Fatalf("403 retried: %d", n)
	}

	up = &fakeUploader{fails: map[string]int{"gone": 5}, err: os.ErrNotExist}
	m = New(up, "", 1, 4, 0, nil)
	m.Enqueue("gone")
	m.Close()
	if n := len(up.attempts()); n != 1 {
		t.Fatalf("missing file retried: %d", n)
	}
}

func TestMirror_DropsWhenSaturated(t *testing.T) {
	up := &fakeUploader{gate: make(chan struct{})}
	m := New(up, "", 1, 1, time.Millisecond, nil)
	// One file in the worker, one in the queue, the rest are dropped.
	m.Enqueue("1")
	deadline := time.Now().Add(2 * time.Second)
	for len(m.jobs) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	m.Enqueue("2")
	m.Enqueue("3")
	m.Enqueue("4")
	close(up.gate)
	m.Close()

	s := m.Stats()
	if s.Dropped != 2 || s.Uploaded != 2 || s.Enqueued != 4 {
		t.Fatalf("stats: %+v", s)
	}
}

func TestMirror_KeyAndNil(t *testing.T) {
	m := &Mirror{prefix: "runs/steve"}
	if k := m.Key(filepath.Join("data", "journal", "chat-2024-05-01-10.jsonl.zst")); k != "runs/steve/chat-2024-05-01-10.jsonl.zst" {
		t.Fatalf("key: %s", k)
	}
	var nilMirror *Mirror
	nilMirror.Enqueue("x")
	nilMirror.Close()
	if nilMirror.Stats() != (Stats{}) {
		t.Fatalf("nil stats")
	}
}
