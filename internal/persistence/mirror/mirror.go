package mirror

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Uploader is the part of Bucket the Mirror needs.
type Uploader interface {
	PutFile(ctx context.Context, key, localPath string) error
}

// Stats is a point-in-time view of the upload queue.
type Stats struct {
	Queued    int
	Capacity  int
	Enqueued  uint64
	Dropped   uint64
	Uploaded  uint64
	Failed    uint64
	LastError string
}

const (
	maxAttempts   = 4
	attemptWindow = 2 * time.Minute
)

// Mirror uploads sealed journal files in the background. Enqueue never
// blocks longer than the configured wait, so it is safe to call from the
// journal writer's lock.
type Mirror struct {
	up     Uploader
	prefix string
	log    *log.Logger

	jobs    chan string
	wait    time.Duration
	backoff func(attempt int) time.Duration
	wg      sync.WaitGroup
	closing sync.Once

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	uploaded atomic.Uint64
	failed   atomic.Uint64
	lastErr  atomic.Pointer[string]
}

// New starts workers uploading to up. Keys are prefix/<file name>.
func New(up Uploader, prefix string, workers, capacity int, wait time.Duration, logger *log.Logger) *Mirror {
	workers = max(1, workers)
	if capacity <= 0 {
		capacity = 256
	}
	if wait <= 0 {
		wait = 25 * time.Millisecond
	}
	m := &Mirror{
		up:     up,
		prefix: strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		log:    logger,
		jobs:   make(chan string, capacity),
		wait:   wait,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * 250 * time.Millisecond
		},
	}
	for range workers {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

func (m *Mirror) worker() {
	defer m.wg.Done()
	for p := range m.jobs {
		m.upload(p)
	}
}

// Enqueue schedules localPath for upload. It drops the file when the queue
// stays full for the configured wait.
func (m *Mirror) Enqueue(localPath string) {
	if m == nil || localPath == "" {
		return
	}
	m.enqueued.Add(1)
	select {
	case m.jobs <- localPath:
		return
	default:
	}
	t := time.NewTimer(m.wait)
	defer t.Stop()
	select {
	case m.jobs <- localPath:
	case <-t.C:
		n := m.dropped.Add(1)
		m.printf("mirror drop file=%s queue_full dropped_total=%d", localPath, n)
	}
}

// Close drains the queue and waits for in-flight uploads.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	m.closing.Do(func() { close(m.jobs) })
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	s := Stats{
		Queued:   len(m.jobs),
		Capacity: cap(m.jobs),
		Enqueued: m.enqueued.Load(),
		Dropped:  m.dropped.Load(),
		Uploaded: m.uploaded.Load(),
		Failed:   m.failed.Load(),
	}
	if p := m.lastErr.Load(); p != nil {
		s.LastError = *p
	}
	return s
}

// Key is the object key for localPath.
func (m *Mirror) Key(localPath string) string {
	name := filepath.Base(filepath.Clean(localPath))
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

func (m *Mirror) upload(localPath string) {
	key := m.Key(localPath)
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), attemptWindow)
		err = m.up.PutFile(ctx, key, localPath)
		cancel()
		if err == nil || !retryable(err) {
			break
		}
		if attempt < maxAttempts {
			time.Sleep(m.backoff(attempt))
		}
	}
	if err != nil {
		m.failed.Add(1)
		msg := err.Error()
		m.lastErr.Store(&msg)
		m.printf("mirror upload failed key=%s err=%v", key, err)
		return
	}
	m.uploaded.Add(1)
	m.printf("mirror uploaded key=%s", key)
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return !errors.Is(err, fs.ErrNotExist)
}

func (m *Mirror) printf(format string, args ...any) {
	if m.log != nil {
		m.log.Printf(format, args...)
	}
}
