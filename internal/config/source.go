package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Source is a read-only view of the current settings. Implementations must
// be safe to call from any goroutine.
type Source interface {
	Current() Config
}

// Static always returns the same settings.
type Static Config

func (s Static) Current() Config { return Config(s) }

// Holder is a Source whose value can be replaced atomically.
type Holder struct {
	v atomic.Pointer[Config]
}

func NewHolder(c Config) *Holder {
	h := &Holder{}
	h.Set(c)
	return h
}

func (h *Holder) Current() Config {
	if c := h.v.Load(); c != nil {
		return *c
	}
	return Defaults().Normalize()
}

func (h *Holder) Set(c Config) {
	c = c.Normalize()
	h.v.Store(&c)
}

const reloadDebounce = 150 * time.Millisecond

// Watcher keeps a Holder in sync with a yaml file. The parent directory is
// watched so editors that replace the file by rename are picked up.
type Watcher struct {
	*Holder

	path    string
	env     bool
	logger  *log.Logger
	watcher *fsnotify.Watcher
	reloads atomic.Int64

	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Watch loads path and starts watching it. When env is set, ApplyEnv is
// applied after every reload.
func Watch(path string, env bool, logger *log.Logger) (*Watcher, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if env {
		c = c.ApplyEnv()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	w := &Watcher{
		Holder:  NewHolder(c),
		path:    filepath.Clean(path),
		env:     env,
		logger:  logger,
		watcher: fw,
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Reloads counts successful reloads since Watch.
func (w *Watcher) Reloads() int64 { return w.reloads.Load() }

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logf("config watch error: %v", err)
		case <-w.closeCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		// Keep the last good settings.
		w.logf("config reload %s: %v", w.path, err)
		return
	}
	if w.env {
		c = c.ApplyEnv()
	}
	w.Set(c)
	w.reloads.Add(1)
	w.logf("config reloaded from %s", w.path)
}

func (w *Watcher) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}
