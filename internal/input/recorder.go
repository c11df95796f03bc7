package input

import "sync"

// Recorder is an in-memory Sink. The headless harness reads it from its
// physics step, so it is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	down  [numKeys]bool
	taps  [numKeys]int
	yaw   float32
	pitch float32
}

func (r *Recorder) SetKey(k Key, down bool) {
	if k >= numKeys {
		return
	}
	r.mu.Lock()
	r.down[k] = down
	r.mu.Unlock()
}

func (r *Recorder) TapKey(k Key) {
	if k >= numKeys {
		return
	}
	r.mu.Lock()
	r.taps[k]++
	r.mu.Unlock()
}

func (r *Recorder) SetView(yaw, pitch float32) {
	r.mu.Lock()
	r.yaw, r.pitch = yaw, pitch
	r.mu.Unlock()
}

func (r *Recorder) View() (float32, float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.yaw, r.pitch
}

func (r *Recorder) Down(k Key) bool {
	if k >= numKeys {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.down[k]
}

// Taps returns how many times k was tapped.
func (r *Recorder) Taps(k Key) int {
	if k >= numKeys {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.taps[k]
}

// ConsumeTaps returns and resets the tap count for k.
func (r *Recorder) ConsumeTaps(k Key) int {
	if k >= numKeys {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.taps[k]
	r.taps[k] = 0
	return n
}

// AnyDown reports whether any key is currently down.
func (r *Recorder) AnyDown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.down {
		if d {
			return true
		}
	}
	return false
}
