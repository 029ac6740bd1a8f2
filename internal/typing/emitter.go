package typing

import (
	"sync"
	"time"
)

// Emitter is the sending side of the typing signal: it turns a stream of
// keystrokes into at most one typing:start per burst, and a typing:stop
// when the burst goes idle or a message is sent. The first keystroke emits
// start; every later keystroke only resets the inactivity timer.
type Emitter struct {
	window time.Duration
	start  func()
	stop   func()

	mu     sync.Mutex
	active bool
	timer  *time.Timer
}

func NewEmitter(window time.Duration, start, stop func()) *Emitter {
	if window == 0 {
		window = 2 * time.Second
	}
	return &Emitter{window: window, start: start, stop: stop}
}

func (e *Emitter) Keystroke() {
	e.mu.Lock()
	if e.active {
		e.timer.Reset(e.window)
		e.mu.Unlock()
		return
	}
	e.active = true
	e.timer = time.AfterFunc(e.window, e.idle)
	e.mu.Unlock()

	e.start()
}

// MessageSent flushes the typing state: sending a message ends the burst.
func (e *Emitter) MessageSent() {
	e.finish()
}

func (e *Emitter) idle() {
	e.finish()
}

// Close releases the timer without emitting anything further.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
	}
	e.active = false
}

func (e *Emitter) finish() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	e.timer.Stop()
	e.mu.Unlock()

	e.stop()
}

// Typing reports whether a burst is currently active. Test hook.
func (e *Emitter) Typing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}
