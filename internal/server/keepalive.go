package server

import (
	"sync"
	"time"
)

// keepalive drops the editor connection after a sliding idle window with no
// requests. The next request reattaches through the recovery protocol, so an
// evicted connection costs one reconnect, never an error.
type keepalive struct {
	mu       sync.Mutex
	timeout  time.Duration
	reset    func()
	timer    *time.Timer
	timerID  uint64
	nextID   uint64
	inFlight int
}

func newKeepalive(timeout time.Duration, reset func()) *keepalive {
	return &keepalive{timeout: timeout, reset: reset}
}

// Begin marks the start of an in-flight request. Any pending idle timer is
// cancelled so a long-running request is never evicted under itself.
func (k *keepalive) Begin() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.timer != nil {
		k.timer.Stop()
		k.timer = nil
	}
	k.inFlight++
}

// End marks completion of an in-flight request. The idle timer starts only
// after the final in-flight request completes.
func (k *keepalive) End() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.inFlight > 1 {
		k.inFlight--
		return
	}
	k.inFlight = 0
	k.startTimerLocked()
}

func (k *keepalive) startTimerLocked() {
	if k.timer != nil {
		k.timer.Stop()
	}

	k.nextID++
	id := k.nextID
	k.timerID = id
	k.timer = time.AfterFunc(k.timeout, func() {
		k.expire(id)
	})
}

func (k *keepalive) expire(id uint64) {
	k.mu.Lock()
	if k.timerID != id || k.inFlight > 0 {
		k.mu.Unlock()
		return
	}
	k.timer = nil
	k.mu.Unlock()

	if k.reset != nil {
		k.reset()
	}
}

// Stop cancels any pending idle timer.
func (k *keepalive) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.timer != nil {
		k.timer.Stop()
		k.timer = nil
	}
	k.inFlight = 0
}
