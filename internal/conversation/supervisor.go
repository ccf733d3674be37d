package conversation

import (
	"sync"
	"time"
)

// Supervisor owns one cancellable expiry timer per session. Scheduling and
// cancellation are tied to the session's lifetime: the engine schedules on
// creation and only the path that wins the session's removal cancels.
type Supervisor struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewSupervisor creates an empty supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{timers: make(map[string]*time.Timer)}
}

// Schedule arms a single expiry for callID after d. Scheduling twice for
// the same callID replaces the previous timer.
func (sv *Supervisor) Schedule(callID string, d time.Duration, fn func()) {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	if t, ok := sv.timers[callID]; ok {
		t.Stop()
	}
	sv.timers[callID] = time.AfterFunc(d, func() {
		sv.mu.Lock()
		delete(sv.timers, callID)
		sv.mu.Unlock()
		fn()
	})
}

// Cancel stops the pending expiry for callID if one exists. Cancelling an
// unknown or already-fired timer is a no-op.
func (sv *Supervisor) Cancel(callID string) {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	if t, ok := sv.timers[callID]; ok {
		t.Stop()
		delete(sv.timers, callID)
	}
}

// Pending returns the number of armed timers.
func (sv *Supervisor) Pending() int {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return len(sv.timers)
}

// armed lists the callIDs with a pending expiry. The timer set mirrors
// the live sessions, so this doubles as the shutdown sweep list.
func (sv *Supervisor) armed() []string {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	ids := make([]string, 0, len(sv.timers))
	for id := range sv.timers {
		ids = append(ids, id)
	}
	return ids
}
