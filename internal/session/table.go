package session

import (
	"sync"
	"time"
)

type Mode string

const (
	ModeActive Mode = "active"
	ModeIdle   Mode = "idle"
)

// State is one user's session: the binding of that user to a live or
// recently-live sandbox container.
type State struct {
	User        string
	ProjectID   int64
	ContainerID string
	Mode        Mode

	// Generation increments on every mode transition. An eviction timer
	// captures the generation it was armed for and is a no-op if the entry
	// has transitioned since.
	Generation uint64

	evict *time.Timer
}

// Table is the authoritative map from user to session state. At most one
// entry exists per user. All check-then-act sequences on an entry happen
// under the table mutex; callers never hold it across engine calls.
type Table struct {
	mu      sync.Mutex
	entries map[string]*State
}

func NewTable() *Table {
	return &Table{entries: make(map[string]*State)}
}

// Get returns a copy of the user's state, if any.
func (t *Table) Get(user string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.entries[user]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// InsertActive records a brand-new Active session, overwriting any prior
// entry. The caller is responsible for having ended the prior one first.
func (t *Table) InsertActive(user string, projectID int64, containerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var gen uint64
	if prev, ok := t.entries[user]; ok {
		stopTimer(prev)
		gen = prev.Generation + 1
	}
	t.entries[user] = &State{
		User:        user,
		ProjectID:   projectID,
		ContainerID: containerID,
		Mode:        ModeActive,
		Generation:  gen,
	}
}

// SetIdle transitions Active → Idle and returns the new generation. The
// caller arms an eviction timer for that generation and attaches it with
// AttachEvictTimer. No-op if the user has no Active entry.
func (t *Table) SetIdle(user string) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.entries[user]
	if !ok || st.Mode != ModeActive {
		return 0, false
	}
	st.Mode = ModeIdle
	st.Generation++
	return st.Generation, true
}

// AttachEvictTimer stores the timer for an Idle entry. Returns false — and
// the caller must stop the timer — if the entry has already transitioned
// away from the generation the timer was armed for.
func (t *Table) AttachEvictTimer(user string, gen uint64, timer *time.Timer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.entries[user]
	if !ok || st.Mode != ModeIdle || st.Generation != gen {
		return false
	}
	st.evict = timer
	return true
}

// SetActive transitions Idle → Active, cancelling the eviction timer.
// No-op if the user's entry is not Idle.
func (t *Table) SetActive(user string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.entries[user]
	if !ok || st.Mode != ModeIdle {
		return false
	}
	stopTimer(st)
	st.Mode = ModeActive
	st.Generation++
	return true
}

// IsIdleAt reports whether the user's entry is still Idle at the given
// generation. A fired timer calls this to detect that it lost the race to a
// reactivation.
func (t *Table) IsIdleAt(user string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.entries[user]
	return ok && st.Mode == ModeIdle && st.Generation == gen
}

// Remove deletes and returns the user's entry, stopping any pending timer.
func (t *Table) Remove(user string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.entries[user]
	if !ok {
		return State{}, false
	}
	stopTimer(st)
	delete(t.entries, user)
	return *st, true
}

// HasContainer reports whether any entry references the container.
func (t *Table) HasContainer(containerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, st := range t.entries {
		if st.ContainerID == containerID {
			return true
		}
	}
	return false
}

// Drain removes every entry, stopping all timers, and returns the states.
// Used only by the shutdown sweep.
func (t *Table) Drain() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	states := make([]State, 0, len(t.entries))
	for user, st := range t.entries {
		stopTimer(st)
		states = append(states, *st)
		delete(t.entries, user)
	}
	return states
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func stopTimer(st *State) {
	if st.evict != nil {
		st.evict.Stop()
		st.evict = nil
	}
}
