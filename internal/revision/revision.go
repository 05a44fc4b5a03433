// Package revision tracks the lifecycle of one in-progress or completed
// mirror attempt: timestamps, progress, terminal status, and error.
package revision

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Status is a Revision's lifecycle state.
type Status int

const (
	// New is the state of a freshly constructed Revision, before any update
	// has ever run against it.
	New Status = iota
	Preparation
	Transition
	Purge
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case New:
		return "NEW"
	case Preparation:
		return "PREPARATION"
	case Transition:
		return "TRANSITION"
	case Purge:
		return "PURGE"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ErrCancelled marks a Revision that failed because its update was
// cancelled via context rather than because of a worker or I/O error.
var ErrCancelled = errors.New("update cancelled")

var errInvalidTransition = errors.New("invalid revision transition")

// Snapshot is an immutable, comparable view of a Revision at a point in
// time, safe to hand to callers outside the engine's lock.
type Snapshot struct {
	Status   Status
	Progress *int // nil unless Status == Preparation
	StartTS  *int64
	EndTS    *int64
	Err      error
}

// IsIdle reports whether a Revision in this state can accept a new update:
// NEW, COMPLETED, and FAILED are all idle/terminal-or-initial states.
func (s Snapshot) IsIdle() bool {
	switch s.Status {
	case New, Completed, Failed:
		return true
	default:
		return false
	}
}

// Revision is the mutable lifecycle record of the most recent mirror
// attempt. The zero value is a valid Revision in state New.
//
// Revision is safe for concurrent use; all mutation and reads go through
// its internal mutex, matching the "single logical mutex" shared-state
// model described for the engine's process-wide state.
type Revision struct {
	mu       sync.Mutex
	status   Status
	progress *int
	startTS  *int64
	endTS    *int64
	err      error
}

// Snapshot returns the current state as an immutable value.
func (r *Revision) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		Status:   r.status,
		Progress: r.progress,
		StartTS:  r.startTS,
		EndTS:    r.endTS,
		Err:      r.err,
	}
}

// Status returns the current status only, without allocating a Snapshot.
func (r *Revision) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.status
}

// Reset returns the Revision to state New, discarding all prior progress,
// timestamps, and error. Used when a new update() call claims an idle
// Revision.
func (r *Revision) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status = New
	r.progress = nil
	r.startTS = nil
	r.endTS = nil
	r.err = nil
}

// IndicateStarted transitions New -> Preparation and records start_ts.
func (r *Revision) IndicateStarted(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != New {
		return fmt.Errorf("%w: IndicateStarted from %s", errInvalidTransition, r.status)
	}

	ts := now.Unix()
	r.status = Preparation
	r.startTS = &ts
	zero := 0
	r.progress = &zero

	return nil
}

// IndicatePreparedCount updates progress to floor(100*prepared/total) while
// in Preparation. progress is monotone non-decreasing by construction: the
// caller is expected to pass a monotone non-decreasing prepared count.
func (r *Revision) IndicatePreparedCount(prepared, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != Preparation {
		return fmt.Errorf("%w: IndicatePreparedCount from %s", errInvalidTransition, r.status)
	}

	pct := 0
	if total > 0 {
		pct = (100 * prepared) / total
	}

	if r.progress != nil && pct < *r.progress {
		pct = *r.progress
	}

	r.progress = &pct

	return nil
}

// IndicatePrepared transitions Preparation -> Transition, clearing progress.
func (r *Revision) IndicatePrepared() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != Preparation {
		return fmt.Errorf("%w: IndicatePrepared from %s", errInvalidTransition, r.status)
	}

	r.status = Transition
	r.progress = nil

	return nil
}

// IndicateTransited transitions Transition -> Purge.
func (r *Revision) IndicateTransited() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != Transition {
		return fmt.Errorf("%w: IndicateTransited from %s", errInvalidTransition, r.status)
	}

	r.status = Purge

	return nil
}

// IndicateCompleted transitions Purge -> Completed and records end_ts.
func (r *Revision) IndicateCompleted(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != Purge {
		return fmt.Errorf("%w: IndicateCompleted from %s", errInvalidTransition, r.status)
	}

	ts := now.Unix()
	r.status = Completed
	r.endTS = &ts

	return nil
}

// IndicateFailed transitions any non-terminal state to Failed, recording
// cause and end_ts. Calling it from an already-terminal state is a no-op
// error, since the spec reserves Failed/Completed as the only terminal
// states and a failure after completion has nowhere to go.
func (r *Revision) IndicateFailed(now time.Time, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == Completed || r.status == Failed {
		return fmt.Errorf("%w: IndicateFailed from terminal state %s", errInvalidTransition, r.status)
	}

	ts := now.Unix()
	r.status = Failed
	r.endTS = &ts
	r.progress = nil
	r.err = cause

	return nil
}
