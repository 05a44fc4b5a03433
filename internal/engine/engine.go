// Package engine implements the Mirror Engine: the orchestrator that
// prepares a fresh dataset from a Range Provider, swaps it in as the active
// dataset, and purges the previous one, while serving reads against
// whichever dataset is currently active.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calvinalkan/pwnedmirror/internal/config"
	"github.com/calvinalkan/pwnedmirror/internal/controlfile"
	"github.com/calvinalkan/pwnedmirror/internal/dataset"
	"github.com/calvinalkan/pwnedmirror/internal/prefix"
	"github.com/calvinalkan/pwnedmirror/internal/provider"
	"github.com/calvinalkan/pwnedmirror/internal/record"
	"github.com/calvinalkan/pwnedmirror/internal/revision"
	"github.com/calvinalkan/pwnedmirror/pkg/fs"
)

// ErrNotInitialized is returned by GetRange when no mirror update has ever
// completed, so there is no active dataset to read from.
var ErrNotInitialized = errors.New("no active dataset")

// Result is the outcome of one Update call.
type Result int

const (
	Done Result = iota
	Failed
	Irrelevant
)

func (r Result) String() string {
	switch r {
	case Done:
		return "DONE"
	case Failed:
		return "FAILED"
	case Irrelevant:
		return "IRRELEVANT"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// pollInterval is the polling interval used while draining readers and while
// a GetRange call waits out an in-progress swap: short enough that neither
// is held up noticeably, long enough not to spin.
const pollInterval = 500 * time.Millisecond

// progressSampleEvery bounds how often a worker takes the Revision's mutex
// to publish progress; sampling every write would serialize a million-some
// lock/unlock pairs across workers for no visible benefit.
const progressSampleEvery = 4096

// Engine is the Mirror Engine. One Engine owns both dataset slots (A and
// B), the active-dataset pointer, the shared Revision, and the process
// lock's resource directory; it is safe for concurrent Update and GetRange
// calls.
type Engine struct {
	controlPath   string
	rangeProvider provider.Provider
	workers       int
	logger        *zap.Logger

	datasets map[dataset.ID]dataset.Dataset

	rev *revision.Revision

	// updateGate serializes the idle-check-then-claim sequence at the top
	// of Update, so two concurrent callers can't both observe an idle
	// Revision and both start a mirror.
	updateGate sync.Mutex

	// stateMu guards active, activeReaderCount, and transitioning together
	// as a single logical mutex: a reader must never increment
	// activeReaderCount after waitForReadersDrained has already observed
	// the count at zero and the engine has committed to swapping, and it
	// must never attach to a dataset that a concurrent swap is mid-way
	// through replacing. Checking transitioning and incrementing
	// activeReaderCount under the same lock closes that race.
	stateMu           sync.Mutex
	active            *dataset.ID
	activeReaderCount int
	transitioning     bool
}

// New constructs an Engine from cfg, restoring the active dataset (if any)
// from the resource directory's control file. A dataset named there whose
// directory does not exist is treated as no active dataset; the contents of
// an existing directory are not checked for completeness.
func New(cfg config.Config, rangeProvider provider.Provider, fsys fs.FS, logger *zap.Logger) (*Engine, error) {
	e := &Engine{
		controlPath:   filepath.Join(cfg.ResourceDir, controlfile.FileName),
		rangeProvider: rangeProvider,
		workers:       cfg.Workers,
		logger:        logger,
		rev:           &revision.Revision{},
		datasets: map[dataset.ID]dataset.Dataset{
			dataset.A: buildDataset(dataset.A, cfg, fsys),
			dataset.B: buildDataset(dataset.B, cfg, fsys),
		},
	}

	cf, err := controlfile.Load(e.controlPath)
	if err != nil {
		return nil, fmt.Errorf("loading control file: %w", err)
	}
	if cf.Dataset != nil && !cf.Ignore {
		active := *cf.Dataset

		exists, err := fsys.Exists(filepath.Join(cfg.ResourceDir, active.DirName()))
		if err != nil {
			return nil, fmt.Errorf("checking dataset %s: %w", active, err)
		}
		if exists {
			e.active = &active
		}
	}

	return e, nil
}

func buildDataset(id dataset.ID, cfg config.Config, fsys fs.FS) dataset.Dataset {
	dir := filepath.Join(cfg.ResourceDir, id.DirName())

	if cfg.BinaryLayout.Enabled() {
		codec := record.Codec{
			DroppedPrefixLen: cfg.BinaryLayout.FileCodeLen,
			CountByteWidth:   cfg.BinaryLayout.CountByteWidth,
		}
		return dataset.NewBinaryLayout(dir, fsys, codec)
	}

	return dataset.NewTextLayout(dir, fsys)
}

// Revision returns a snapshot of the current mirror attempt's lifecycle
// state.
func (e *Engine) Revision() revision.Snapshot {
	return e.rev.Snapshot()
}

// Update runs one full mirror attempt: it fetches every prefix range from
// the configured Range Provider into the currently-inactive dataset slot,
// then swaps it in as active and purges the slot it replaced.
//
// If a mirror attempt is already in progress, Update returns (Irrelevant,
// nil) immediately without disturbing it — only one update runs at a time
// per Engine.
func (e *Engine) Update(ctx context.Context) (Result, error) {
	if !e.claimIdle() {
		return Irrelevant, nil
	}

	if err := e.rev.IndicateStarted(time.Now()); err != nil {
		return e.fail(err)
	}

	newID := e.other()
	newDS := e.datasets[newID]

	if err := newDS.EnsureEmpty(ctx); err != nil {
		return e.fail(fmt.Errorf("preparing fresh dataset %s: %w", newID, err))
	}

	if err := e.prepare(ctx, newDS); err != nil {
		e.removeBestEffort(newDS, newID)
		return e.fail(err)
	}

	if err := newDS.Finalize(ctx); err != nil {
		e.removeBestEffort(newDS, newID)
		return e.fail(fmt.Errorf("finalizing dataset %s: %w", newID, err))
	}

	if err := e.rev.IndicatePrepared(); err != nil {
		e.removeBestEffort(newDS, newID)
		return e.fail(err)
	}

	e.setTransitioning(true)

	e.waitForReadersDrained(ctx)

	if err := ctx.Err(); err != nil {
		e.setTransitioning(false)
		e.removeBestEffort(newDS, newID)
		return e.fail(fmt.Errorf("%w: %v", revision.ErrCancelled, err))
	}

	oldID, err := e.swapActive(newID)
	if err != nil {
		e.setTransitioning(false)
		return e.fail(err)
	}

	e.setTransitioning(false)

	if err := e.rev.IndicateTransited(); err != nil {
		return e.fail(err)
	}

	if oldID != nil {
		if err := e.datasets[*oldID].Remove(context.Background()); err != nil {
			e.logger.Warn("purging previous dataset",
				zap.String("dataset", oldID.String()), zap.Error(err))
		}
	}

	if err := e.rev.IndicateCompleted(time.Now()); err != nil {
		return Failed, err
	}

	return Done, nil
}

// claimIdle atomically checks whether the Revision is idle and, if so,
// resets it to NEW so this caller owns the next update.
func (e *Engine) claimIdle() bool {
	e.updateGate.Lock()
	defer e.updateGate.Unlock()

	if !e.rev.Snapshot().IsIdle() {
		return false
	}

	e.rev.Reset()

	return true
}

// other returns the dataset ID this update will write to: the slot not
// currently active, or A when there is no active dataset yet.
func (e *Engine) other() dataset.ID {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	current := dataset.B
	if e.active != nil {
		current = *e.active
	}

	return current.Other()
}

// prepare fans the full prefix space out across e.workers cooperative
// workers, each owning a contiguous, disjoint slice of prefix indices, and
// waits for all of them to finish or for the first failure.
func (e *Engine) prepare(ctx context.Context, newDS dataset.Dataset) error {
	workers := e.workers
	if workers < 1 {
		workers = 1
	}

	total := prefix.Capacity

	g, gctx := errgroup.WithContext(ctx)

	var prepared int64

	for w := 0; w < workers; w++ {
		lo := w * total / workers
		hi := (w + 1) * total / workers

		g.Go(func() error {
			for idx := lo; idx < hi; idx++ {
				if err := gctx.Err(); err != nil {
					return err
				}

				prefixText, err := prefix.FromIndex(idx, total)
				if err != nil {
					return fmt.Errorf("deriving prefix for index %d: %w", idx, err)
				}

				text, err := e.rangeProvider.GetRange(gctx, prefixText)
				if err != nil {
					return fmt.Errorf("fetching range %s: %w", prefixText, err)
				}

				if err := newDS.WriteRange(gctx, idx, prefixText, text); err != nil {
					return fmt.Errorf("writing range %s: %w", prefixText, err)
				}

				if n := atomic.AddInt64(&prepared, 1); n%progressSampleEvery == 0 {
					_ = e.rev.IndicatePreparedCount(int(n), total)
				}
			}

			return nil
		})
	}

	err := g.Wait()

	_ = e.rev.IndicatePreparedCount(int(atomic.LoadInt64(&prepared)), total)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %v", revision.ErrCancelled, err)
		}
		return err
	}

	return nil
}

// setTransitioning flips the transitioning flag under stateMu, the same
// lock GetRange uses to check it and to increment activeReaderCount. Once
// this is true, no new reader can attach to the active dataset until it is
// cleared again.
func (e *Engine) setTransitioning(v bool) {
	e.stateMu.Lock()
	e.transitioning = v
	e.stateMu.Unlock()
}

// waitForReadersDrained blocks until no GetRange call is mid-flight against
// the currently active dataset, polling every pollInterval so the TRANSITION
// state never holds the swap open indefinitely under normal load. It also
// returns early once ctx is done; Update then checks ctx and abandons the
// swap. Callers must have already set transitioning so no new reader can
// join the count being drained.
func (e *Engine) waitForReadersDrained(ctx context.Context) {
	for {
		e.stateMu.Lock()
		n := e.activeReaderCount
		e.stateMu.Unlock()

		if n == 0 {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
	}
}

// swapActive performs the crash-safe two-phase control file write, updating
// the in-memory active pointer strictly between the two writes, and returns
// the dataset ID that was active before the swap (nil if none).
func (e *Engine) swapActive(newID dataset.ID) (*dataset.ID, error) {
	if err := controlfile.SaveIgnoring(e.controlPath); err != nil {
		return nil, fmt.Errorf("writing control file (phase 1): %w", err)
	}

	e.stateMu.Lock()
	oldID := e.active
	id := newID
	e.active = &id
	e.stateMu.Unlock()

	if err := controlfile.SaveActive(e.controlPath, newID); err != nil {
		return nil, fmt.Errorf("writing control file (phase 2): %w", err)
	}

	return oldID, nil
}

func (e *Engine) removeBestEffort(ds dataset.Dataset, id dataset.ID) {
	if err := ds.Remove(context.Background()); err != nil {
		e.logger.Warn("removing failed dataset attempt",
			zap.String("dataset", id.String()), zap.Error(err))
	}
}

func (e *Engine) fail(cause error) (Result, error) {
	if err := e.rev.IndicateFailed(time.Now(), cause); err != nil {
		e.logger.Error("recording revision failure", zap.Error(err))
	}

	e.logger.Error("mirror update failed", zap.Error(cause))

	return Failed, cause
}

// GetRange returns the stored record text for prefixText from whichever
// dataset is currently active.
//
// If a swap is in progress, GetRange blocks until it completes rather than
// attach to a dataset that may be mid-purge. The check for an in-progress
// swap and the activeReaderCount increment happen atomically under the same
// lock Update uses to drain readers, so a blocked reader can never attach
// after the drain has already observed the count at zero.
func (e *Engine) GetRange(ctx context.Context, prefixText string) (string, error) {
	normalized, err := prefix.Normalize(prefixText)
	if err != nil {
		return "", err
	}

	active, err := e.acquireReader(ctx)
	if err != nil {
		return "", err
	}

	defer func() {
		e.stateMu.Lock()
		e.activeReaderCount--
		e.stateMu.Unlock()
	}()

	return e.datasets[active].ReadRange(ctx, normalized)
}

// acquireReader blocks out a swap-in-progress window and, once clear,
// registers the caller as an active reader of the current dataset in the
// same critical section, returning its ID.
func (e *Engine) acquireReader(ctx context.Context) (dataset.ID, error) {
	for {
		e.stateMu.Lock()

		if e.transitioning {
			e.stateMu.Unlock()

			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(pollInterval):
			}

			continue
		}

		if e.active == nil {
			e.stateMu.Unlock()
			return 0, ErrNotInitialized
		}

		active := *e.active
		e.activeReaderCount++
		e.stateMu.Unlock()

		return active, nil
	}
}
