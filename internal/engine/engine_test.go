package engine_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/pwnedmirror/internal/config"
	"github.com/calvinalkan/pwnedmirror/internal/engine"
	"github.com/calvinalkan/pwnedmirror/internal/obs"
	"github.com/calvinalkan/pwnedmirror/internal/prefix"
	"github.com/calvinalkan/pwnedmirror/internal/revision"
	"github.com/calvinalkan/pwnedmirror/pkg/fs"
)

// stubProvider serves fixed text for a handful of prefixes and empty text
// for everything else, optionally blocking every call on a gate until the
// test releases it.
type stubProvider struct {
	mu    sync.Mutex
	fixed map[string]string
	gate  chan struct{}
}

func newStubProvider(fixed map[string]string) *stubProvider {
	return &stubProvider{fixed: fixed}
}

func (p *stubProvider) GetRange(ctx context.Context, prefixText string) (string, error) {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return p.fixed[prefixText], nil
}

func newConfig(t *testing.T, workers int) config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.ResourceDir = filepath.Join(t.TempDir(), "resources")
	cfg.Workers = workers

	return cfg
}

func TestEngine_GetRange_NotInitializedBeforeFirstUpdate(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t, 4)
	e, err := engine.New(cfg, newStubProvider(nil), fs.NewReal(), obs.NewNop())
	require.NoError(t, err)

	_, err = e.GetRange(context.Background(), "00000")
	require.ErrorIs(t, err, engine.ErrNotInitialized)
}

func TestEngine_GetRange_RejectsInvalidPrefix(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t, 4)
	e, err := engine.New(cfg, newStubProvider(nil), fs.NewReal(), obs.NewNop())
	require.NoError(t, err)

	_, err = e.GetRange(context.Background(), "not-hex")
	require.ErrorIs(t, err, prefix.ErrInvalidPrefix)
}

func TestEngine_Update_FullLifecycle(t *testing.T) {
	t.Parallel()

	known := map[string]string{
		"00000": "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA:1",
		"FFFFF": "BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB:2",
	}

	cfg := newConfig(t, 8)
	e, err := engine.New(cfg, newStubProvider(known), fs.NewReal(), obs.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := e.Update(ctx)
	require.NoError(t, err)
	require.Equal(t, engine.Done, result)
	require.Equal(t, revision.Completed, e.Revision().Status)

	got, err := e.GetRange(ctx, "00000")
	require.NoError(t, err)
	require.Equal(t, known["00000"], got)

	gotEmpty, err := e.GetRange(ctx, "12345")
	require.NoError(t, err)
	require.Equal(t, "", gotEmpty)

	// A second update swaps into the other slot and purges the first.
	result, err = e.Update(ctx)
	require.NoError(t, err)
	require.Equal(t, engine.Done, result)

	got, err = e.GetRange(ctx, "FFFFF")
	require.NoError(t, err)
	require.Equal(t, known["FFFFF"], got)
}

func TestEngine_Update_SecondConcurrentCallIsIrrelevant(t *testing.T) {
	t.Parallel()

	p := newStubProvider(nil)
	p.gate = make(chan struct{})

	cfg := newConfig(t, 4)
	e, err := engine.New(cfg, p, fs.NewReal(), obs.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	done := make(chan struct{})
	var firstResult engine.Result
	var firstErr error

	go func() {
		defer close(done)
		firstResult, firstErr = e.Update(ctx)
	}()

	require.Eventually(t, func() bool {
		return e.Revision().Status == revision.Preparation
	}, time.Second, time.Millisecond)

	secondResult, err := e.Update(ctx)
	require.NoError(t, err)
	require.Equal(t, engine.Irrelevant, secondResult)

	close(p.gate)
	<-done

	require.NoError(t, firstErr)
	require.Equal(t, engine.Done, firstResult)
}
