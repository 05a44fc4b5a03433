package revision_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/pwnedmirror/internal/revision"
)

func TestHappyPathLifecycle(t *testing.T) {
	t.Parallel()

	var rev revision.Revision
	now := time.Unix(1000, 0)

	require.Equal(t, revision.New, rev.Status())

	require.NoError(t, rev.IndicateStarted(now))
	require.Equal(t, revision.Preparation, rev.Status())

	require.NoError(t, rev.IndicatePreparedCount(524288, 1048576))
	snap := rev.Snapshot()
	require.NotNil(t, snap.Progress)
	require.Equal(t, 50, *snap.Progress)

	require.NoError(t, rev.IndicatePrepared())
	snap = rev.Snapshot()
	require.Equal(t, revision.Transition, snap.Status)
	require.Nil(t, snap.Progress)

	require.NoError(t, rev.IndicateTransited())
	require.Equal(t, revision.Purge, rev.Status())

	require.NoError(t, rev.IndicateCompleted(now.Add(time.Minute)))
	snap = rev.Snapshot()
	require.Equal(t, revision.Completed, snap.Status)
	require.NotNil(t, snap.EndTS)
}

func TestProgressIsMonotoneNonDecreasing(t *testing.T) {
	t.Parallel()

	var rev revision.Revision
	require.NoError(t, rev.IndicateStarted(time.Unix(0, 0)))

	require.NoError(t, rev.IndicatePreparedCount(100, 1048576))
	first := *rev.Snapshot().Progress

	// A caller reporting a smaller prepared count than before (e.g. a stale
	// goroutine) must not move progress backwards.
	require.NoError(t, rev.IndicatePreparedCount(50, 1048576))
	second := *rev.Snapshot().Progress

	require.GreaterOrEqual(t, second, first)
}

func TestIndicateFailed_FromAnyNonTerminalState(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")

	var rev revision.Revision
	require.NoError(t, rev.IndicateStarted(time.Unix(0, 0)))
	require.NoError(t, rev.IndicateFailed(time.Unix(1, 0), cause))

	snap := rev.Snapshot()
	require.Equal(t, revision.Failed, snap.Status)
	require.ErrorIs(t, snap.Err, cause)
	require.Nil(t, snap.Progress)
}

func TestIndicateFailed_RejectsFromTerminalState(t *testing.T) {
	t.Parallel()

	var rev revision.Revision
	require.NoError(t, rev.IndicateStarted(time.Unix(0, 0)))
	require.NoError(t, rev.IndicateFailed(time.Unix(1, 0), errors.New("boom")))

	err := rev.IndicateFailed(time.Unix(2, 0), errors.New("again"))
	require.Error(t, err)
}

func TestInvalidTransitionsRejected(t *testing.T) {
	t.Parallel()

	var rev revision.Revision

	require.Error(t, rev.IndicatePrepared())
	require.Error(t, rev.IndicateTransited())
	require.Error(t, rev.IndicateCompleted(time.Unix(0, 0)))
}

func TestSnapshot_IsIdle(t *testing.T) {
	t.Parallel()

	require.True(t, revision.Snapshot{Status: revision.New}.IsIdle())
	require.True(t, revision.Snapshot{Status: revision.Completed}.IsIdle())
	require.True(t, revision.Snapshot{Status: revision.Failed}.IsIdle())
	require.False(t, revision.Snapshot{Status: revision.Preparation}.IsIdle())
	require.False(t, revision.Snapshot{Status: revision.Transition}.IsIdle())
	require.False(t, revision.Snapshot{Status: revision.Purge}.IsIdle())
}

func ptr[T any](v T) *T { return &v }

// TestSnapshot_StructuralShape drives the lifecycle through a fixed
// sequence of calls and diffs the resulting Snapshot against the exact
// expected shape at each step, catching any stray field a plain
// field-by-field assertion would miss.
func TestSnapshot_StructuralShape(t *testing.T) {
	t.Parallel()

	start := time.Unix(1000, 0)
	end := time.Unix(1060, 0)

	var rev revision.Revision

	cases := []struct {
		name string
		step func() error
		want revision.Snapshot
	}{
		{
			name: "started",
			step: func() error { return rev.IndicateStarted(start) },
			want: revision.Snapshot{Status: revision.Preparation, Progress: ptr(0), StartTS: ptr(start.Unix())},
		},
		{
			name: "half prepared",
			step: func() error { return rev.IndicatePreparedCount(524288, 1048576) },
			want: revision.Snapshot{Status: revision.Preparation, Progress: ptr(50), StartTS: ptr(start.Unix())},
		},
		{
			name: "prepared",
			step: func() error { return rev.IndicatePrepared() },
			want: revision.Snapshot{Status: revision.Transition, StartTS: ptr(start.Unix())},
		},
		{
			name: "transited",
			step: func() error { return rev.IndicateTransited() },
			want: revision.Snapshot{Status: revision.Purge, StartTS: ptr(start.Unix())},
		},
		{
			name: "completed",
			step: func() error { return rev.IndicateCompleted(end) },
			want: revision.Snapshot{Status: revision.Completed, StartTS: ptr(start.Unix()), EndTS: ptr(end.Unix())},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.step())

			if diff := cmp.Diff(tc.want, rev.Snapshot()); diff != "" {
				t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	var rev revision.Revision
	require.NoError(t, rev.IndicateStarted(time.Unix(0, 0)))
	require.NoError(t, rev.IndicateFailed(time.Unix(1, 0), errors.New("boom")))

	rev.Reset()
	snap := rev.Snapshot()
	require.Equal(t, revision.New, snap.Status)
	require.Nil(t, snap.Err)
	require.Nil(t, snap.StartTS)
}
