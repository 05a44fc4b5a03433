package plock_test

import (
	"context"
	"testing"

	"github.com/calvinalkan/pwnedmirror/internal/plock"
	"github.com/calvinalkan/pwnedmirror/pkg/fs"
	"github.com/stretchr/testify/require"
)

func TestTryAcquire_SecondProcessIsLocked(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	a := plock.New(dir, fs.NewReal())
	b := plock.New(dir, fs.NewReal())

	held, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	defer held.Close()

	_, err = b.TryAcquire(ctx)
	require.ErrorIs(t, err, plock.ErrLocked)
}

func TestTryAcquire_SucceedsAfterRelease(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	a := plock.New(dir, fs.NewReal())

	held, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	require.NoError(t, held.Close())

	held2, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	require.NoError(t, held2.Close())
}
