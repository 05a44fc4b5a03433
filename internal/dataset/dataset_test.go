package dataset_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/pwnedmirror/internal/dataset"
	"github.com/calvinalkan/pwnedmirror/internal/record"
	"github.com/calvinalkan/pwnedmirror/pkg/fs"
	"github.com/stretchr/testify/require"
)

func TestID_Other(t *testing.T) {
	t.Parallel()

	require.Equal(t, dataset.B, dataset.A.Other())
	require.Equal(t, dataset.A, dataset.B.Other())
	require.Equal(t, "a", dataset.A.String())
	require.Equal(t, "hashes-b", dataset.B.DirName())
}

func TestTextLayout_WriteThenReadRange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "hashes-a")
	layout := dataset.NewTextLayout(dir, fs.NewReal())

	require.NoError(t, layout.EnsureEmpty(ctx))
	require.NoError(t, layout.WriteRange(ctx, 0x2AA60, "2AA60", "A8FF7FCD473D321E0146AFD9E26DF395147:273646"))
	require.NoError(t, layout.WriteRange(ctx, 0x2AA61, "2AA61", ""))
	require.NoError(t, layout.Finalize(ctx))

	got, err := layout.ReadRange(ctx, "2AA60")
	require.NoError(t, err)
	require.Equal(t, "A8FF7FCD473D321E0146AFD9E26DF395147:273646", got)

	empty, err := layout.ReadRange(ctx, "2AA61")
	require.NoError(t, err)
	require.Equal(t, "", empty)
}

func TestTextLayout_ReadRange_MissingFileIsCorrupted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "hashes-a")
	layout := dataset.NewTextLayout(dir, fs.NewReal())
	require.NoError(t, layout.EnsureEmpty(ctx))

	_, err := layout.ReadRange(ctx, "00000")
	require.ErrorIs(t, err, dataset.ErrCorrupted)
}

func TestBinaryLayout_WriteThenReadRange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "hashes-a")
	codec := record.Codec{DroppedPrefixLen: 4, CountByteWidth: 4}
	layout := dataset.NewBinaryLayout(dir, fs.NewReal(), codec)

	require.NoError(t, layout.EnsureEmpty(ctx))

	// "2AA60" and "2AA6F" share group code "2AA6".
	require.NoError(t, layout.WriteRange(ctx, 0x2AA60, "2AA60", "A8FF7FCD473D321E0146AFD9E26DF395147:273646"))
	require.NoError(t, layout.WriteRange(ctx, 0x2AA6F, "2AA6F", "11111111111111111111111111111111111:1"))

	for i := 1; i < 0xF; i++ {
		text, err := prefixOf(i)
		require.NoError(t, err)
		require.NoError(t, layout.WriteRange(ctx, 0x2AA60+i, text, ""))
	}

	require.NoError(t, layout.Finalize(ctx))

	got, err := layout.ReadRange(ctx, "2AA60")
	require.NoError(t, err)
	require.Equal(t, "A8FF7FCD473D321E0146AFD9E26DF395147:273646", got)

	gotF, err := layout.ReadRange(ctx, "2AA6F")
	require.NoError(t, err)
	require.Equal(t, "11111111111111111111111111111111111:1", gotF)

	empty, err := layout.ReadRange(ctx, "2AA61")
	require.NoError(t, err)
	require.Equal(t, "", empty)
}

func prefixOf(offset int) (string, error) {
	const base = 0x2AA60
	return toPrefixText(base + offset)
}

func toPrefixText(idx int) (string, error) {
	const digits = "0123456789ABCDEF"
	out := make([]byte, 5)
	n := idx
	for i := 4; i >= 0; i-- {
		out[i] = digits[n&0xF]
		n >>= 4
	}
	return string(out), nil
}
