package prefix_test

import (
	"testing"

	"github.com/calvinalkan/pwnedmirror/internal/prefix"
	"github.com/stretchr/testify/require"
)

func TestToIndex_ValidPrefixes(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"00000": 0,
		"FFFFF": prefix.Capacity - 1,
		"faded": 0xFADED,
		"FADED": 0xFADED,
	}

	for text, want := range cases {
		got, err := prefix.ToIndex(text)
		require.NoError(t, err, text)
		require.Equal(t, want, got, text)
	}
}

func TestToIndex_InvalidPrefixes(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"FADE", "FADEG", "", "FFFFFF"} {
		_, err := prefix.ToIndex(text)
		require.ErrorIs(t, err, prefix.ErrInvalidPrefix, text)
	}
}

func TestFromIndex_OutOfRange(t *testing.T) {
	t.Parallel()

	_, err := prefix.FromIndex(-1, prefix.Capacity)
	require.ErrorIs(t, err, prefix.ErrOutOfRange)

	_, err = prefix.FromIndex(prefix.Capacity, prefix.Capacity)
	require.ErrorIs(t, err, prefix.ErrOutOfRange)
}

func TestFromIndex_ZeroPadsToCapacityWidth(t *testing.T) {
	t.Parallel()

	got, err := prefix.FromIndex(0, prefix.Capacity)
	require.NoError(t, err)
	require.Equal(t, "00000", got)

	got, err = prefix.FromIndex(prefix.Capacity-1, prefix.Capacity)
	require.NoError(t, err)
	require.Equal(t, "FFFFF", got)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for i := range prefix.Capacity / 4096 {
		idx := i * 4096
		text, err := prefix.FromIndex(idx, prefix.Capacity)
		require.NoError(t, err)

		back, err := prefix.ToIndex(text)
		require.NoError(t, err)
		require.Equal(t, idx, back)
	}
}
