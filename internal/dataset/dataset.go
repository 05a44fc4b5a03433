package dataset

import (
	"context"
	"errors"
)

// ErrCorrupted is returned by ReadRange when the dataset file for a prefix
// is missing or unreadable at read time.
var ErrCorrupted = errors.New("dataset corrupted")

// Dataset is one on-disk directory holding an immutable snapshot of all
// prefix ranges, in either text or binary form.
//
// A Dataset instance is bound to one directory (one ID) for its lifetime.
// The Mirror Engine owns exactly two instances, one per [ID], and only ever
// writes to the currently-inactive one.
type Dataset interface {
	// EnsureEmpty creates the dataset's directory if absent and removes any
	// existing contents, so a fresh mirror attempt starts from a clean
	// slate. Must be called before the first WriteRange of an update.
	EnsureEmpty(ctx context.Context) error

	// WriteRange stores one prefix's verbatim provider output. Concurrent
	// calls for distinct prefixes from distinct goroutines are safe.
	WriteRange(ctx context.Context, prefixIndex int, prefixText, text string) error

	// Finalize completes any buffered, not-yet-durable writes (a no-op for
	// the text layout; required for the binary layout, which assembles
	// per-group files only once every prefix in the group has arrived).
	// Finalize is the last step before the dataset is eligible to become
	// active: the engine never swaps in a dataset whose Finalize has not
	// returned successfully.
	Finalize(ctx context.Context) error

	// ReadRange returns the stored text for a prefix that was previously
	// written (or an empty string if the upstream had no records for it).
	// Returns [ErrCorrupted] if the backing file is missing or unreadable.
	ReadRange(ctx context.Context, prefixText string) (string, error)

	// Remove deletes the dataset's entire directory. Best-effort: callers
	// that need "best-effort purge, swallow errors" semantics should log
	// rather than propagate a non-nil return.
	Remove(ctx context.Context) error
}
