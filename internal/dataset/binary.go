package dataset

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/exp/mmap"

	"github.com/calvinalkan/pwnedmirror/internal/record"
	"github.com/calvinalkan/pwnedmirror/pkg/fs"
)

// BinaryLayout is the compact Dataset implementation: one file per group
// code (the leading [Codec.DroppedPrefixLen] hex characters of the
// prefix), holding fixed-width encoded records in ascending prefix then
// ascending suffix order, binary-searchable via [golang.org/x/exp/mmap].
//
// A record's encoded bytes begin with whatever hex characters of the
// prefix were NOT dropped (the group code is common to the whole file and
// carries no per-record information), followed by the suffix. Locating a
// prefix's records is therefore a boundary search over that leading
// "remainder key" — mirroring the fixed-width binary search used by
// hm-edu/pwnedpass's offline reader, generalized to a configurable dropped
// prefix length.
//
// WriteRange only buffers records in memory; group files are assembled and
// made durable in [BinaryLayout.Finalize], since a group file is only
// complete once every prefix sharing its code has been written, and those
// prefixes are not necessarily written by the same worker or in file order.
type BinaryLayout struct {
	dir   string
	fsys  fs.FS
	codec record.Codec

	mu      sync.Mutex
	groups  map[string]map[int][]byte // groupCode -> prefixIndex -> encoded records
	readers map[string]*mmap.ReaderAt
}

// NewBinaryLayout creates a BinaryLayout rooted at dir, using codec for
// record encoding.
func NewBinaryLayout(dir string, fsys fs.FS, codec record.Codec) *BinaryLayout {
	return &BinaryLayout{
		dir:     dir,
		fsys:    fsys,
		codec:   codec,
		groups:  make(map[string]map[int][]byte),
		readers: make(map[string]*mmap.ReaderAt),
	}
}

func (b *BinaryLayout) EnsureEmpty(_ context.Context) error {
	b.closeReaders()

	if err := b.fsys.RemoveAll(b.dir); err != nil {
		return fmt.Errorf("clearing dataset dir %s: %w", b.dir, err)
	}

	if err := b.fsys.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("creating dataset dir %s: %w", b.dir, err)
	}

	b.mu.Lock()
	b.groups = make(map[string]map[int][]byte)
	b.mu.Unlock()

	return nil
}

func (b *BinaryLayout) WriteRange(_ context.Context, prefixIndex int, prefixText, text string) error {
	groupCode := prefixText[:b.codec.DroppedPrefixLen]

	var buf bytes.Buffer
	if text != "" {
		for _, line := range strings.Split(text, "\n") {
			encoded, err := b.codec.Encode(line, prefixText)
			if err != nil {
				return fmt.Errorf("encoding record for prefix %s: %w", prefixText, err)
			}
			buf.Write(encoded)
		}
	}

	b.mu.Lock()
	byPrefix, ok := b.groups[groupCode]
	if !ok {
		byPrefix = make(map[int][]byte)
		b.groups[groupCode] = byPrefix
	}
	byPrefix[prefixIndex] = buf.Bytes()
	b.mu.Unlock()

	return nil
}

// Finalize assembles each group's buffered per-prefix records, in ascending
// prefix order, into its group file.
func (b *BinaryLayout) Finalize(_ context.Context) error {
	b.mu.Lock()
	groups := b.groups
	b.mu.Unlock()

	for groupCode, byPrefix := range groups {
		indices := make([]int, 0, len(byPrefix))
		for idx := range byPrefix {
			indices = append(indices, idx)
		}
		sort.Ints(indices)

		var buf bytes.Buffer
		for _, idx := range indices {
			buf.Write(byPrefix[idx])
		}

		path := b.groupPath(groupCode)
		if err := fs.NewAtomicWriter(b.fsys).WriteWithDefaults(path, bytes.NewReader(buf.Bytes())); err != nil {
			return fmt.Errorf("writing group file %s: %w", path, err)
		}
	}

	return nil
}

func (b *BinaryLayout) ReadRange(_ context.Context, prefixText string) (string, error) {
	groupCode := prefixText[:b.codec.DroppedPrefixLen]

	reader, err := b.openReader(groupCode)
	if err != nil {
		return "", err
	}

	width := b.codec.Width()
	size := reader.Len()
	if size%width != 0 {
		return "", fmt.Errorf("%w: group file %s has size %d not a multiple of record width %d", ErrCorrupted, groupCode, size, width)
	}

	count := size / width
	remainderHexLen := len(prefixText) - b.codec.DroppedPrefixLen
	targetKey := prefixText[b.codec.DroppedPrefixLen:]

	buf := make([]byte, width)

	keyAt := func(i int) (string, error) {
		if _, err := reader.ReadAt(buf, int64(i)*int64(width)); err != nil {
			return "", fmt.Errorf("%w: reading record %d of %s: %v", ErrCorrupted, i, groupCode, err)
		}
		return recordRemainderKey(buf, remainderHexLen), nil
	}

	var searchErr error

	lo := sort.Search(count, func(i int) bool {
		k, err := keyAt(i)
		if err != nil {
			searchErr = err
			return true
		}
		return k >= targetKey
	})
	if searchErr != nil {
		return "", searchErr
	}

	hi := sort.Search(count, func(i int) bool {
		k, err := keyAt(i)
		if err != nil {
			searchErr = err
			return true
		}
		return k > targetKey
	})
	if searchErr != nil {
		return "", searchErr
	}

	if lo >= hi {
		return "", nil
	}

	lines := make([]string, 0, hi-lo)
	for i := lo; i < hi; i++ {
		if _, err := reader.ReadAt(buf, int64(i)*int64(width)); err != nil {
			return "", fmt.Errorf("%w: reading record %d of %s: %v", ErrCorrupted, i, groupCode, err)
		}

		line, err := b.codec.Decode(buf, groupCode)
		if err != nil {
			return "", fmt.Errorf("%w: decoding record %d of %s: %v", ErrCorrupted, i, groupCode, err)
		}

		lines = append(lines, line)
	}

	return strings.Join(lines, "\n"), nil
}

// recordRemainderKey returns the leading remainderHexLen hex characters of
// an encoded record's hex portion — the part of the prefix that was not
// dropped from the group code. When remainderHexLen is odd, the comparison
// key is truncated mid-byte, matching the spec's "mask off the tail nibble
// of the comparison key" boundary-search rule.
func recordRemainderKey(encoded []byte, remainderHexLen int) string {
	if remainderHexLen == 0 {
		return ""
	}

	keyBytes := (remainderHexLen + 1) / 2
	hexKey := hexUpper(encoded[:keyBytes])

	return hexKey[:remainderHexLen]
}

func hexUpper(b []byte) string {
	const digits = "0123456789ABCDEF"

	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[2*i] = digits[v>>4]
		out[2*i+1] = digits[v&0xF]
	}

	return string(out)
}

func (b *BinaryLayout) openReader(groupCode string) (*mmap.ReaderAt, error) {
	b.mu.Lock()
	if r, ok := b.readers[groupCode]; ok {
		b.mu.Unlock()
		return r, nil
	}
	b.mu.Unlock()

	path := b.groupPath(groupCode)

	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening group file %s: %v", ErrCorrupted, path, err)
	}

	b.mu.Lock()
	b.readers[groupCode] = r
	b.mu.Unlock()

	return r, nil
}

func (b *BinaryLayout) closeReaders() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range b.readers {
		_ = r.Close()
	}
	b.readers = make(map[string]*mmap.ReaderAt)
}

func (b *BinaryLayout) Remove(_ context.Context) error {
	b.closeReaders()

	if err := b.fsys.RemoveAll(b.dir); err != nil {
		return fmt.Errorf("removing dataset dir %s: %w", b.dir, err)
	}

	return nil
}

func (b *BinaryLayout) groupPath(groupCode string) string {
	return filepath.Join(b.dir, groupCode+".dat")
}

var _ Dataset = (*BinaryLayout)(nil)
