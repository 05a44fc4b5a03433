package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/pwnedmirror/pkg/fs"
)

// TextLayout is the default Dataset implementation: one file per prefix,
// named "<PREFIX>.txt", holding the provider's verbatim (normalized)
// output. Each file is written independently, so distinct workers writing
// distinct prefixes never contend on the same path.
type TextLayout struct {
	dir    string
	fsys   fs.FS
	writer *fs.AtomicWriter
}

// NewTextLayout creates a TextLayout rooted at dir (e.g.
// "<resource_dir>/hashes-a").
func NewTextLayout(dir string, fsys fs.FS) *TextLayout {
	return &TextLayout{
		dir:    dir,
		fsys:   fsys,
		writer: fs.NewAtomicWriter(fsys),
	}
}

func (t *TextLayout) EnsureEmpty(_ context.Context) error {
	if err := t.fsys.RemoveAll(t.dir); err != nil {
		return fmt.Errorf("clearing dataset dir %s: %w", t.dir, err)
	}

	if err := t.fsys.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("creating dataset dir %s: %w", t.dir, err)
	}

	return nil
}

func (t *TextLayout) WriteRange(_ context.Context, _ int, prefixText, text string) error {
	path := t.path(prefixText)

	if err := t.writer.WriteWithDefaults(path, strings.NewReader(text)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

func (t *TextLayout) Finalize(_ context.Context) error {
	return nil
}

func (t *TextLayout) ReadRange(_ context.Context, prefixText string) (string, error) {
	path := t.path(prefixText)

	data, err := t.fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s missing", ErrCorrupted, path)
		}

		return "", fmt.Errorf("%w: reading %s: %v", ErrCorrupted, path, err)
	}

	return string(data), nil
}

func (t *TextLayout) Remove(_ context.Context) error {
	if err := t.fsys.RemoveAll(t.dir); err != nil {
		return fmt.Errorf("removing dataset dir %s: %w", t.dir, err)
	}

	return nil
}

func (t *TextLayout) path(prefixText string) string {
	return filepath.Join(t.dir, prefixText+".txt")
}

var _ Dataset = (*TextLayout)(nil)
