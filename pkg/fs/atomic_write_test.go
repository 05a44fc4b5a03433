package fs_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/pwnedmirror/pkg/fs"
)

const testContentHello = "hello"

func TestAtomicWriter_WriteWithDefaults_VisibleAfterRename(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "final.txt")

	writer := fs.NewAtomicWriter(fs.NewReal())

	err := writer.WriteWithDefaults(path, strings.NewReader(testContentHello))
	if err != nil {
		t.Fatalf("WriteWithDefaults: %v", err)
	}

	got, err := fs.NewReal().ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != testContentHello {
		t.Fatalf("content=%q, want %q", string(got), testContentHello)
	}

	entries, err := fs.NewReal().ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	if len(entries) != 1 || entries[0].Name() != "final.txt" {
		t.Fatalf("expected only final.txt in dir, got %v", entries)
	}
}

func TestAtomicWriter_Write_OverwritesExistingFileAtomically(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	real := fs.NewReal()
	writer := fs.NewAtomicWriter(real)

	if err := writer.WriteWithDefaults(path, strings.NewReader(`{"dataset":"a"}`)); err != nil {
		t.Fatalf("first write: %v", err)
	}

	if err := writer.WriteWithDefaults(path, strings.NewReader(`{"dataset":"b"}`)); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := real.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != `{"dataset":"b"}` {
		t.Fatalf("content=%q, want latest write", string(got))
	}
}
