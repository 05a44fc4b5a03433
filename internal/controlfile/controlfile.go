// Package controlfile implements the small persisted record naming the
// currently active dataset, written with the two-phase discipline that
// makes the active-dataset swap crash-safe.
package controlfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	natatomic "github.com/natefinch/atomic"

	"github.com/calvinalkan/pwnedmirror/internal/dataset"
)

// FileName is the well-known control file name under the resource
// directory.
const FileName = "state.json"

// File is the control file's recognized shape. Dataset is nil when no
// dataset has ever completed a mirror.
type File struct {
	Dataset *dataset.ID
	Ignore  bool
}

// wireFile is the JSON-serialized shape: Dataset is the lowercase tag
// ("a"/"b"), matching the spec's on-disk format.
type wireFile struct {
	Dataset *string `json:"dataset,omitempty"`
	Ignore  bool    `json:"ignore"`
}

// Load reads and parses the control file at path.
//
// Per the spec's load discipline, a file that is missing, unparseable, not
// a JSON object, or has Ignore=true yields "no active dataset" — Load
// never returns an error for these cases, only File{Dataset: nil}.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("reading control file %s: %w", path, err)
	}

	var wire wireFile
	if err := json.Unmarshal(data, &wire); err != nil {
		return File{}, nil
	}

	if wire.Ignore || wire.Dataset == nil {
		return File{Ignore: wire.Ignore}, nil
	}

	id, ok := dataset.ParseID(*wire.Dataset)
	if !ok {
		return File{}, nil
	}

	return File{Dataset: &id}, nil
}

// SaveIgnoring writes the control file with ignore=true and no dataset,
// the first phase of the two-phase swap: a crash after this write still
// loads as "no active dataset", never a stale pointer.
func SaveIgnoring(path string) error {
	return writeWire(path, wireFile{Ignore: true})
}

// SaveActive writes the control file with ignore=false and the given
// dataset, the second phase of the two-phase swap.
func SaveActive(path string, id dataset.ID) error {
	tag := id.String()
	return writeWire(path, wireFile{Dataset: &tag, Ignore: false})
}

// Swap performs the full two-phase control-file write that reassigns the
// active dataset: first ignore=true, then dataset=newActive,ignore=false.
// A crash between the two writes leaves the file at ignore=true, which
// Load treats as "no active dataset" — never a pointer to a torn swap.
//
// Callers that need to update other in-memory state strictly between the
// two phases (as the Mirror Engine does) should call [SaveIgnoring] and
// [SaveActive] directly instead of this convenience wrapper.
func Swap(path string, newActive dataset.ID) error {
	if err := SaveIgnoring(path); err != nil {
		return fmt.Errorf("writing control file (phase 1, ignore=true): %w", err)
	}

	if err := SaveActive(path, newActive); err != nil {
		return fmt.Errorf("writing control file (phase 2, dataset=%s): %w", newActive, err)
	}

	return nil
}

func writeWire(path string, wire wireFile) error {
	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshaling control file: %w", err)
	}

	if err := natatomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("atomically writing %s: %w", path, err)
	}

	return nil
}
