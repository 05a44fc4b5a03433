// Package dataset implements the on-disk directory layout that holds one
// immutable snapshot of all prefix ranges, in either a one-file-per-prefix
// text form or a compact binary form with on-disk binary search.
package dataset

import "fmt"

// ID is a dataset tag drawn from the closed set {A, B}.
type ID int

const (
	A ID = iota
	B
)

// Other toggles between A and B.
func (id ID) Other() ID {
	if id == A {
		return B
	}
	return A
}

// String renders the lowercase tag ("a"/"b") used in directory names and
// the control file.
func (id ID) String() string {
	switch id {
	case A:
		return "a"
	case B:
		return "b"
	default:
		return fmt.Sprintf("ID(%d)", int(id))
	}
}

// DirName returns the well-known directory name for this dataset, e.g.
// "hashes-a".
func (id ID) DirName() string {
	return "hashes-" + id.String()
}

// ParseID parses the lowercase tag used in the control file ("a" or "b").
func ParseID(s string) (ID, bool) {
	switch s {
	case "a":
		return A, true
	case "b":
		return B, true
	default:
		return 0, false
	}
}
