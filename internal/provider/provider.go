// Package provider implements the Range Provider capability: given a
// prefix, yields that prefix's record text from an upstream HTTP service,
// a sorted bulk file, or a deterministic synthetic generator.
package provider

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable is returned when a provider exhausts its retry budget (or
// otherwise cannot serve a prefix). The underlying cause is opaque to
// callers — the Mirror Engine only needs to know the fetch failed.
var ErrUnavailable = errors.New("provider unavailable")

// Provider is the capability the Mirror Engine fetches prefix ranges
// through.
//
// GetRange returns text that is either empty or one-or-more records
// separated by a single "\n" with no trailing newline, sorted by suffix
// ascending. Implementations are responsible for normalizing any "\r\n"
// line endings from their underlying source to "\n".
type Provider interface {
	GetRange(ctx context.Context, prefix string) (string, error)
}

// normalizeLineEndings converts "\r\n" to "\n" and trims a trailing
// newline, matching the text form every Provider implementation must
// return.
func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimRight(s, "\n")
}
