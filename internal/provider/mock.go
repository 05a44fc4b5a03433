package provider

import (
	"context"
	"crypto/sha1" //nolint:gosec // SHA-1 is the hash family this mirror indexes, not used for any security purpose here
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/calvinalkan/pwnedmirror/internal/prefix"
)

// syntheticCount is the size of the Mock provider's fixed pre-sorted
// synthetic record array.
const syntheticCount = 1009

// KnownLeak is a password whose SHA-1 the Mock provider injects into its
// owning prefix's synthetic range, alongside the synthetic filler records.
type KnownLeak struct {
	Password string
	Count    int
}

type syntheticRecord struct {
	suffix string
	count  int
}

// Mock is the deterministic synthetic provider used for tests and for the
// mirror CLI's "--mocked" mode: it fabricates a reproducible dataset
// without any network access, so tests can assert exact content.
//
// For prefix "00000" it delegates to an injected Fallback (the real
// upstream, or a fixture), matching the spec's carve-out for that one
// prefix. All other prefixes are served from a fixed synthetic record
// array plus any configured [KnownLeak] entries that land in that prefix.
type Mock struct {
	Fallback Provider

	synthetic []syntheticRecord
	known     map[string][]syntheticRecord // prefix -> injected records
}

// NewMock builds a Mock with the given known leaks injected into their
// owning prefixes.
func NewMock(knownLeaks []KnownLeak) *Mock {
	m := &Mock{
		synthetic: buildSyntheticArray(),
		known:     make(map[string][]syntheticRecord),
	}

	for _, leak := range knownLeaks {
		m.addKnownLeak(leak)
	}

	return m
}

func (m *Mock) addKnownLeak(leak KnownLeak) {
	sum := sha1.Sum([]byte(leak.Password)) //nolint:gosec // see package-level note
	full := fmt.Sprintf("%X", sum)
	p := full[:prefix.Length]
	suffix := full[prefix.Length:]

	m.known[p] = append(m.known[p], syntheticRecord{suffix: suffix, count: leak.Count})
}

func (m *Mock) GetRange(ctx context.Context, prefixText string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if prefixText == "00000" {
		if m.Fallback != nil {
			return m.Fallback.GetRange(ctx, prefixText)
		}
		return "", nil
	}

	n, err := prefix.ToIndex(prefixText)
	if err != nil {
		return "", err
	}

	offset := ((n+3234)%54347)%((1009*9/11)+1) + 1
	amount := ((n+2832)%71203)%8235%4 + 1

	recs := append([]syntheticRecord(nil), m.synthetic[offset:offset+amount]...)
	recs = append(recs, m.known[prefixText]...)

	sort.Slice(recs, func(i, j int) bool { return recs[i].suffix < recs[j].suffix })

	lines := make([]string, len(recs))
	for i, r := range recs {
		lines[i] = fmt.Sprintf("%s:%d", r.suffix, r.count)
	}

	return strings.Join(lines, "\n"), nil
}

// buildSyntheticArray derives the fixed pre-sorted synthetic record set:
// for i in [0, syntheticCount), suffix = SHA1(str(i*397+124))[5:] and
// count = hex_to_int(SHA1(str(i*82+59))[0]) + 1.
func buildSyntheticArray() []syntheticRecord {
	out := make([]syntheticRecord, syntheticCount)

	for i := range syntheticCount {
		suffixSeed := strconv.Itoa(i*397 + 124)
		suffixSum := sha1.Sum([]byte(suffixSeed)) //nolint:gosec // see package-level note
		suffixHex := fmt.Sprintf("%X", suffixSum)

		countSeed := strconv.Itoa(i*82 + 59)
		countSum := sha1.Sum([]byte(countSeed)) //nolint:gosec // see package-level note
		countHex := fmt.Sprintf("%X", countSum)

		firstNibble, _ := strconv.ParseInt(countHex[:1], 16, 64)

		out[i] = syntheticRecord{
			suffix: suffixHex[prefix.Length:],
			count:  int(firstNibble) + 1,
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].suffix < out[j].suffix })

	return out
}

var _ Provider = (*Mock)(nil)
