package provider

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/mmap"
)

// searchBlockSize is a reasonable initial binary-search block size; lines
// are treated as variable-length since "HASH40:COUNT\n" has no fixed width
// (COUNT varies).
const searchBlockSize = 4096

// FileImporter serves prefix ranges from a single sorted bulk file of
// "HASH40:COUNT\n" lines (ASCII, ascending by HASH40), via byte-offset
// binary search followed by a bounded linear scan — it never loads the
// file into memory, using [golang.org/x/exp/mmap] exactly as the
// hm-edu/pwnedpass offline reader does for its fixed-width records, here
// generalized to the variable-width line format of the bulk import file.
type FileImporter struct {
	reader *mmap.ReaderAt
	size   int64
}

// OpenFileImporter mmaps path for reading.
func OpenFileImporter(path string) (*FileImporter, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening bulk file %s: %w", path, err)
	}

	return &FileImporter{reader: r, size: int64(r.Len())}, nil
}

// Close releases the mmap.
func (f *FileImporter) Close() error {
	return f.reader.Close()
}

func (f *FileImporter) GetRange(ctx context.Context, prefix string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	front, err := f.approximateStart(prefix)
	if err != nil {
		return "", fmt.Errorf("%w: searching bulk file: %w", ErrUnavailable, err)
	}

	start, err := f.lineStartAtOrAfter(front)
	if err != nil {
		return "", fmt.Errorf("%w: searching bulk file: %w", ErrUnavailable, err)
	}

	var lines []string

	section := io.NewSectionReader(f.reader, start, f.size-start)
	scanner := bufio.NewScanner(section)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < len(prefix) {
			continue
		}

		p := line[:len(prefix)]
		if p < prefix {
			continue
		}
		if p > prefix {
			break
		}

		lines = append(lines, line[len(prefix):])
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: scanning bulk file: %w", ErrUnavailable, err)
	}

	return strings.Join(lines, "\n"), nil
}

// approximateStart binary-searches for a byte offset at or before the
// first line whose prefix equals or exceeds target, within one block's
// distance. The caller follows up with a linear scan to find the exact
// boundary.
func (f *FileImporter) approximateStart(target string) (int64, error) {
	front, back := int64(0), f.size

	for back-front > searchBlockSize {
		mid := front + (back-front)/2

		lineStart, err := f.lineStartAtOrAfter(mid)
		if err != nil {
			return 0, err
		}

		if lineStart >= back {
			back = mid
			continue
		}

		line, consumed, err := f.readLineAt(lineStart)
		if err != nil {
			return 0, err
		}

		if len(line) >= len(target) && line[:len(target)] < target {
			front = lineStart + consumed
		} else {
			back = lineStart
		}
	}

	return front, nil
}

// lineStartAtOrAfter returns the byte offset of the first line beginning
// at or after pos: pos itself if pos==0, or the offset just past the next
// newline at or after pos-1 otherwise (so a pos that already starts a line
// is returned unchanged). Returns f.size if no such line exists
// (pos is within or past the final partial/empty tail).
func (f *FileImporter) lineStartAtOrAfter(pos int64) (int64, error) {
	if pos == 0 {
		return 0, nil
	}

	buf := make([]byte, 4096)

	for offset := pos - 1; offset < f.size; {
		n, err := f.reader.ReadAt(buf, offset)
		if n == 0 && err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}

		for i := range n {
			if buf[i] == '\n' {
				return offset + int64(i) + 1, nil
			}
		}

		offset += int64(n)

		if errors.Is(err, io.EOF) || n == 0 {
			break
		}
	}

	return f.size, nil
}

// readLineAt reads one line starting at start, returning its text (without
// the trailing newline) and the number of bytes consumed including the
// newline (or up to EOF if the file doesn't end in one).
func (f *FileImporter) readLineAt(start int64) (string, int64, error) {
	var sb strings.Builder

	buf := make([]byte, 256)

	for offset := start; offset < f.size; {
		n, err := f.reader.ReadAt(buf, offset)
		if n == 0 && err != nil && !errors.Is(err, io.EOF) {
			return "", 0, err
		}

		for i := range n {
			if buf[i] == '\n' {
				return sb.String(), offset + int64(i) + 1 - start, nil
			}
			sb.WriteByte(buf[i])
		}

		offset += int64(n)

		if errors.Is(err, io.EOF) || n == 0 {
			break
		}
	}

	return sb.String(), f.size - start, nil
}

var _ Provider = (*FileImporter)(nil)
