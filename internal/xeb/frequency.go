// Package xeb builds measurement frequency tables from amplitude files and
// computes the linear cross-entropy benchmarking fidelity.
package xeb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrEmptyTable    = errors.New("frequency table has no samples")
	ErrMixedWidth    = errors.New("bitstrings have mixed widths")
	ErrMalformedLine = errors.New("malformed amplitude line")
)

// FrequencyTable maps each observed bitstring to its count and to the
// reference weight |amplitude|^2 recorded with its first occurrence.
type FrequencyTable struct {
	Counts  map[string]int64
	Weights map[string]float64
}

func NewFrequencyTable() *FrequencyTable {
	return &FrequencyTable{Counts: map[string]int64{}, Weights: map[string]float64{}}
}

// Observe counts one sample. The weight is kept from the first observation of
// a bitstring; later weights for the same key are ignored.
func (t *FrequencyTable) Observe(bitstring string, weight float64) {
	if _, seen := t.Counts[bitstring]; !seen {
		t.Weights[bitstring] = weight
	}
	t.Counts[bitstring]++
}

// Merge adds other's counts into t under the same first-weight rule.
func (t *FrequencyTable) Merge(other *FrequencyTable) {
	for _, k := range other.Keys() {
		if _, seen := t.Counts[k]; !seen {
			t.Weights[k] = other.Weights[k]
		}
		t.Counts[k] += other.Counts[k]
	}
}

// Keys returns the observed bitstrings in sorted order.
func (t *FrequencyTable) Keys() []string {
	keys := make([]string, 0, len(t.Counts))
	for k := range t.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (t *FrequencyTable) Samples() int64 {
	var n int64
	for _, c := range t.Counts {
		n += c
	}
	return n
}

// Width returns the common bitstring length.
func (t *FrequencyTable) Width() (int, error) {
	width := -1
	for _, k := range t.Keys() {
		switch {
		case width < 0:
			width = len(k)
		case len(k) != width:
			return 0, fmt.Errorf("%w: %d and %d", ErrMixedWidth, width, len(k))
		}
	}
	if width < 0 {
		return 0, ErrEmptyTable
	}
	return width, nil
}

// ReadAmplitudes parses `<bitstring> <real> <imag>` lines and observes each one.
// Blank lines are skipped.
func (t *FrequencyTable) ReadAmplitudes(r io.Reader) (int64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var n int64
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 {
			return n, fmt.Errorf("%w %d: want 3 fields, got %d", ErrMalformedLine, lineNo, len(fields))
		}
		if strings.Trim(fields[0], "01") != "" {
			return n, fmt.Errorf("%w %d: %q is not a bitstring", ErrMalformedLine, lineNo, fields[0])
		}
		re, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return n, fmt.Errorf("%w %d: real part: %v", ErrMalformedLine, lineNo, err)
		}
		im, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return n, fmt.Errorf("%w %d: imaginary part: %v", ErrMalformedLine, lineNo, err)
		}
		t.Observe(fields[0], re*re+im*im)
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("read amplitudes: %w", err)
	}
	return n, nil
}

// LoadFiles builds one table from several amplitude files, in the order given.
// A missing file is an error.
func LoadFiles(paths ...string) (*FrequencyTable, error) {
	table := NewFrequencyTable()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		_, err = table.ReadAmplitudes(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return table, nil
}
