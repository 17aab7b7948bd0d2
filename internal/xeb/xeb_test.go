package xeb

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateWorkedExample(t *testing.T) {
	table := &FrequencyTable{
		Counts:  map[string]int64{"00": 3, "01": 1},
		Weights: map[string]float64{"00": 0.5, "01": 0.5},
	}
	res, err := Estimate(table)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Qubits)
	assert.Equal(t, int64(4), res.Samples)
	assert.InDelta(t, 0.5, res.Mean, 1e-12)
	assert.InDelta(t, 1.0, res.XEB, 1e-12)
}

func TestEstimateUnevenWeights(t *testing.T) {
	table := &FrequencyTable{
		Counts:  map[string]int64{"00": 2, "01": 1, "10": 1},
		Weights: map[string]float64{"00": 0.4, "01": 0.1, "10": 0.3},
	}
	res, err := Estimate(table)
	require.NoError(t, err)
	// (2*0.4 + 0.1 + 0.3) / 4 = 0.3
	assert.InDelta(t, 0.3, res.Mean, 1e-12)
	assert.InDelta(t, 0.2, res.XEB, 1e-12)
}

func TestEstimateUniformSamplerIsZero(t *testing.T) {
	table := NewFrequencyTable()
	for _, k := range []string{"000", "001", "010", "011", "100", "101", "110", "111"} {
		table.Observe(k, 1.0/8)
	}
	res, err := Estimate(table)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, res.XEB, 1e-12)
}

func TestEstimateRejectsEmpty(t *testing.T) {
	_, err := Estimate(NewFrequencyTable())
	assert.ErrorIs(t, err, ErrEmptyTable)

	zero := &FrequencyTable{Counts: map[string]int64{"01": 0}, Weights: map[string]float64{"01": 0.25}}
	res, err := Estimate(zero)
	assert.ErrorIs(t, err, ErrEmptyTable)
	assert.False(t, math.IsNaN(res.XEB))

	_, err = Estimate(nil)
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestEstimateRejectsMixedWidths(t *testing.T) {
	table := NewFrequencyTable()
	table.Observe("01", 0.25)
	table.Observe("011", 0.125)
	_, err := Estimate(table)
	assert.ErrorIs(t, err, ErrMixedWidth)
}

func TestObserveKeepsFirstWeight(t *testing.T) {
	table := NewFrequencyTable()
	table.Observe("10", 0.4)
	table.Observe("10", 0.9)
	assert.Equal(t, int64(2), table.Counts["10"])
	assert.Equal(t, 0.4, table.Weights["10"])

	other := NewFrequencyTable()
	other.Observe("10", 0.7)
	other.Observe("11", 0.1)
	table.Merge(other)
	assert.Equal(t, int64(3), table.Counts["10"])
	assert.Equal(t, 0.4, table.Weights["10"])
	assert.Equal(t, 0.1, table.Weights["11"])
	assert.Equal(t, int64(4), table.Samples())
}

func TestReadAmplitudes(t *testing.T) {
	input := strings.Join([]string{
		"0101 0.5 0.5",
		"",
		"0101 0.1 0.1",
		"1100 -0.6 0.0",
	}, "\n")
	table := NewFrequencyTable()
	n, err := table.ReadAmplitudes(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(2), table.Counts["0101"])
	assert.InDelta(t, 0.5, table.Weights["0101"], 1e-12)
	assert.InDelta(t, 0.36, table.Weights["1100"], 1e-12)
}

func TestReadAmplitudesMalformed(t *testing.T) {
	tests := []struct {
		name, input string
	}{
		{"too few fields", "0101 0.5\n"},
		{"not a bitstring", "01x1 0.5 0.1\n"},
		{"bad real", "0101 abc 0.1\n"},
		{"bad imag", "0101 0.1 i\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrequencyTable().ReadAmplitudes(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrMalformedLine)
		})
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("00 0.5 0.5\n01 0.1 0.0\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("00 0.9 0.0\n"), 0o644))

	table, err := LoadFiles(a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), table.Counts["00"])
	assert.InDelta(t, 0.5, table.Weights["00"], 1e-12)

	_, err = LoadFiles(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
