package xeb

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/osvaldoandrade/xebench/pkg/domain"
)

// Estimate returns the linear XEB fidelity 2^n * <p> - 1, where <p> is the
// sample-weighted mean reference weight and n the bitstring width.
func Estimate(t *FrequencyTable) (domain.FidelityResult, error) {
	if t == nil || len(t.Counts) == 0 {
		return domain.FidelityResult{}, ErrEmptyTable
	}
	n, err := t.Width()
	if err != nil {
		return domain.FidelityResult{}, err
	}

	keys := t.Keys()
	counts := make([]float64, len(keys))
	weights := make([]float64, len(keys))
	var total int64
	for i, k := range keys {
		c := t.Counts[k]
		counts[i] = float64(c)
		weights[i] = t.Weights[k]
		total += c
	}
	if total == 0 {
		return domain.FidelityResult{}, ErrEmptyTable
	}
	if n > 1023 {
		return domain.FidelityResult{}, fmt.Errorf("bitstring width %d overflows 2^n", n)
	}
	mean := floats.Dot(counts, weights) / float64(total)
	return domain.FidelityResult{
		Qubits:  n,
		Samples: total,
		Keys:    len(t.Counts),
		Mean:    mean,
		XEB:     math.Ldexp(mean, n) - 1,
	}, nil
}
