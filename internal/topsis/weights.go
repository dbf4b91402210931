package topsis

import (
	"errors"
	"fmt"
	"math"

	"github.com/MikeSquared-Agency/PipeSelect/internal/catalog"
)

// DefaultWeightTolerance is the accepted deviation of a weight sum from 1.0.
const DefaultWeightTolerance = 0.001

var (
	ErrWeightSum   = errors.New("topsis: weights must sum to 1.0")
	ErrWeightRange = errors.New("topsis: weight out of [0,1]")
)

// Weights maps criterion keys to their relative importance.
// Rank does not enforce the sum; callers check it with Validate.
type Weights map[string]float64

// Sum returns the total weight of the given keys.
func (w Weights) Sum(keys []string) float64 {
	var total float64
	for _, k := range keys {
		total += w[k]
	}
	return total
}

// ValidateRange checks that every selected weight lies in [0,1].
func (w Weights) ValidateRange(keys []string) error {
	for _, k := range keys {
		v := w[k]
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s=%g", ErrWeightRange, k, v)
		}
	}
	return nil
}

// Validate checks the range of every selected weight and that they sum to 1.0
// within tolerance.
func (w Weights) Validate(keys []string, tolerance float64) error {
	if err := w.ValidateRange(keys); err != nil {
		return err
	}
	if sum := w.Sum(keys); math.Abs(sum-1.0) > tolerance {
		return fmt.Errorf("%w: got %.4f", ErrWeightSum, sum)
	}
	return nil
}

// Equal spreads a total weight of 1.0 evenly across keys.
func Equal(keys []string) Weights {
	w := make(Weights, len(keys))
	for _, k := range keys {
		w[k] = 1.0 / float64(len(keys))
	}
	return w
}

type GapKind string

const (
	GapWeight GapKind = "weight"
	GapCost   GapKind = "cost"
)

// Gap is an entry Rank will silently read as 0.
type Gap struct {
	Kind GapKind `json:"kind"`
	Key  string  `json:"key"`
}

func (g Gap) String() string {
	return string(g.Kind) + ":" + g.Key
}

// Gaps lists selected criteria without a weight and, when the cost criterion is
// selected, materials without a cost.
func (in Input) Gaps() []Gap {
	var gaps []Gap
	costSelected := false
	for _, k := range in.CriteriaKeys {
		if _, ok := in.WeightByCriterion[k]; !ok {
			gaps = append(gaps, Gap{Kind: GapWeight, Key: k})
		}
		if k == catalog.CostKey {
			costSelected = true
		}
	}
	if costSelected {
		for _, m := range in.Materials {
			if _, ok := in.CostByMaterial[m.Name]; !ok {
				gaps = append(gaps, Gap{Kind: GapCost, Key: m.Name})
			}
		}
	}
	return gaps
}
