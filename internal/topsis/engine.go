// Package topsis ranks pipe materials with the TOPSIS method: build the decision
// matrix, normalize each column by its Euclidean norm, weight it, find the ideal
// and anti-ideal solutions, then score each material by its relative closeness to
// the ideal. Every intermediate step is returned for audit.
package topsis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/MikeSquared-Agency/PipeSelect/internal/catalog"
)

var (
	ErrUnknownCriterion   = errors.New("topsis: criterion not in catalog")
	ErrDuplicateSelection = errors.New("topsis: duplicate selection")
)

// Input bundles everything one ranking run needs. The engine reads it and never
// mutates it.
type Input struct {
	Materials         []catalog.Material
	CriteriaKeys      []string
	Criteria          []catalog.Criterion
	CostByMaterial    map[string]float64
	WeightByCriterion map[string]float64
}

// Trail holds the intermediate values of a run. Rows follow the material selection
// order and columns the criteria selection order, independent of the final ranking.
type Trail struct {
	Initial             [][]float64 `json:"initial_matrix"`
	Normalized          [][]float64 `json:"normalized_matrix"`
	Weighted            [][]float64 `json:"weighted_matrix"`
	Ideal               []float64   `json:"ideal_solution"`
	AntiIdeal           []float64   `json:"anti_ideal_solution"`
	DistanceToIdeal     []float64   `json:"distance_to_ideal"`
	DistanceToAntiIdeal []float64   `json:"distance_to_anti_ideal"`
}

// Result is one ranked material. Score is NaN when the material is at zero
// distance from both the ideal and the anti-ideal solution.
type Result struct {
	Name     string
	Score    float64
	Material catalog.Material
	Values   map[string]float64
	Trail    *Trail
}

// IsDegenerate reports whether a score is the zero-separation sentinel.
func IsDegenerate(score float64) bool {
	return math.IsNaN(score)
}

// Rank scores the selected materials against the selected criteria and returns
// them best first. An empty material or criteria selection yields an empty list.
func Rank(in Input) ([]Result, error) {
	if len(in.Materials) == 0 || len(in.CriteriaKeys) == 0 {
		return []Result{}, nil
	}
	if err := checkUnique(in); err != nil {
		return nil, err
	}
	benefit, err := polarities(in.CriteriaKeys, in.Criteria)
	if err != nil {
		return nil, err
	}

	initial := buildMatrix(in)
	normalized := normalize(initial)
	weighted := applyWeights(normalized, in.CriteriaKeys, in.WeightByCriterion)
	ideal, antiIdeal := idealSolutions(weighted, benefit)
	dPlus := distances(weighted, ideal)
	dMinus := distances(weighted, antiIdeal)

	trail := Trail{
		Initial:             initial,
		Normalized:          normalized,
		Weighted:            weighted,
		Ideal:               ideal,
		AntiIdeal:           antiIdeal,
		DistanceToIdeal:     dPlus,
		DistanceToAntiIdeal: dMinus,
	}

	results := make([]Result, len(in.Materials))
	for i, m := range in.Materials {
		values := make(map[string]float64, len(in.CriteriaKeys))
		for j, key := range in.CriteriaKeys {
			values[key] = initial[i][j]
		}
		results[i] = Result{
			Name:     m.Name,
			Score:    closeness(dPlus[i], dMinus[i]),
			Material: m,
			Values:   values,
			Trail:    trail.clone(),
		}
	}

	sortResults(results)
	return results, nil
}

func checkUnique(in Input) error {
	names := make(map[string]bool, len(in.Materials))
	for _, m := range in.Materials {
		if names[m.Name] {
			return fmt.Errorf("%w: material %s", ErrDuplicateSelection, m.Name)
		}
		names[m.Name] = true
	}
	keys := make(map[string]bool, len(in.CriteriaKeys))
	for _, k := range in.CriteriaKeys {
		if keys[k] {
			return fmt.Errorf("%w: criterion %s", ErrDuplicateSelection, k)
		}
		keys[k] = true
	}
	return nil
}

// polarities resolves the benefit flag of each selected key. Keys missing from the
// catalog are rejected rather than guessed.
func polarities(keys []string, criteria []catalog.Criterion) ([]bool, error) {
	idx := catalog.Index(criteria)
	benefit := make([]bool, len(keys))
	for j, key := range keys {
		c, ok := idx[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCriterion, key)
		}
		benefit[j] = c.IsBenefit
	}
	return benefit, nil
}

// buildMatrix is stage 1. The cost column comes from the caller's cost map.
func buildMatrix(in Input) [][]float64 {
	m := make([][]float64, len(in.Materials))
	for i, mat := range in.Materials {
		row := make([]float64, len(in.CriteriaKeys))
		for j, key := range in.CriteriaKeys {
			if key == catalog.CostKey {
				row[j] = in.CostByMaterial[mat.Name]
			} else {
				row[j] = mat.Attributes[key]
			}
		}
		m[i] = row
	}
	return m
}

// normalize is stage 2: each column is divided by its Euclidean norm. A column of
// zeros stays all zeros.
func normalize(m [][]float64) [][]float64 {
	out := newMatrix(len(m), len(m[0]))
	for j := range m[0] {
		norm := columnNorm(m, j)
		if norm == 0 {
			continue
		}
		for i := range m {
			out[i][j] = m[i][j] / norm
		}
	}
	return out
}

// applyWeights is stage 3. A key with no weight entry weighs 0.
func applyWeights(m [][]float64, keys []string, weights map[string]float64) [][]float64 {
	out := newMatrix(len(m), len(keys))
	for j, key := range keys {
		w := weights[key]
		for i := range m {
			out[i][j] = m[i][j] * w
		}
	}
	return out
}

// columnNorm sums squares top to bottom. When that overflows for large finite
// values the norm is recomputed scaled by the column's largest magnitude.
func columnNorm(m [][]float64, j int) float64 {
	var sumSq float64
	for i := range m {
		sumSq += m[i][j] * m[i][j]
	}
	if !math.IsInf(sumSq, 1) {
		return math.Sqrt(sumSq)
	}

	var scale float64
	for i := range m {
		scale = math.Max(scale, math.Abs(m[i][j]))
	}
	var scaled float64
	for i := range m {
		r := m[i][j] / scale
		scaled += r * r
	}
	return scale * math.Sqrt(scaled)
}

// idealSolutions is stage 4, computed over the weighted matrix.
func idealSolutions(m [][]float64, benefit []bool) (ideal, antiIdeal []float64) {
	ideal = make([]float64, len(benefit))
	antiIdeal = make([]float64, len(benefit))
	for j := range benefit {
		lo, hi := m[0][j], m[0][j]
		for i := 1; i < len(m); i++ {
			lo = math.Min(lo, m[i][j])
			hi = math.Max(hi, m[i][j])
		}
		if benefit[j] {
			ideal[j], antiIdeal[j] = hi, lo
		} else {
			ideal[j], antiIdeal[j] = lo, hi
		}
	}
	return ideal, antiIdeal
}

// distances returns each row's Euclidean distance to the reference vector.
func distances(m [][]float64, ref []float64) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		var sumSq float64
		for j, v := range row {
			d := v - ref[j]
			sumSq += d * d
		}
		out[i] = math.Sqrt(sumSq)
	}
	return out
}

// closeness is stage 5. Zero total separation yields NaN instead of dividing by zero.
func closeness(dPlus, dMinus float64) float64 {
	total := dPlus + dMinus
	if total == 0 {
		return math.NaN()
	}
	return dMinus / total
}

// sortResults orders by descending score with NaN last; ties keep selection order.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return ranksAbove(results[i].Score, results[j].Score)
	})
}

func ranksAbove(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a > b
}

func newMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

func cloneMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

func (t Trail) clone() *Trail {
	return &Trail{
		Initial:             cloneMatrix(t.Initial),
		Normalized:          cloneMatrix(t.Normalized),
		Weighted:            cloneMatrix(t.Weighted),
		Ideal:               append([]float64(nil), t.Ideal...),
		AntiIdeal:           append([]float64(nil), t.AntiIdeal...),
		DistanceToIdeal:     append([]float64(nil), t.DistanceToIdeal...),
		DistanceToAntiIdeal: append([]float64(nil), t.DistanceToAntiIdeal...),
	}
}
