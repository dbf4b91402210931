package topsis

// Frontier returns the names of the Pareto-optimal materials over the raw decision
// matrix, in selection order. A material is dominated when another is at least as
// good on every selected criterion (by polarity) and strictly better on one.
// O(n^2) dominance check, fine for catalog-sized inputs.
func Frontier(in Input) ([]string, error) {
	if len(in.Materials) == 0 || len(in.CriteriaKeys) == 0 {
		return []string{}, nil
	}
	if err := checkUnique(in); err != nil {
		return nil, err
	}
	benefit, err := polarities(in.CriteriaKeys, in.Criteria)
	if err != nil {
		return nil, err
	}

	m := buildMatrix(in)
	frontier := []string{}
	for i := range m {
		dominated := false
		for j := range m {
			if i == j {
				continue
			}
			if dominates(m[j], m[i], benefit) {
				dominated = true
				break
			}
		}
		if !dominated {
			frontier = append(frontier, in.Materials[i].Name)
		}
	}
	return frontier, nil
}

func dominates(a, b []float64, benefit []bool) bool {
	strictly := false
	for j := range a {
		better, worse := a[j] > b[j], a[j] < b[j]
		if !benefit[j] {
			better, worse = worse, better
		}
		if worse {
			return false
		}
		if better {
			strictly = true
		}
	}
	return strictly
}
