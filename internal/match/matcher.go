package match

import "sort"

// Match ranks candidates by absolute distance to target and applies the
// tolerance window. When no candidate falls within the window the closest
// maxResults are returned anyway: an imperfect suggestion beats an empty
// list, so the window is a preference rather than a hard filter. An empty
// candidate list yields an empty result, which callers read as "try a
// different query" rather than an error.
//
// The sort is stable; candidates at equal distance keep their input order.
func Match(candidates []NormalizedCandidate, target, tolerance float64, maxResults int) []NormalizedCandidate {
	if len(candidates) == 0 {
		return []NormalizedCandidate{}
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	sorted := make([]NormalizedCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Distance < sorted[j].Distance
	})

	within := sorted
	for i, c := range sorted {
		if c.Distance > tolerance {
			within = sorted[:i]
			break
		}
	}

	picked := within
	if len(picked) == 0 {
		picked = sorted
	}
	if len(picked) > maxResults {
		picked = picked[:maxResults]
	}
	return picked
}
