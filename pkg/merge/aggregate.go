package merge

import (
	"github.com/rawveg/openapi-directory-mcp-sub002/pkg/catalog"
)

// Metrics combines two raw directory-wide metrics objects into one,
// validating every field and correcting for the identifier overlap
// between the two catalogs.
//
// Raw counts are sanitized field-by-field: a negative value is treated
// as 0. Identifier totals use set arithmetic rather than naive
// summation: numAPIs = countA + countB - overlap (floored at 0), so two
// sources that each report 10 APIs with 3 shared identifiers aggregate
// to 17, never 20. When a source's raw metrics are entirely missing or
// invalid, its live API-map key count is used instead.
//
// numEndpoints has no observable exact formula across overlapping
// sources; we scale the summed endpoint counts by the unique-API share
// (numAPIs / (countA + countB)). The estimate is monotonic in both
// inputs and never negative.
func Metrics(a, b *catalog.Metrics, apisA, apisB map[string]catalog.API) catalog.Metrics {
	ma := sanitizeMetrics(a, apisA)
	mb := sanitizeMetrics(b, apisB)

	overlap := overlapCount(apisA, apisB)

	out := catalog.Metrics{
		NumSpecs:     dedupCount(ma.NumSpecs, mb.NumSpecs, overlap),
		NumAPIs:      dedupCount(ma.NumAPIs, mb.NumAPIs, overlap),
		NumProviders: maxInt(ma.NumProviders, mb.NumProviders),
		Unreachable:  ma.Unreachable + mb.Unreachable,
		Invalid:      ma.Invalid + mb.Invalid,
		Unofficial:   ma.Unofficial + mb.Unofficial,
		Fixes:        ma.Fixes + mb.Fixes,
		Stars:        maxInt(ma.Stars, mb.Stars),
	}
	out.NumEndpoints = estimateEndpoints(ma, mb, out.NumAPIs)
	return out
}

// sanitizeMetrics validates a raw metrics object field-by-field and
// falls back to counting live API-map keys when the object is missing
// or its identifier counts are unusable.
func sanitizeMetrics(m *catalog.Metrics, apis map[string]catalog.API) catalog.Metrics {
	if m == nil {
		n := len(apis)
		return catalog.Metrics{NumSpecs: n, NumAPIs: n}
	}
	out := catalog.Metrics{
		NumSpecs:     nonNegative(m.NumSpecs),
		NumAPIs:      nonNegative(m.NumAPIs),
		NumEndpoints: nonNegative(m.NumEndpoints),
		NumProviders: nonNegative(m.NumProviders),
		Unreachable:  nonNegative(m.Unreachable),
		Invalid:      nonNegative(m.Invalid),
		Unofficial:   nonNegative(m.Unofficial),
		Fixes:        nonNegative(m.Fixes),
		Stars:        nonNegative(m.Stars),
	}
	if out.NumAPIs == 0 && len(apis) > 0 {
		out.NumAPIs = len(apis)
	}
	if out.NumSpecs == 0 && out.NumAPIs > 0 {
		out.NumSpecs = out.NumAPIs
	}
	return out
}

// overlapCount is the size of the identifier intersection of two
// API maps.
func overlapCount(a, b map[string]catalog.API) int {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	overlap := 0
	for id := range small {
		if _, ok := large[id]; ok {
			overlap++
		}
	}
	return overlap
}

// dedupCount combines two counts with the known overlap, floored at 0.
func dedupCount(a, b, overlap int) int {
	n := a + b - overlap
	if n < 0 {
		return 0
	}
	return n
}

// estimateEndpoints derives a combined endpoint count scaled by the
// unique-API share. Monotonic in both endpoint inputs, never negative.
func estimateEndpoints(a, b catalog.Metrics, numAPIs int) int {
	sum := a.NumEndpoints + b.NumEndpoints
	gross := a.NumAPIs + b.NumAPIs
	if sum <= 0 {
		return 0
	}
	if gross <= 0 || numAPIs >= gross {
		return sum
	}
	return sum * numAPIs / gross
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
