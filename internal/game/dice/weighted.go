package dice

// WeightedIndex draws an index from weights with probability proportional to
// its weight. Negative weights count as zero.
//
// Precondition: src must be non-nil.
// Postcondition: Returns -1 iff the total weight is zero; otherwise returns an
// index i with weights[i] > 0.
func WeightedIndex(src Source, weights []float64) int {
	cumulative := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		if w > 0 {
			total += w
		}
		cumulative[i] = total
	}
	if total <= 0 {
		return -1
	}
	roll := src.Float64() * total
	for i, c := range cumulative {
		if roll < c && weights[i] > 0 {
			return i
		}
	}
	// Float rounding can leave roll == total; pick the last positive weight.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return -1
}

// SampleWithoutReplacement returns k distinct indices drawn uniformly from [0, n).
// When k >= n every index is returned in random order.
//
// Precondition: src must be non-nil; n >= 0.
// Postcondition: len(result) == min(k, n); indices are unique.
func SampleWithoutReplacement(src Source, n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return []int{}
	}
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	// Partial Fisher-Yates.
	for i := 0; i < k; i++ {
		j := i + src.Intn(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}
