package probabilistic

// NaiveCardinality counts distinct items exactly. It keeps every distinct
// item in memory and is meant as ground truth for the estimators.
func NaiveCardinality(items []string) uint64 {
	unique := make(map[string]struct{}, len(items))
	for _, item := range items {
		unique[item] = struct{}{}
	}
	return uint64(len(unique))
}
