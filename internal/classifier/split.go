package classifier

import (
	"math"
	"math/rand/v2"
	"sort"
)

// StratifiedSplit partitions row indices into train and test sets, keeping
// each label's proportion. Every label with at least two rows keeps at least
// one row on each side.
func StratifiedSplit(labels []string, testSize float64, seed uint64) (train, test []int) {
	byLabel := make(map[string][]int)
	for i, l := range labels {
		byLabel[l] = append(byLabel[l], i)
	}
	classes := make([]string, 0, len(byLabel))
	for l := range byLabel {
		classes = append(classes, l)
	}
	sort.Strings(classes)

	rng := rand.New(rand.NewPCG(seed, seed))
	for _, l := range classes {
		idx := byLabel[l]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })

		n := len(idx)
		nTest := int(math.Round(float64(n) * testSize))
		if testSize > 0 && n >= 2 && nTest < 1 {
			nTest = 1
		}
		if nTest >= n {
			nTest = n - 1
		}
		if nTest < 0 {
			nTest = 0
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}
