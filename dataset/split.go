package dataset

import (
	"math"
	"math/rand"
)

// Split shuffles samples with a seeded source and holds out a validation fraction.
//
// The same seed and input always give the same split. The validation set is empty when fraction
// is zero and never takes every sample.
func Split[T any](samples []T, fraction float64, seed int64) (train, validation []T) {
	n := len(samples)
	order := rand.New(rand.NewSource(seed)).Perm(n)

	nVal := int(math.Round(float64(n) * fraction))
	if nVal >= n {
		nVal = n - 1
	}
	nVal = max(nVal, 0)

	validation = make([]T, 0, nVal)
	train = make([]T, 0, n-nVal)
	for i, idx := range order {
		if i < nVal {
			validation = append(validation, samples[idx])
		} else {
			train = append(train, samples[idx])
		}
	}
	return train, validation
}
