package journey

import "math/rand/v2"

const lowerLetters = "abcdefghijklmnopqrstuvwxyz"

// StateVector is a pair of equal-length strings describing crossword fill
// progress: Primary holds a lowercase letter or "#" per cell, Secondary
// holds "1"/"0" aligned to filled/empty (spec.md §4.3, invariant 4).
type StateVector struct {
	Primary   string
	Secondary string
}

// NewStateVector builds the initial vector for a journey: fill-ratio 0.1,
// positions chosen by an unbiased draw over the full length.
func NewStateVector(length int) StateVector {
	primary := make([]byte, length)
	secondary := make([]byte, length)
	for i := range primary {
		primary[i] = '#'
		secondary[i] = '0'
	}

	fillCount := int(float64(length) * 0.1)
	filled := pickDistinct(length, fillCount)
	for _, i := range filled {
		primary[i] = randomLetter()
		secondary[i] = '1'
	}

	return StateVector{Primary: string(primary), Secondary: string(secondary)}
}

// Mutate picks k ∈ [1, min(5, len)] distinct positions and flips each
// between empty and a fresh random letter (spec.md §4.3).
func (v StateVector) Mutate() StateVector {
	length := len(v.Primary)
	primary := []byte(v.Primary)
	secondary := []byte(v.Secondary)

	maxK := min(5, length)
	k := 1
	if maxK > 1 {
		k = rand.IntN(maxK) + 1
	}

	for _, i := range pickDistinct(length, k) {
		if secondary[i] == '1' {
			primary[i] = '#'
			secondary[i] = '0'
		} else {
			primary[i] = randomLetter()
			secondary[i] = '1'
		}
	}

	return StateVector{Primary: string(primary), Secondary: string(secondary)}
}

// Complete returns a fully filled vector: every position a fresh random
// letter, every secondary "1".
func (v StateVector) Complete() StateVector {
	length := len(v.Primary)
	primary := make([]byte, length)
	secondary := make([]byte, length)
	for i := range primary {
		primary[i] = randomLetter()
		secondary[i] = '1'
	}
	return StateVector{Primary: string(primary), Secondary: string(secondary)}
}

func randomLetter() byte {
	return lowerLetters[rand.IntN(len(lowerLetters))]
}

// pickDistinct draws count distinct indices in [0, n) uniformly, by
// shuffling all n indices and keeping the first count.
func pickDistinct(n, count int) []int {
	if count > n {
		count = n
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rand.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	return indices[:count]
}
