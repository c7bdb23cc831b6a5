package classifier

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Tokenize lowercases the text and splits it on any non-letter, non-digit rune.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Features maps text into a sparse, L2-normalized hashed bag-of-words vector
// of the given dimension.
func Features(text string, dim int) map[int]float64 {
	features := make(map[int]float64)
	for _, token := range Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		features[int(h.Sum32())%dim]++
	}

	var norm float64
	for _, v := range features {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i, v := range features {
			features[i] = v / norm
		}
	}
	return features
}
