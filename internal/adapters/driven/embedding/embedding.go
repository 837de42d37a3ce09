// Package embedding holds helpers shared by the embedding service
// adapters: input truncation and output normalization. Every adapter
// must return unit-length vectors and apply the same truncation
// policy so identical inputs embed identically across providers.
package embedding

import "math"

// Truncate cuts text to at most maxChars runes. Truncation happens
// on a rune boundary so multi-byte input never splits mid-character.
// Non-positive maxChars leaves the text unchanged.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}

// Normalize scales v to unit L2 norm in place and returns it. A zero
// vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
