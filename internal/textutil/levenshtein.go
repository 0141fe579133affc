package textutil

// LevenshteinDistance computes the minimum number of single-character edits
// (insertions, deletions, or substitutions) required to transform a into b.
func LevenshteinDistance(a, b string) int {
	aRunes := []rune(a)
	bRunes := []rune(b)
	aLen := len(aRunes)
	bLen := len(bRunes)

	if aLen == 0 {
		return bLen
	}
	if bLen == 0 {
		return aLen
	}

	// Two rows instead of the full matrix; iterate the shorter string in the
	// inner loop for O(min(m,n)) space.
	if aLen > bLen {
		aRunes, bRunes = bRunes, aRunes
		aLen, bLen = bLen, aLen
	}

	prevRow := make([]int, aLen+1)
	currRow := make([]int, aLen+1)
	for i := 0; i <= aLen; i++ {
		prevRow[i] = i
	}

	for j := 1; j <= bLen; j++ {
		currRow[0] = j
		for i := 1; i <= aLen; i++ {
			cost := 1
			if aRunes[i-1] == bRunes[j-1] {
				cost = 0
			}
			deletion := prevRow[i] + 1
			insertion := currRow[i-1] + 1
			substitution := prevRow[i-1] + cost
			currRow[i] = min(deletion, insertion, substitution)
		}
		prevRow, currRow = currRow, prevRow
	}

	return prevRow[aLen]
}

// SimilarityRatio computes a normalized similarity score between two strings:
// 1 - distance/max(len(a), len(b)). Returns 1.0 for identical strings
// (including two empty strings) and 0.0 for completely different ones.
func SimilarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	aLen := len([]rune(a))
	bLen := len([]rune(b))
	maxLen := max(aLen, bLen)
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(LevenshteinDistance(a, b))/float64(maxLen)
}
