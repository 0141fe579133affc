package textutil

import (
	"math"
	"testing"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{"identical", "alice", "alice", 0},
		{"empty a", "", "alice", 5},
		{"empty b", "alice", "", 5},
		{"both empty", "", "", 0},
		{"single substitution", "jsmith", "jsmyth", 1},
		{"insertion", "alice", "alices", 1},
		{"transposition costs two", "alice", "alcie", 2},
		{"unicode runes", "garcía", "garcia", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LevenshteinDistance(tt.a, tt.b); got != tt.want {
				t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestLevenshteinDistanceSymmetric(t *testing.T) {
	a, b := "alice.smith", "asmith"
	if LevenshteinDistance(a, b) != LevenshteinDistance(b, a) {
		t.Error("distance not symmetric")
	}
}

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical", "asmith", "asmith", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "asmith", "", 0.0},
		{"single edit of six", "jsmith", "jsmyth", 1.0 - 1.0/6.0},
		{"disjoint", "abc", "xyz", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SimilarityRatio(tt.a, tt.b)
			if math.Abs(got-tt.want) > 0.0001 {
				t.Errorf("SimilarityRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarityRatioBelowThresholdForShortenedName(t *testing.T) {
	// "asmith" against the concatenated full name is a poor direct match;
	// the derived key forms exist to close this gap.
	got := SimilarityRatio("asmith", "alicesmith")
	if got >= 0.85 {
		t.Errorf("SimilarityRatio = %v, expected below 0.85", got)
	}
}
