package match

// Bucket partitions candidate confidence for presentation and auto-approval.
type Bucket string

const (
	BucketHigh   Bucket = "high"
	BucketMedium Bucket = "medium"
	BucketLow    Bucket = "low"
)

// Bucket thresholds. A candidate at exactly a boundary lands in the upper
// bucket.
const (
	highConfidenceFloor   = 0.9
	mediumConfidenceFloor = 0.7
)

// BucketFor places a confidence value into its bucket.
func BucketFor(confidence float64) Bucket {
	switch {
	case confidence >= highConfidenceFloor:
		return BucketHigh
	case confidence >= mediumConfidenceFloor:
		return BucketMedium
	default:
		return BucketLow
	}
}
