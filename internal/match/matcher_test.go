package match

import (
	"math"
	"slices"
	"testing"

	"stitch/internal/identity"
)

func TestMatchSharedEmailLandsHigh(t *testing.T) {
	a := identity.Record{ServiceConfigID: 1, Service: "plex", NativeID: "11", Email: "alice@x.com", Username: "alice"}
	b := identity.Record{ServiceConfigID: 2, Service: "jellyfin", NativeID: "f3c2", Email: "ALICE@x.com", Username: "al1ce"}

	cand := Match(a, b)
	if cand == nil {
		t.Fatal("expected candidate")
	}
	if !slices.Contains(cand.Attributes, AttributeEmailExact) {
		t.Errorf("attributes = %v, want email_exact recorded", cand.Attributes)
	}
	if cand.Confidence < 0.9 {
		t.Errorf("confidence = %v, want >= 0.9", cand.Confidence)
	}
	if cand.Bucket() != BucketHigh {
		t.Errorf("bucket = %v, want high", cand.Bucket())
	}
}

func TestMatchDisplayNameAgainstLoginLandsLow(t *testing.T) {
	a := identity.Record{ServiceConfigID: 1, Service: "plex", NativeID: "11", DisplayName: "Alice Smith"}
	b := identity.Record{ServiceConfigID: 2, Service: "jellyfin", NativeID: "f3c2", Username: "asmith"}

	cand := Match(a, b)
	if cand == nil {
		t.Fatal("expected candidate")
	}
	if len(cand.Attributes) != 1 || cand.Attributes[0] != AttributeNameFuzzy {
		t.Errorf("attributes = %v, want [name_fuzzy]", cand.Attributes)
	}
	if cand.Bucket() != BucketLow {
		t.Errorf("bucket = %v (confidence %v), want low", cand.Bucket(), cand.Confidence)
	}
	if cand.Confidence < 0.3 || cand.Confidence >= 0.7 {
		t.Errorf("confidence = %v, want within the low band", cand.Confidence)
	}
}

func TestMatchNoOverlapReturnsNil(t *testing.T) {
	a := identity.Record{NativeID: "1", Username: "alice", Email: "alice@x.com", DisplayName: "Alice"}
	b := identity.Record{NativeID: "2", Username: "zarathustra", Email: "zara@y.org", DisplayName: "Zara Thustra"}

	if cand := Match(a, b); cand != nil {
		t.Errorf("expected nil, got %+v", cand)
	}
}

func TestMatchRecordsAllApplicableAttributes(t *testing.T) {
	a := identity.Record{NativeID: "7", Username: "asmith", Email: "alice@x.com", DisplayName: "Alice Smith"}
	b := identity.Record{NativeID: "7", Username: "asmith", Email: "alice@x.com", DisplayName: "Alice Smith"}

	cand := Match(a, b)
	if cand == nil {
		t.Fatal("expected candidate")
	}
	want := []Attribute{
		AttributeIDExact,
		AttributeUsernameExact,
		AttributeEmailExact,
		AttributeFriendlyNameExact,
	}
	if !slices.Equal(cand.Attributes, want) {
		t.Errorf("attributes = %v, want %v", cand.Attributes, want)
	}
}

func TestMatchIDExactIsCaseSensitive(t *testing.T) {
	a := identity.Record{NativeID: "ABC"}
	b := identity.Record{NativeID: "abc"}
	if cand := Match(a, b); cand != nil {
		t.Errorf("expected nil for case-differing ids, got %v", cand.Attributes)
	}
}

func TestMatchUsernameFuzzy(t *testing.T) {
	a := identity.Record{Username: "alice.smith"}
	b := identity.Record{Username: "alice_smith"}

	cand := Match(a, b)
	if cand == nil {
		t.Fatal("expected candidate")
	}
	if !slices.Contains(cand.Attributes, AttributeUsernameFuzzy) {
		t.Errorf("attributes = %v, want username_fuzzy", cand.Attributes)
	}
	if slices.Contains(cand.Attributes, AttributeUsernameExact) {
		t.Error("username_exact must not apply to differing usernames")
	}
}

func TestMatchUsernameFuzzySuppressedByExact(t *testing.T) {
	a := identity.Record{Username: "ASmith"}
	b := identity.Record{Username: "asmith"}

	cand := Match(a, b)
	if cand == nil {
		t.Fatal("expected candidate")
	}
	if slices.Contains(cand.Attributes, AttributeUsernameFuzzy) {
		t.Errorf("attributes = %v, fuzzy must not double-count the exact match", cand.Attributes)
	}
}

func TestMatchEmailFuzzyComparesStrippedLocalParts(t *testing.T) {
	a := identity.Record{Email: "alice.smith@gmail.com"}
	b := identity.Record{Email: "alicesmith@company.io"}

	cand := Match(a, b)
	if cand == nil {
		t.Fatal("expected candidate")
	}
	if !slices.Contains(cand.Attributes, AttributeEmailFuzzy) {
		t.Errorf("attributes = %v, want email_fuzzy", cand.Attributes)
	}
}

func TestMatchUsernameFriendlyMatch(t *testing.T) {
	a := identity.Record{Username: "alice smith"}
	b := identity.Record{DisplayName: "Alice Smith"}

	cand := Match(a, b)
	if cand == nil {
		t.Fatal("expected candidate")
	}
	if !slices.Contains(cand.Attributes, AttributeUsernameFriendlyMatch) {
		t.Errorf("attributes = %v, want username_friendly_match", cand.Attributes)
	}
}

func TestCombineWeightsNoisyOr(t *testing.T) {
	attrs := []Attribute{AttributeUsernameExact, AttributeNameFuzzy}
	want := 1 - (1-0.92)*(1-0.40)
	got := CombineWeights(attrs)
	if math.Abs(got-want) > 0.0001 {
		t.Errorf("CombineWeights() = %v, want %v", got, want)
	}
}

func TestCombineWeightsEmpty(t *testing.T) {
	if got := CombineWeights(nil); got != 0 {
		t.Errorf("CombineWeights(nil) = %v, want 0", got)
	}
}

func TestCombineWeightsNeverExceedsOne(t *testing.T) {
	got := CombineWeights(AllAttributes())
	if got > 1 {
		t.Errorf("CombineWeights(all) = %v, want <= 1", got)
	}
	if got < 0.99 {
		t.Errorf("CombineWeights(all) = %v, want near 1", got)
	}
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		confidence float64
		want       Bucket
	}{
		{0.95, BucketHigh},
		{0.9, BucketHigh},
		{0.89, BucketMedium},
		{0.7, BucketMedium},
		{0.69, BucketLow},
		{0.0, BucketLow},
	}
	for _, tt := range tests {
		if got := BucketFor(tt.confidence); got != tt.want {
			t.Errorf("BucketFor(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}

func TestParseAttribute(t *testing.T) {
	if attr, ok := ParseAttribute(" Email_Exact "); !ok || attr != AttributeEmailExact {
		t.Errorf("ParseAttribute(email_exact) = %v, %v", attr, ok)
	}
	if _, ok := ParseAttribute("psychic_match"); ok {
		t.Error("ParseAttribute accepted unknown attribute")
	}
	if _, ok := ParseAttribute(""); ok {
		t.Error("ParseAttribute accepted empty string")
	}
}
