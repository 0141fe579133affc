package api

import (
	"time"

	"stitch/internal/detect"
	"stitch/internal/match"
)

// FromEnumeration converts a detection-layer enumeration into its API form.
func FromEnumeration(result *detect.EnumerationResult) *EnumerationResult {
	if result == nil {
		return &EnumerationResult{}
	}
	out := &EnumerationResult{
		TotalServices:   result.TotalServices,
		ServicesScanned: result.SuccessfulServices(),
		TotalUsers:      result.TotalUsers(),
		Services:        make([]ServiceUsers, 0, len(result.Services)),
		Errors:          result.ErrorStrings(),
	}
	for _, svc := range result.Services {
		out.Services = append(out.Services, ServiceUsers{
			ServiceConfigID: svc.ServiceConfigID,
			ServiceName:     svc.ServiceName,
			ServiceType:     svc.ServiceType,
			Users:           svc.Records,
			Skipped:         svc.Skipped,
		})
	}
	return out
}

// FromDetection converts a detection run into its API form.
func FromDetection(result *detect.Result) *DetectionResult {
	if result == nil {
		return &DetectionResult{}
	}
	out := &DetectionResult{
		RunID:            result.RunID,
		Suggestions:      make([]Suggestion, 0, len(result.Suggestions)),
		HighConfidence:   result.CountByBucket(match.BucketHigh),
		MediumConfidence: result.CountByBucket(match.BucketMedium),
		LowConfidence:    result.CountByBucket(match.BucketLow),
		Identities:       make([]CandidateIdentity, 0, len(result.Identities)),
		StartedAt:        formatTime(result.StartedAt),
		CompletedAt:      formatTime(result.CompletedAt),
		Incomplete:       result.Incomplete,
	}
	if result.Enumeration != nil {
		out.TotalServices = result.Enumeration.TotalServices
		out.ServicesScanned = result.Enumeration.SuccessfulServices()
		out.TotalUsers = result.Enumeration.TotalUsers()
		out.Errors = result.Enumeration.ErrorStrings()
	}
	for _, suggestion := range result.Suggestions {
		out.Suggestions = append(out.Suggestions, FromSuggestion(suggestion))
	}
	for _, group := range result.Identities {
		out.Identities = append(out.Identities, CandidateIdentity{
			CentralUserID: group.CentralUserID,
			Members:       group.Members,
			Attributes:    group.Attributes,
			AvgConfidence: group.Confidence,
			Bucket:        group.Bucket,
		})
	}
	out.ServiceCombinations = make([]ServiceCombination, 0, len(result.Combinations))
	for _, combo := range result.Combinations {
		out.ServiceCombinations = append(out.ServiceCombinations, ServiceCombination{
			Service1:         combo.Service1,
			Service2:         combo.Service2,
			SuggestionsFound: combo.SuggestionsFound,
		})
	}
	return out
}

// FromSuggestion converts one annotated candidate into its API form.
func FromSuggestion(suggestion detect.Suggestion) Suggestion {
	return Suggestion{
		CentralUserID: suggestion.CentralUserID,
		UserA:         suggestion.A,
		UserB:         suggestion.B,
		Attributes:    suggestion.Attributes,
		Confidence:    suggestion.Confidence,
		Bucket:        suggestion.Bucket(),
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}
