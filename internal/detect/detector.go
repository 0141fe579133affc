package detect

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stitch/internal/config"
	"stitch/internal/logging"
	"stitch/internal/match"
	"stitch/internal/services"
)

// Settings bounds a detection run.
type Settings struct {
	// Concurrency limits simultaneous service calls and pair comparisons.
	Concurrency int
	// ServiceTimeout applies to each individual service call.
	ServiceTimeout time.Duration
	// MinConfidence drops pairwise candidates scoring below it before
	// clustering.
	MinConfidence float64
}

// Detector runs identity detection over a fixed set of directories.
type Detector struct {
	directories    []services.Directory
	concurrency    int
	serviceTimeout time.Duration
	minConfidence  float64
	logger         *slog.Logger
}

// New constructs a Detector. Zero or negative settings fall back to safe
// values so a partially filled Settings cannot hang or busy-spin a run.
func New(directories []services.Directory, settings Settings, logger *slog.Logger) *Detector {
	concurrency := settings.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	timeout := settings.ServiceTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	minConfidence := settings.MinConfidence
	if minConfidence < 0 {
		minConfidence = 0
	}
	return &Detector{
		directories:    directories,
		concurrency:    concurrency,
		serviceTimeout: timeout,
		minConfidence:  minConfidence,
		logger:         logging.NewComponentLogger(logger, "detector"),
	}
}

// NewFromConfig builds a Detector using the detection section of cfg.
func NewFromConfig(cfg *config.Config, directories []services.Directory, logger *slog.Logger) *Detector {
	settings := Settings{}
	if cfg != nil {
		settings.Concurrency = cfg.Detection.Concurrency
		settings.ServiceTimeout = time.Duration(cfg.Detection.ServiceTimeout) * time.Second
		settings.MinConfidence = cfg.Detection.MinConfidence
	}
	return New(directories, settings, logger)
}

// Suggestion is one pairwise match candidate annotated with the central id of
// the cluster it belongs to.
type Suggestion struct {
	match.Candidate
	CentralUserID string `json:"central_user_id"`
}

// Result is the outcome of one detection run.
type Result struct {
	RunID       string             `json:"run_id"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	Enumeration *EnumerationResult `json:"enumeration"`
	// Combinations lists every service pair compared, for observability.
	Combinations []Combination `json:"service_combinations"`
	// Suggestions are the surviving pairwise candidates in deterministic
	// combination order.
	Suggestions []Suggestion `json:"suggestions"`
	// Identities groups suggestions transitively; this is the view an
	// operator approves.
	Identities []CandidateIdentity `json:"identities"`
	// Incomplete marks a run cut short by cancellation; everything present
	// is still valid, there may just be less of it.
	Incomplete bool `json:"incomplete,omitempty"`
}

// CountByBucket tallies suggestions whose pairwise confidence lands in bucket.
func (r *Result) CountByBucket(bucket match.Bucket) int {
	count := 0
	for i := range r.Suggestions {
		if r.Suggestions[i].Bucket() == bucket {
			count++
		}
	}
	return count
}

// Run executes a full detection pass: enumerate every directory, compare all
// cross-service pairs, cluster the candidates, and annotate each suggestion
// with its cluster's central id. Cancellation yields partial results with
// Incomplete set rather than an error.
func (d *Detector) Run(ctx context.Context) *Result {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, d.logger)

	started := time.Now().UTC()
	logger.Info("detection run started",
		logging.Int("services", len(d.directories)),
		logging.String(logging.FieldEventType, "detection_started"),
	)

	enumeration := d.Enumerate(ctx)
	pairwise := d.comparePairs(ctx, enumeration.Services)
	identities, centralByKey := Cluster(pairwise.Candidates)

	suggestions := make([]Suggestion, 0, len(pairwise.Candidates))
	for _, candidate := range pairwise.Candidates {
		suggestions = append(suggestions, Suggestion{
			Candidate:     candidate,
			CentralUserID: centralByKey[candidate.A.Key()],
		})
	}

	result := &Result{
		RunID:        runID,
		StartedAt:    started,
		CompletedAt:  time.Now().UTC(),
		Enumeration:  enumeration,
		Combinations: pairwise.Combinations,
		Suggestions:  suggestions,
		Identities:   identities,
		Incomplete:   ctx.Err() != nil,
	}

	logger.Info("detection run finished",
		logging.Int("suggestions", len(result.Suggestions)),
		logging.Int("identities", len(result.Identities)),
		logging.Int("high_confidence", result.CountByBucket(match.BucketHigh)),
		logging.Int("service_errors", len(enumeration.Failures)),
		logging.Bool("incomplete", result.Incomplete),
		logging.Duration("elapsed", result.CompletedAt.Sub(result.StartedAt)),
		logging.String(logging.FieldEventType, "detection_finished"),
	)
	return result
}
