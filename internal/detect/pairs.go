package detect

import (
	"context"
	"sync"

	"stitch/internal/logging"
	"stitch/internal/match"
)

// Combination reports one compared service pair.
type Combination struct {
	Service1         string `json:"service_1"`
	Service2         string `json:"service_2"`
	SuggestionsFound int    `json:"suggestions_found"`
}

type pairwiseResult struct {
	Candidates   []match.Candidate
	Combinations []Combination
}

type comboJob struct {
	a ServiceUsers
	b ServiceUsers
}

// comparePairs runs the matcher over every cross-service user pair for all
// i<j service combinations. Combinations run concurrently but results are
// assembled in combination order, so the output is deterministic regardless
// of scheduling. The cartesian cost per combination is deliberate; realistic
// directories hold tens to low hundreds of users.
func (d *Detector) comparePairs(ctx context.Context, enumerated []ServiceUsers) pairwiseResult {
	var jobs []comboJob
	for i := 0; i < len(enumerated); i++ {
		for j := i + 1; j < len(enumerated); j++ {
			jobs = append(jobs, comboJob{a: enumerated[i], b: enumerated[j]})
		}
	}

	candidatesBySlot := make([][]match.Candidate, len(jobs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, d.concurrency)
	for i, job := range jobs {
		wg.Add(1)
		go func(slot int, job comboJob) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			if ctx.Err() != nil {
				return
			}
			candidatesBySlot[slot] = d.compareCombo(job)
		}(i, job)
	}
	wg.Wait()

	result := pairwiseResult{Combinations: make([]Combination, 0, len(jobs))}
	for i, job := range jobs {
		found := candidatesBySlot[i]
		result.Candidates = append(result.Candidates, found...)
		result.Combinations = append(result.Combinations, Combination{
			Service1:         job.a.ServiceName,
			Service2:         job.b.ServiceName,
			SuggestionsFound: len(found),
		})
	}
	return result
}

func (d *Detector) compareCombo(job comboJob) []match.Candidate {
	var found []match.Candidate
	for _, recordA := range job.a.Records {
		for _, recordB := range job.b.Records {
			candidate := match.Match(recordA, recordB)
			if candidate == nil {
				continue
			}
			if candidate.Confidence < d.minConfidence {
				continue
			}
			found = append(found, *candidate)
		}
	}
	if len(found) > 0 {
		d.logger.Debug("service pair compared",
			logging.String("service_1", job.a.ServiceName),
			logging.String("service_2", job.b.ServiceName),
			logging.Int("suggestions_found", len(found)),
		)
	}
	return found
}
