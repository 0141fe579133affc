package detect

import (
	"context"
	"sort"
	"sync"

	"stitch/internal/identity"
	"stitch/internal/logging"
	"stitch/internal/services"
)

// ServiceUsers holds one service's successfully enumerated records.
type ServiceUsers struct {
	ServiceConfigID int64             `json:"service_config_id"`
	ServiceType     string            `json:"service_type"`
	ServiceName     string            `json:"service_name"`
	Records         []identity.Record `json:"records"`
	// Skipped counts records dropped for carrying no usable identifier.
	Skipped int `json:"skipped,omitempty"`
}

// ServiceFailure records one service that could not be enumerated.
type ServiceFailure struct {
	ServiceConfigID int64  `json:"service_config_id"`
	ServiceName     string `json:"service_name"`
	Message         string `json:"message"`
}

// EnumerationResult carries the outcome of querying every directory. A failed
// service appears in Failures; the enumeration itself always succeeds.
type EnumerationResult struct {
	Services      []ServiceUsers   `json:"services"`
	Failures      []ServiceFailure `json:"failures,omitempty"`
	TotalServices int              `json:"total_services"`
}

// SuccessfulServices counts the services that answered.
func (r *EnumerationResult) SuccessfulServices() int {
	return len(r.Services)
}

// TotalUsers counts records across all successful services.
func (r *EnumerationResult) TotalUsers() int {
	total := 0
	for _, svc := range r.Services {
		total += len(svc.Records)
	}
	return total
}

// ErrorStrings flattens failures into display strings.
func (r *EnumerationResult) ErrorStrings() []string {
	if len(r.Failures) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.Failures))
	for _, failure := range r.Failures {
		out = append(out, failure.ServiceName+": "+failure.Message)
	}
	return out
}

type enumerationOutcome struct {
	users   ServiceUsers
	failure *ServiceFailure
}

// Enumerate queries every directory with a bounded worker pool. Each call
// carries its own timeout so a stuck service cannot stall the run, and one
// service's failure never aborts the others. Cancellation stops new calls
// from being issued; services never reached are reported as failures.
func (d *Detector) Enumerate(ctx context.Context) *EnumerationResult {
	outcomes := make([]enumerationOutcome, len(d.directories))

	var wg sync.WaitGroup
	sem := make(chan struct{}, d.concurrency)
	for i, directory := range d.directories {
		wg.Add(1)
		go func(slot int, directory services.Directory) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[slot] = cancelledOutcome(directory)
				return
			}
			if ctx.Err() != nil {
				outcomes[slot] = cancelledOutcome(directory)
				return
			}
			outcomes[slot] = d.enumerateOne(ctx, directory)
		}(i, directory)
	}
	wg.Wait()

	result := &EnumerationResult{TotalServices: len(d.directories)}
	for _, outcome := range outcomes {
		if outcome.failure != nil {
			result.Failures = append(result.Failures, *outcome.failure)
			continue
		}
		result.Services = append(result.Services, outcome.users)
	}
	sort.Slice(result.Services, func(i, j int) bool {
		return result.Services[i].ServiceConfigID < result.Services[j].ServiceConfigID
	})
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].ServiceConfigID < result.Failures[j].ServiceConfigID
	})
	return result
}

func (d *Detector) enumerateOne(ctx context.Context, directory services.Directory) enumerationOutcome {
	callCtx, cancel := context.WithTimeout(ctx, d.serviceTimeout)
	defer cancel()
	callCtx = services.WithService(callCtx, directory.Name())

	records, err := directory.ListUsers(callCtx)
	if err != nil {
		logging.WarnWithContext(d.logger, "service enumeration failed", "enumeration_failed",
			logging.String(logging.FieldService, directory.Name()),
			logging.Int64(logging.FieldServiceConfigID, directory.ServiceConfigID()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify the service URL and API key"),
			logging.String(logging.FieldImpact, "suggestions will not include this service"),
		)
		return enumerationOutcome{failure: &ServiceFailure{
			ServiceConfigID: directory.ServiceConfigID(),
			ServiceName:     directory.Name(),
			Message:         err.Error(),
		}}
	}

	users := ServiceUsers{
		ServiceConfigID: directory.ServiceConfigID(),
		ServiceType:     string(directory.Type()),
		ServiceName:     directory.Name(),
	}
	for _, record := range records {
		if !record.Identifiable() {
			users.Skipped++
			continue
		}
		users.Records = append(users.Records, record)
	}
	if users.Skipped > 0 {
		d.logger.Debug("discarded unidentifiable records",
			logging.String(logging.FieldService, directory.Name()),
			logging.Int("skipped", users.Skipped),
		)
	}
	return enumerationOutcome{users: users}
}

func cancelledOutcome(directory services.Directory) enumerationOutcome {
	return enumerationOutcome{failure: &ServiceFailure{
		ServiceConfigID: directory.ServiceConfigID(),
		ServiceName:     directory.Name(),
		Message:         "run cancelled before service was queried",
	}}
}
