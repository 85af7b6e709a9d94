package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the backend is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status      Status
	Checks      map[string]CheckResult
	Collections int
}

// Service coordinates health checks.
type Service struct {
	backend Pinger
	indices IndexLister
	timeout time.Duration
}

// New creates a Service. indices can be nil; a non-positive timeout selects
// DefaultCheckTimeout.
func New(backend Pinger, indices IndexLister, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Service{backend: backend, indices: indices, timeout: timeout}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	report := Report{Status: Healthy, Checks: checks}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.backend.Ping(pctx)
	cancel()
	if err != nil {
		checks["backend"] = CheckError
		report.Status = Unhealthy
		return report
	}
	checks["backend"] = CheckOK

	if s.indices != nil {
		lctx, cancel := context.WithTimeout(ctx, s.timeout)
		names, err := s.indices.ScopedCollectionNames(lctx)
		cancel()
		if err != nil {
			checks["indices"] = CheckError
			report.Status = Degraded
		} else {
			checks["indices"] = CheckOK
			report.Collections = len(names)
		}
	}

	return report
}
