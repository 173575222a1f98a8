package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure; queries may fall back.
	Degraded Status = "degraded"
	// Unhealthy indicates the store is down and the service cannot work.
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

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks. The store is load-bearing; the
// embedding and generation providers only degrade service when down
// because the cache and fallback vectors keep queries answerable.
type Service struct {
	db         DBPinger
	embedding  ProviderChecker
	generation ProviderChecker
}

// New creates a Service. embedding and generation can be nil.
func New(db DBPinger, embedding, generation ProviderChecker) *Service {
	return &Service{db: db, embedding: embedding, generation: generation}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	dbOK := true
	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		dbOK = false
	} else {
		checks["database"] = CheckOK
	}

	degraded := false
	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
			degraded = true
		} else {
			checks["embedding"] = CheckOK
		}
	}
	if s.generation != nil {
		if err := s.generation.HealthCheck(ctx); err != nil {
			checks["generation"] = CheckError
			degraded = true
		} else {
			checks["generation"] = CheckOK
		}
	}

	status := Healthy
	switch {
	case !dbOK:
		status = Unhealthy
	case degraded:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
