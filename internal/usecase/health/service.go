package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure: results may be missing some shards.
	Degraded Status = "degraded"
	// Unhealthy indicates no shard is reachable.
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

// DefaultCheckTimeout bounds each component probe.
const DefaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	shards    map[string]ShardPinger
	embedding EmbeddingChecker
	timeout   time.Duration
}

// New creates a Service. embedding can be nil.
func New(shards map[string]ShardPinger, embedding EmbeddingChecker) *Service {
	return &Service{shards: shards, embedding: embedding, timeout: DefaultCheckTimeout}
}

// Check probes every shard and the embedder in parallel.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(s.shards)+1)
	)
	record := func(name string, err error) {
		res := CheckOK
		if err != nil {
			res = CheckError
		}
		mu.Lock()
		checks[name] = res
		mu.Unlock()
	}

	var g errgroup.Group
	for id, p := range s.shards {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			record("shard:"+id, p.Ping(pctx))
			return nil
		})
	}
	if s.embedding != nil {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			record("embedding", s.embedding.HealthCheck(pctx))
			return nil
		})
	}
	_ = g.Wait()

	return Report{Status: s.status(checks), Checks: checks}
}

func (s *Service) status(checks map[string]CheckResult) Status {
	shardsUp := 0
	failed := false
	for name, v := range checks {
		if v == CheckError {
			failed = true
			continue
		}
		if name != "embedding" {
			shardsUp++
		}
	}
	switch {
	case len(s.shards) > 0 && shardsUp == 0:
		return Unhealthy
	case failed:
		return Degraded
	default:
		return Healthy
	}
}
