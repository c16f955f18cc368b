package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// CheckFunc probes a single dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

type Check struct {
	Name  string
	Probe CheckFunc
}

type Result struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// ProbeRunner drives the readiness checks. Probes run concurrently
// under a shared deadline so one slow dependency cannot starve the
// probe endpoint.
type ProbeRunner struct {
	timeout time.Duration
	checks  []Check
}

func NewProbeRunner(timeout time.Duration, checks ...Check) *ProbeRunner {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ProbeRunner{timeout: timeout, checks: checks}
}

func (p *ProbeRunner) Ready(ctx context.Context) (bool, []Result) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	results := make([]Result, len(p.checks))
	g, ctx := errgroup.WithContext(ctx)
	for i, check := range p.checks {
		g.Go(func() error {
			start := time.Now()
			err := check.Probe(ctx)
			res := Result{Name: check.Name, Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = "failed"
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	ready := true
	for _, res := range results {
		if res.Status != "ok" {
			ready = false
		}
	}
	return ready, results
}
