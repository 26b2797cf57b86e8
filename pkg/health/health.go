// Package health provides liveness and readiness probes. Registered checks
// run periodically in the background; probe endpoints answer from the last
// recorded results so they stay fast even when a dependency hangs.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one component, returning nil when healthy.
type CheckFunc func(ctx context.Context) error

// failureThreshold is how many consecutive failures flip a check to
// unhealthy; a single success flips it back. Prevents flapping on one-off
// errors.
const failureThreshold = 3

// check holds a registered check and its last observed state. The fail
// counter is only touched by the single runner goroutine; state and err are
// read by probe handlers, hence atomics.
type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	fails   int
	healthy atomic.Bool
	lastErr atomic.Pointer[error]
}

func (c *check) run(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.fn(cctx)
	cancel()

	c.lastErr.Store(&err)
	if err != nil {
		c.fails++
		if c.fails >= failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	c.healthy.Store(true)
}

// Service owns the registered checks and the readiness flag.
type Service struct {
	ready atomic.Bool

	mu        sync.Mutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates a Service. It starts not-ready; call SetReady(true) after
// initialization completes.
func New() *Service {
	return &Service{}
}

// AddLivenessCheck registers a check that decides whether the process is
// functioning at all (goroutine leaks, deadlocks).
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.add(&s.liveness, name, timeout, fn)
}

// AddReadinessCheck registers a check that decides whether the service should
// receive traffic (database connectivity, dependency availability).
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.add(&s.readiness, name, timeout, fn)
}

func (s *Service) add(list *[]*check, name string, timeout time.Duration, fn CheckFunc) {
	c := &check{name: name, timeout: timeout, fn: fn}
	c.healthy.Store(true)
	s.mu.Lock()
	*list = append(*list, c)
	s.mu.Unlock()
}

// Start launches the background runner executing every registered check each
// interval. Register all checks before calling Start.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	checks := make([]*check, 0, len(s.liveness)+len(s.readiness))
	checks = append(checks, s.liveness...)
	checks = append(checks, s.readiness...)
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			for _, c := range checks {
				c.run(ctx)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop terminates the background runner.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SetReady flips the administrative readiness flag. A false flag fails the
// readiness probe regardless of check results, which is how shutdown drains
// traffic.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports the administrative readiness flag.
func (s *Service) IsReady() bool {
	return s.ready.Load()
}

type statusResponse struct {
	Status   string            `json:"status"`
	Failures map[string]string `json:"failures,omitempty"`
}

// LiveEndpoint is the /livez handler.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	checks := append([]*check(nil), s.liveness...)
	s.mu.Unlock()
	respond(w, failures(checks))
}

// ReadyEndpoint is the /readyz handler. It fails when the readiness flag is
// down or any readiness check is unhealthy.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		respond(w, map[string]string{"service": "not ready"})
		return
	}
	s.mu.Lock()
	checks := append([]*check(nil), s.readiness...)
	s.mu.Unlock()
	respond(w, failures(checks))
}

func failures(checks []*check) map[string]string {
	var out map[string]string
	for _, c := range checks {
		if c.healthy.Load() {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		msg := "unhealthy"
		if p := c.lastErr.Load(); p != nil && *p != nil {
			msg = (*p).Error()
		}
		out[c.name] = msg
	}
	return out
}

func respond(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	resp := statusResponse{Status: "ok"}
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Failures = failures
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
