package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	errs "github.com/drawlytics/sentinel/pkg/errors"
)

// Status is the derived health of a service or of the system overall.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ServiceHealth is the outcome of one probe. Probe failures are captured in
// Message, never returned as errors past the checker.
type ServiceHealth struct {
	Service   string        `json:"service"`
	Status    Status        `json:"status"`
	Core      bool          `json:"core"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Report aggregates all probes plus the overall derivation.
type Report struct {
	Status    Status                   `json:"status"`
	Services  map[string]ServiceHealth `json:"services"`
	Timestamp time.Time                `json:"timestamp"`
	Duration  time.Duration            `json:"duration"`
}

// Probe checks one dependent service. Core probes (database, internal API)
// drag the overall status to unhealthy when they fail; non-core probes only
// degrade it.
type Probe interface {
	Name() string
	Core() bool
	Timeout() time.Duration
	Check(ctx context.Context) error
}

// Checker runs all registered probes concurrently, each bounded by its own
// timeout so a hung service cannot delay the others.
type Checker struct {
	probes         []Probe
	defaultTimeout time.Duration
	logger         *logrus.Logger
	now            func() time.Time

	mu   sync.RWMutex
	last *Report
}

func NewChecker(defaultTimeout time.Duration, logger *logrus.Logger) *Checker {
	if defaultTimeout <= 0 {
		defaultTimeout = 5 * time.Second
	}
	return &Checker{
		defaultTimeout: defaultTimeout,
		logger:         logger,
		now:            time.Now,
	}
}

// SetNowFunc overrides the clock for deterministic tests.
func (c *Checker) SetNowFunc(now func() time.Time) { c.now = now }

// Register adds a probe. Not safe to call once checks are running.
func (c *Checker) Register(p Probe) {
	c.probes = append(c.probes, p)
}

// Check probes every service concurrently and returns the per-service map
// plus the overall derivation. It never returns an error; a probe failure is
// a data point, not a fault.
func (c *Checker) Check(ctx context.Context) Report {
	start := c.now()

	results := make([]ServiceHealth, len(c.probes))
	var wg sync.WaitGroup
	for i, probe := range c.probes {
		wg.Add(1)
		go func(i int, probe Probe) {
			defer wg.Done()
			results[i] = c.runProbe(ctx, probe)
		}(i, probe)
	}
	wg.Wait()

	services := make(map[string]ServiceHealth, len(results))
	overall := StatusHealthy
	for _, sh := range results {
		services[sh.Service] = sh
		if sh.Status != StatusUnhealthy {
			continue
		}
		if sh.Core {
			overall = StatusUnhealthy
		} else if overall == StatusHealthy {
			overall = StatusDegraded
		}
	}

	report := Report{
		Status:    overall,
		Services:  services,
		Timestamp: start,
		Duration:  c.now().Sub(start),
	}

	c.mu.Lock()
	c.last = &report
	c.mu.Unlock()

	return report
}

// Last returns the most recent report, if any check has run.
func (c *Checker) Last() (Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Report{}, false
	}
	return *c.last, true
}

func (c *Checker) runProbe(ctx context.Context, probe Probe) ServiceHealth {
	timeout := probe.Timeout()
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := c.now()
	errCh := make(chan error, 1)
	go func() { errCh <- probe.Check(ctx) }()

	sh := ServiceHealth{
		Service:   probe.Name(),
		Core:      probe.Core(),
		CheckedAt: start,
	}

	select {
	case err := <-errCh:
		sh.Latency = c.now().Sub(start)
		if err != nil {
			sh.Status = StatusUnhealthy
			sh.Message = err.Error()
			c.logger.WithError(errs.Wrap(errs.KindProbe, probe.Name(), err)).
				WithField("service", probe.Name()).Warn("Health probe failed")
		} else {
			sh.Status = StatusHealthy
		}
	case <-ctx.Done():
		sh.Latency = c.now().Sub(start)
		sh.Status = StatusUnhealthy
		sh.Message = fmt.Sprintf("probe timed out after %s", timeout)
		c.logger.WithField("service", probe.Name()).Warn("Health probe timed out")
	}

	return sh
}

// HTTPProbe checks a service by issuing a GET and expecting a non-5xx
// response.
type HTTPProbe struct {
	name    string
	url     string
	core    bool
	timeout time.Duration
	client  *http.Client
}

func NewHTTPProbe(name, url string, core bool, timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{
		name:    name,
		url:     url,
		core:    core,
		timeout: timeout,
		client:  &http.Client{},
	}
}

func (p *HTTPProbe) Name() string           { return p.name }
func (p *HTTPProbe) Core() bool             { return p.core }
func (p *HTTPProbe) Timeout() time.Duration { return p.timeout }

func (p *HTTPProbe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("service returned status %d", resp.StatusCode)
	}
	return nil
}

// FuncProbe adapts a plain function, used for the database ping and in
// tests.
type FuncProbe struct {
	ProbeName    string
	IsCore       bool
	ProbeTimeout time.Duration
	Fn           func(ctx context.Context) error
}

func (p *FuncProbe) Name() string           { return p.ProbeName }
func (p *FuncProbe) Core() bool             { return p.IsCore }
func (p *FuncProbe) Timeout() time.Duration { return p.ProbeTimeout }

func (p *FuncProbe) Check(ctx context.Context) error { return p.Fn(ctx) }
