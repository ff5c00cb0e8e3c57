package metrics

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemSource samples host-level metrics (CPU and memory) via gopsutil.
type SystemSource struct{}

func NewSystemSource() *SystemSource { return &SystemSource{} }

func (s *SystemSource) Name() string { return "system" }

func (s *SystemSource) Fields() []string {
	return []string{FieldCPUUsage, FieldMemoryUsage}
}

func (s *SystemSource) Sample(ctx context.Context) (map[string]float64, error) {
	// Interval 0 returns usage since the previous call, which is what a
	// periodic sampler wants.
	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to sample cpu usage: %w", err)
	}
	cpuUsage := 0.0
	if len(cpuPercents) > 0 {
		cpuUsage = cpuPercents[0]
	}

	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sample memory usage: %w", err)
	}

	return map[string]float64{
		FieldCPUUsage:    cpuUsage,
		FieldMemoryUsage: vmem.UsedPercent,
	}, nil
}

// LoadSource samples the 1-minute load average. Kept separate from
// SystemSource so a load probe failure degrades only its own field.
type LoadSource struct{}

func NewLoadSource() *LoadSource { return &LoadSource{} }

func (s *LoadSource) Name() string { return "load" }

func (s *LoadSource) Fields() []string { return []string{"load_1m"} }

func (s *LoadSource) Sample(ctx context.Context) (map[string]float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sample load average: %w", err)
	}
	return map[string]float64{"load_1m": avg.Load1}, nil
}

// GaugeSource reports a single application-level metric (response time,
// error rate, active users, db connections, api calls) through an injected
// callback. One source per field keeps probe failures independent: a broken
// gauge degrades only its own field. The collector stays agnostic to how the
// number is produced; the hosting application wires real gauges in.
type GaugeSource struct {
	field string
	probe func(context.Context) (float64, error)
}

func NewGaugeSource(field string, probe func(context.Context) (float64, error)) *GaugeSource {
	return &GaugeSource{field: field, probe: probe}
}

func (s *GaugeSource) Name() string { return s.field }

func (s *GaugeSource) Fields() []string { return []string{s.field} }

func (s *GaugeSource) Sample(ctx context.Context) (map[string]float64, error) {
	v, err := s.probe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", s.field, err)
	}
	return map[string]float64{s.field: v}, nil
}
