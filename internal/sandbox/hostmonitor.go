package sandbox

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostSample is a point-in-time resource reading taken on the host
// running the sandbox container, used to corroborate CPU/memory spikes
// against the behavioral trace.
type HostSample struct {
	Timestamp   time.Time
	CPUPercent  float64
	MemUsedPct  float64
}

// SampleHost takes a single CPU/memory reading.
func SampleHost(ctx context.Context) (HostSample, error) {
	cpuPercents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return HostSample{}, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return HostSample{}, err
	}
	var cpuPct float64
	if len(cpuPercents) > 0 {
		cpuPct = cpuPercents[0]
	}
	return HostSample{
		Timestamp:  time.Now().UTC(),
		CPUPercent: cpuPct,
		MemUsedPct: vm.UsedPercent,
	}, nil
}

// SampleHostPeriodically samples the host every interval until ctx is
// done, sending each reading on the returned channel. The channel is
// closed when sampling stops.
func SampleHostPeriodically(ctx context.Context, interval time.Duration) <-chan HostSample {
	out := make(chan HostSample)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sample, err := SampleHost(ctx)
				if err != nil {
					continue
				}
				select {
				case out <- sample:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
