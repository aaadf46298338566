package telemetry

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.uber.org/zap"
)

const defaultSampleInterval = 2 * time.Second

// LoadMonitor samples host CPU usage on a fixed interval and exposes the
// most recent reading. The orchestrator consults it to decide whether a
// turn should be deprioritized before any expensive work starts.
type LoadMonitor struct {
	interval time.Duration
	usage    atomic.Uint64
	cancel   context.CancelFunc
	done     chan struct{}
	log      *zap.Logger
}

func NewLoadMonitor(interval time.Duration, log *zap.Logger) *LoadMonitor {
	if interval <= 0 {
		interval = defaultSampleInterval
	}
	return &LoadMonitor{
		interval: interval,
		done:     make(chan struct{}),
		log:      log,
	}
}

// Start launches the sampling loop. The first reading is taken
// synchronously so CPUPercent never reports zero on a loaded host that
// just booted the server.
func (m *LoadMonitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.sample(ctx)
	go m.loop(ctx)
}

func (m *LoadMonitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

func (m *LoadMonitor) sample(ctx context.Context) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(percents) == 0 {
		if err != nil && ctx.Err() == nil {
			m.log.Warn("CPU sampling failed", zap.Error(err))
		}
		return
	}
	m.usage.Store(math.Float64bits(percents[0]))
	CPUUsagePercent.Set(percents[0])
}

// CPUPercent returns the most recent host-wide CPU usage reading in the
// range [0, 100].
func (m *LoadMonitor) CPUPercent() float64 {
	return math.Float64frombits(m.usage.Load())
}

func (m *LoadMonitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}
