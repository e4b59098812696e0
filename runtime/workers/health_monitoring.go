package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// RegistryStats is the registry probe surface consumed by telemetry.
type RegistryStats interface {
	RoomCount() int
}

// HealthMonitoring periodically logs process resource usage and live
// fanout state. It observes its own process: this service has no sidecar
// children to track.
type HealthMonitoring struct {
	log      *slog.Logger
	stats    RegistryStats
	interval time.Duration
}

func NewHealthMonitoring(log *slog.Logger, stats RegistryStats, interval time.Duration) *HealthMonitoring {
	return &HealthMonitoring{log: log, stats: stats, interval: interval}
}

func (w *HealthMonitoring) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			cpu, err := proc.CPUPercent()
			if err != nil {
				w.log.Debug("CPU usage unavailable", "error", err)
				continue
			}
			ram, err := proc.MemoryPercent()
			if err != nil {
				w.log.Debug("Memory usage unavailable", "error", err)
				continue
			}
			w.log.Info("Process health",
				"cpu_percent", cpu,
				"ram_percent", ram,
				"goroutines", runtime.NumGoroutine(),
				"active_rooms", w.stats.RoomCount())
		}
	}
}
