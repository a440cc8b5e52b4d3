package observability

import (
	"context"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Reporter periodically logs relay counters together with process
// self-stats (RSS, CPU, GC) so an operator can watch the relay without any
// external monitoring stack.
type Reporter struct {
	log      *slog.Logger
	stats    *RelayStats
	interval time.Duration
}

func NewReporter(log *slog.Logger, stats *RelayStats, interval time.Duration) *Reporter {
	return &Reporter{log: log, stats: stats, interval: interval}
}

// Run blocks until the context is cancelled, emitting one report per tick.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.report(p)
		}
	}
}

func (r *Reporter) report(p *process.Process) {
	snapshot := r.stats.Snapshot()

	var memStats goruntime.MemStats
	goruntime.ReadMemStats(&memStats)

	var rssMb uint64
	if memInfo, err := p.MemoryInfo(); err == nil {
		rssMb = memInfo.RSS / 1024 / 1024
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		r.log.Debug("CPU usage unavailable", "error", err)
	}

	r.log.Info("relay stats",
		"sessions", snapshot.ActiveSessions,
		"messages_relayed", snapshot.MessagesRelayed,
		"rooms_created", snapshot.RoomsCreated,
		"history_writes", snapshot.HistoryWrites,
		"history_failures", snapshot.HistoryFailures,
		"rejected_commands", snapshot.RejectedCommands,
		"rss_mb", rssMb,
		"cpu_percent", cpu,
		"alloc_mb", memStats.Alloc/1024/1024,
		"num_gc", memStats.NumGC,
	)
}
