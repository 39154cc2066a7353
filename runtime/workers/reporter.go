package workers

import (
	"chat-realtime/observability"
	"context"
	"log/slog"
	"time"
)

// MonitoringWorker keeps the process metrics of the monitoring manager fresh.
type MonitoringWorker struct {
	monitoring *observability.MonitoringManager
	interval   time.Duration
}

func NewMonitoringWorker(monitoring *observability.MonitoringManager, interval time.Duration) *MonitoringWorker {
	return &MonitoringWorker{monitoring: monitoring, interval: interval}
}

func (w *MonitoringWorker) Run(ctx context.Context) error {
	return w.monitoring.Listen(ctx, w.interval)
}

// ReporterWorker logs a snapshot of the realtime load at every interval.
type ReporterWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	interval   time.Duration
}

func NewReporterWorker(log *slog.Logger, monitoring *observability.MonitoringManager, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{log: log, monitoring: monitoring, interval: interval}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report()
			return nil
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *ReporterWorker) report() {
	stats := w.monitoring.GetLatest()
	w.log.Info("Realtime load",
		"sessions", stats.Sessions,
		"rooms", stats.Rooms,
		"subscriptions", stats.Subscriptions,
		"rejected", stats.ConnectionsRejected,
		"rss_mb", stats.RSSBytes/1024/1024,
		"goroutines", stats.Goroutines,
	)
}
