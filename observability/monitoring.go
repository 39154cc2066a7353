package observability

import (
	"chat-realtime/runtime"
	"context"
	"log/slog"
	"os"
	goruntime "runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// RegistryStats is the live view of the realtime registry.
type RegistryStats interface {
	Stats() runtime.Stats
}

// MonitoringStats aggregates what GET /stats reports.
type MonitoringStats struct {
	Sessions      int `json:"sessions"`
	Rooms         int `json:"rooms"`
	Subscriptions int `json:"subscriptions"`

	ConnectionsServed   uint64 `json:"connections_served"`
	ConnectionsRejected uint64 `json:"connections_rejected"`

	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	AllocMemMb uint64  `json:"alloc_mem_mb"`
	NumGC      uint32  `json:"num_gc"`
	Goroutines int     `json:"goroutines"`
	UptimeSec  int64   `json:"uptime_sec"`
}

// MonitoringManager samples process metrics on a ticker and merges them
// with the registry counters on read.
type MonitoringManager struct {
	log       *slog.Logger
	registry  RegistryStats
	startedAt time.Time

	mu      sync.RWMutex
	process MonitoringStats

	served   uint64
	rejected uint64
}

func NewMonitoringManager(log *slog.Logger, registry RegistryStats) *MonitoringManager {
	return &MonitoringManager{log: log, registry: registry, startedAt: time.Now()}
}

func (mm *MonitoringManager) IncrServed() {
	atomic.AddUint64(&mm.served, 1)
}

func (mm *MonitoringManager) IncrRejected() {
	atomic.AddUint64(&mm.rejected, 1)
}

// Listen samples the current process every interval until ctx is done.
func (mm *MonitoringManager) Listen(ctx context.Context, interval time.Duration) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	mm.sample(p)
	for {
		select {
		case <-ctx.Done():
			mm.log.Debug("Monitoring stopped")
			return nil
		case <-ticker.C:
			mm.sample(p)
		}
	}
}

func (mm *MonitoringManager) sample(p *process.Process) {
	var stats MonitoringStats
	if memInfo, err := p.MemoryInfo(); err == nil {
		stats.RSSBytes = memInfo.RSS
	} else {
		mm.log.Debug("Memory info unavailable", "error", err)
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}

	var m goruntime.MemStats
	goruntime.ReadMemStats(&m)
	stats.AllocMemMb = m.Alloc / 1024 / 1024
	stats.NumGC = m.NumGC

	mm.mu.Lock()
	mm.process = stats
	mm.mu.Unlock()
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	stats := mm.process
	mm.mu.RUnlock()

	live := mm.registry.Stats()
	stats.Sessions = live.Sessions
	stats.Rooms = live.Rooms
	stats.Subscriptions = live.Subscriptions
	stats.ConnectionsServed = atomic.LoadUint64(&mm.served)
	stats.ConnectionsRejected = atomic.LoadUint64(&mm.rejected)
	stats.Goroutines = goruntime.NumGoroutine()
	stats.UptimeSec = int64(time.Since(mm.startedAt).Seconds())
	return stats
}
