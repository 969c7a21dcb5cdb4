package audio

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// stats holds loopback statistics.
type stats struct {
	bytesRead     prometheus.Counter
	bytesWritten  prometheus.Counter
	reads         prometheus.Counter
	emptyReads    prometheus.Counter
	writes        prometheus.Counter
	workerErrors  prometheus.Counter
	sessions      prometheus.Counter
	startFailures prometheus.Counter
	routingMisses *prometheus.CounterVec
	running       prometheus.Gauge

	bytesReadAtomic    atomic.Uint64
	bytesWrittenAtomic atomic.Uint64
	writesAtomic       atomic.Uint64
}

func newStats(reg prometheus.Registerer) *stats {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &stats{
		bytesRead: f.NewCounter(prometheus.CounterOpts{
			Name: "loopback_bytes_read",
			Help: "Total PCM bytes read from the capture endpoint",
		}),
		bytesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "loopback_bytes_written",
			Help: "Total PCM bytes written to the playback endpoint",
		}),
		reads: f.NewCounter(prometheus.CounterOpts{
			Name: "loopback_reads",
			Help: "Number of capture reads that returned data",
		}),
		emptyReads: f.NewCounter(prometheus.CounterOpts{
			Name: "loopback_empty_reads",
			Help: "Number of capture reads that returned no data",
		}),
		writes: f.NewCounter(prometheus.CounterOpts{
			Name: "loopback_writes",
			Help: "Number of playback writes",
		}),
		workerErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "loopback_worker_errors",
			Help: "Number of sessions whose worker ended due to an I/O error",
		}),
		sessions: f.NewCounter(prometheus.CounterOpts{
			Name: "loopback_sessions",
			Help: "Number of successfully started loopback sessions",
		}),
		startFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "loopback_start_failures",
			Help: "Number of failed attempts to start a loopback session",
		}),
		routingMisses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loopback_routing_misses",
			Help: "Number of sessions that used the default route",
		}, []string{"direction"}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Name: "loopback_running",
			Help: "Whether a loopback session is active",
		}),
	}
}

// hbytes == "human bytes"
func hbytes(i uint64) string {
	switch {
	case i < 1e3:
		return strconv.FormatUint(i, 10) + "B"
	case i < 1e6:
		return strconv.FormatFloat(float64(i)/1e3, 'f', 2, 64) + "KB"
	case i < 1e9:
		return strconv.FormatFloat(float64(i)/1e6, 'f', 2, 64) + "MB"
	default:
		return strconv.FormatFloat(float64(i)/1e9, 'f', 2, 64) + "GB"
	}
}

// RunStatsLoop logs throughput stats every interval while data is flowing.
// Returns when ctx is done.
func (l *Loopback) RunStatsLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		l.log.Infof("Logging of loopback stats is disabled")
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	lastTick := time.Now()
	for {
		var tickTime time.Time
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tickTime = <-ticker.C:
		}

		bytesRead := l.stats.bytesReadAtomic.Swap(0)
		bytesWritten := l.stats.bytesWrittenAtomic.Swap(0)
		writes := l.stats.writesAtomic.Swap(0)
		dt := tickTime.Sub(lastTick)
		lastTick = tickTime
		if bytesRead|bytesWritten == 0 || dt <= 0 {
			continue
		}

		dts := dt.Seconds()
		l.log.Infof("Loopback stats for the last %s - in %s (%s/sec), "+
			"out %s (%s/sec), %d writes",
			dt.Round(time.Millisecond),
			hbytes(bytesRead), hbytes(uint64(float64(bytesRead)/dts)),
			hbytes(bytesWritten), hbytes(uint64(float64(bytesWritten)/dts)),
			writes)
	}
}
