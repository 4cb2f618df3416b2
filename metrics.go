package orbdemux

import (
	"sync/atomic"
	"time"

	"github.com/tracehub/orbdemux/internal/interfaces"
	"github.com/tracehub/orbdemux/internal/reporter"
)

// Metrics tracks pipeline-wide throughput and error counters. All
// fields are updated via atomics and safe for concurrent use by the
// source, processor, and registry goroutines.
type Metrics struct {
	TotalBytesCounter    atomic.Uint64
	IntervalBytesCounter atomic.Uint64
	DroppedBlocksCounter atomic.Uint64
	DecodeErrorsCounter  atomic.Uint64
	EvictedCounter       atomic.Uint64

	StartTime atomic.Int64

	// ledActivity and ledOverflow are pulses: set on the triggering event,
	// read and cleared by the next TakeLEDs call (heartbeat is computed
	// by the reporter from interval throughput, not tracked here).
	ledActivity atomic.Bool
	ledOverflow atomic.Bool
}

// NewMetrics creates a metrics instance with its clock started.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordBlock records bytes accepted into the ring from a source read.
func (m *Metrics) RecordBlock(bytes int) {
	m.TotalBytesCounter.Add(uint64(bytes))
	m.IntervalBytesCounter.Add(uint64(bytes))
	m.ledActivity.Store(true)
}

// RecordDropped records one ring block dropped by the full-ring policy.
func (m *Metrics) RecordDropped() {
	m.DroppedBlocksCounter.Add(1)
	m.ledOverflow.Store(true)
}

// TakeLEDs returns the data/tx/overflow bits pulsed since the last call
// and clears them; Heartbeat is left false for the reporter to fill in
// from interval throughput.
func (m *Metrics) TakeLEDs() reporter.LEDs {
	active := m.ledActivity.Swap(false)
	return reporter.LEDs{Data: active, TX: active, Overflow: m.ledOverflow.Swap(false)}
}

// RecordDecodeError records one TPIU/COBS frame rejected by a decoder.
func (m *Metrics) RecordDecodeError() { m.DecodeErrorsCounter.Add(1) }

// RecordEvicted records one subscriber evicted for a saturated queue.
func (m *Metrics) RecordEvicted() { m.EvictedCounter.Add(1) }

// TotalBytes returns the cumulative byte count accepted from the source.
func (m *Metrics) TotalBytes() uint64 { return m.TotalBytesCounter.Load() }

// TakeIntervalBytes returns the byte count accepted since the last call
// and resets the counter to zero.
func (m *Metrics) TakeIntervalBytes() uint64 { return m.IntervalBytesCounter.Swap(0) }

// DroppedBlocks returns the cumulative ring-drop count.
func (m *Metrics) DroppedBlocks() uint64 { return m.DroppedBlocksCounter.Load() }

// DecodeErrors returns the cumulative decode-error count.
func (m *Metrics) DecodeErrors() uint64 { return m.DecodeErrorsCounter.Load() }

// EvictedSubscribers returns the cumulative subscriber-eviction count.
func (m *Metrics) EvictedSubscribers() uint64 { return m.EvictedCounter.Load() }

// Snapshot is a point-in-time view of Metrics.
type Snapshot struct {
	TotalBytes         uint64
	DroppedBlocks      uint64
	DecodeErrors       uint64
	EvictedSubscribers uint64
	UptimeNs           uint64
	Throughput         float64 // bytes/sec since StartTime
}

// Snapshot returns a consistent-enough point-in-time view of m. It does
// not consume the interval counter (see TakeIntervalBytes for that).
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		TotalBytes:         m.TotalBytesCounter.Load(),
		DroppedBlocks:      m.DroppedBlocksCounter.Load(),
		DecodeErrors:       m.DecodeErrorsCounter.Load(),
		EvictedSubscribers: m.EvictedCounter.Load(),
	}
	snap.UptimeNs = uint64(time.Now().UnixNano() - m.StartTime.Load())
	if snap.UptimeNs > 0 {
		snap.Throughput = float64(snap.TotalBytes) / (float64(snap.UptimeNs) / 1e9)
	}
	return snap
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveBlockProduced(int)     {}
func (NoOpObserver) ObserveBlockDropped()          {}
func (NoOpObserver) ObserveDecodeError()           {}
func (NoOpObserver) ObserveSubscriberEvicted(int)  {}

// MetricsObserver implements interfaces.Observer on top of Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer recording into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveBlockProduced(bytes int) { o.metrics.RecordBlock(bytes) }
func (o *MetricsObserver) ObserveBlockDropped()           { o.metrics.RecordDropped() }
func (o *MetricsObserver) ObserveDecodeError()            { o.metrics.RecordDecodeError() }
func (o *MetricsObserver) ObserveSubscriberEvicted(int)   { o.metrics.RecordEvicted() }

var _ interfaces.Observer = (*MetricsObserver)(nil)
var _ interfaces.Observer = (*NoOpObserver)(nil)
