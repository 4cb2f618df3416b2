package orbdemux

import "testing"

func TestMetricsRecordBlock(t *testing.T) {
	m := NewMetrics()
	m.RecordBlock(100)
	m.RecordBlock(50)

	if got := m.TotalBytes(); got != 150 {
		t.Errorf("TotalBytes() = %d, want 150", got)
	}
}

func TestMetricsIntervalBytesResets(t *testing.T) {
	m := NewMetrics()
	m.RecordBlock(200)

	if got := m.TakeIntervalBytes(); got != 200 {
		t.Errorf("TakeIntervalBytes() = %d, want 200", got)
	}
	if got := m.TakeIntervalBytes(); got != 0 {
		t.Errorf("TakeIntervalBytes() second call = %d, want 0", got)
	}
	// TotalBytes must be unaffected by draining the interval counter.
	if got := m.TotalBytes(); got != 200 {
		t.Errorf("TotalBytes() after TakeIntervalBytes = %d, want 200", got)
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordDropped()
	m.RecordDropped()
	m.RecordDecodeError()
	m.RecordEvicted()

	if got := m.DroppedBlocks(); got != 2 {
		t.Errorf("DroppedBlocks() = %d, want 2", got)
	}
	if got := m.DecodeErrors(); got != 1 {
		t.Errorf("DecodeErrors() = %d, want 1", got)
	}
	if got := m.EvictedSubscribers(); got != 1 {
		t.Errorf("EvictedSubscribers() = %d, want 1", got)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordBlock(1024)
	m.RecordDropped()

	snap := m.Snapshot()
	if snap.TotalBytes != 1024 {
		t.Errorf("Snapshot.TotalBytes = %d, want 1024", snap.TotalBytes)
	}
	if snap.DroppedBlocks != 1 {
		t.Errorf("Snapshot.DroppedBlocks = %d, want 1", snap.DroppedBlocks)
	}
}

func TestMetricsTakeLEDsPulsesAndClears(t *testing.T) {
	m := NewMetrics()
	m.RecordBlock(10)
	m.RecordDropped()

	leds := m.TakeLEDs()
	if !leds.Data || !leds.TX || !leds.Overflow {
		t.Errorf("TakeLEDs() = %+v, want all of data/tx/overflow set", leds)
	}

	leds = m.TakeLEDs()
	if leds.Data || leds.TX || leds.Overflow {
		t.Errorf("TakeLEDs() second call = %+v, want cleared", leds)
	}
}

func TestObserversSatisfyInterface(t *testing.T) {
	observers := []interface {
		ObserveBlockProduced(int)
		ObserveBlockDropped()
		ObserveDecodeError()
		ObserveSubscriberEvicted(int)
	}{
		NoOpObserver{},
		NewMetricsObserver(NewMetrics()),
	}

	for _, o := range observers {
		o.ObserveBlockProduced(10)
		o.ObserveBlockDropped()
		o.ObserveDecodeError()
		o.ObserveSubscriberEvicted(1)
	}
}

func TestMetricsObserverRecordsIntoMetrics(t *testing.T) {
	m := NewMetrics()
	o := NewMetricsObserver(m)

	o.ObserveBlockProduced(64)
	o.ObserveBlockDropped()
	o.ObserveDecodeError()
	o.ObserveSubscriberEvicted(2)

	if m.TotalBytes() != 64 {
		t.Errorf("TotalBytes() = %d, want 64", m.TotalBytes())
	}
	if m.DroppedBlocks() != 1 {
		t.Errorf("DroppedBlocks() = %d, want 1", m.DroppedBlocks())
	}
	if m.DecodeErrors() != 1 {
		t.Errorf("DecodeErrors() = %d, want 1", m.DecodeErrors())
	}
	if m.EvictedSubscribers() != 1 {
		t.Errorf("EvictedSubscribers() = %d, want 1", m.EvictedSubscribers())
	}
}
