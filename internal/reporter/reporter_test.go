package reporter

import (
	"bytes"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	interval  atomic.Uint64
	total     atomic.Uint64
	dropped   atomic.Uint64
	decodeErr atomic.Uint64
	evicted   atomic.Uint64
}

func (f *fakeStats) TakeIntervalBytes() uint64    { return f.interval.Swap(0) }
func (f *fakeStats) TotalBytes() uint64           { return f.total.Load() }
func (f *fakeStats) DroppedBlocks() uint64        { return f.dropped.Load() }
func (f *fakeStats) DecodeErrors() uint64         { return f.decodeErr.Load() }
func (f *fakeStats) EvictedSubscribers() uint64   { return f.evicted.Load() }
func (f *fakeStats) TakeLEDs() LEDs               { return LEDs{} }

func TestReporterTicksAndResetsIntervalBytes(t *testing.T) {
	stats := &fakeStats{}
	stats.interval.Store(1234)
	stats.total.Store(5000)

	var buf bytes.Buffer
	r := New(stats, 10*time.Millisecond, &buf)

	go r.Run()
	time.Sleep(35 * time.Millisecond)
	r.Stop()

	out := buf.String()
	require.True(t, strings.Contains(out, "1234") || strings.Contains(out, "total"))
	require.Equal(t, uint64(0), stats.interval.Load())
}

func TestReporterNonTerminalWritesPlainLines(t *testing.T) {
	stats := &fakeStats{}
	var buf bytes.Buffer
	r := New(stats, 10*time.Millisecond, &buf)

	go r.Run()
	time.Sleep(25 * time.Millisecond)
	r.Stop()

	require.NotContains(t, buf.String(), "\033[K")
}

func TestTerminalWidthFallsBackForNonFile(t *testing.T) {
	var buf bytes.Buffer
	require.Equal(t, defaultWidth, terminalWidth(&buf))
}

func TestLEDsStringRendersSetBits(t *testing.T) {
	require.Equal(t, "....", LEDs{}.String())
	require.Equal(t, "DT..", LEDs{Data: true, TX: true}.String())
	require.Equal(t, "..OH", LEDs{Overflow: true, Heartbeat: true}.String())
}
