// Package reporter implements the Interval Reporter: a periodic status
// line showing throughput and error counters, written in place on a
// terminal (or as plain lines when the output isn't a tty).
package reporter

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Stats is the narrow metrics surface the reporter reads each tick;
// satisfied by the root package's Metrics type. IntervalBytes must
// report-and-reset so each tick shows only bytes since the last one.
type Stats interface {
	TakeIntervalBytes() uint64
	TotalBytes() uint64
	DroppedBlocks() uint64
	DecodeErrors() uint64
	EvictedSubscribers() uint64
	TakeLEDs() LEDs
}

// LEDs mirrors the 4-bit trace-activity indicator: data and tx pulse on
// source activity, overflow latches until the next tick reads it, and
// heartbeat is synthesized here when a tick saw zero throughput.
type LEDs struct {
	Data, TX, Overflow, Heartbeat bool
}

// String renders the four bits as single characters, in data/tx/overflow/
// heartbeat order, for compact inclusion in the status line.
func (l LEDs) String() string {
	bit := func(on bool, c byte) byte {
		if on {
			return c
		}
		return '.'
	}
	return string([]byte{bit(l.Data, 'D'), bit(l.TX, 'T'), bit(l.Overflow, 'O'), bit(l.Heartbeat, 'H')})
}

const defaultWidth = 80

// Reporter prints a periodic status line to out.
type Reporter struct {
	stats    Stats
	interval time.Duration
	out      io.Writer

	stop chan struct{}
	done chan struct{}
}

// New creates a reporter that ticks every interval, writing to out.
func New(stats Stats, interval time.Duration, out io.Writer) *Reporter {
	return &Reporter{
		stats:    stats,
		interval: interval,
		out:      out,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run ticks until Stop is called. Blocks; call in its own goroutine.
func (r *Reporter) Run() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// Stop signals Run to return and waits for it to do so.
func (r *Reporter) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reporter) tick() {
	interval := r.stats.TakeIntervalBytes()

	leds := r.stats.TakeLEDs()
	leds.Heartbeat = interval == 0
	line := fmt.Sprintf("rx %8d B/interval | total %10d B | dropped %6d | decode-err %6d | evicted %4d | leds %s",
		interval, r.stats.TotalBytes(), r.stats.DroppedBlocks(), r.stats.DecodeErrors(), r.stats.EvictedSubscribers(), leds)

	width := terminalWidth(r.out)
	if len(line) > width {
		line = line[:width]
	}

	if isTerminal(r.out) {
		fmt.Fprintf(r.out, "\r\033[K%s", line)
	} else {
		fmt.Fprintln(r.out, line)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	return err == nil
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return defaultWidth
	}
	ws, err := unix.IoctlGetWinsize(int(f.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 {
		return defaultWidth
	}
	return int(ws.Col)
}
