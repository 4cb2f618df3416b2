// Package processor implements the Distribution Processor: it drains
// the Raw Block Ring, runs the configured de-framer (TPIU or
// ORBFLOW/COBS) over the bytes, and publishes each channel's decoded
// run to the Subscriber Registry.
package processor

import (
	"github.com/tracehub/orbdemux/internal/cobs"
	"github.com/tracehub/orbdemux/internal/interfaces"
	"github.com/tracehub/orbdemux/internal/ring"
	"github.com/tracehub/orbdemux/internal/tpiu"
)

// Mode selects which de-framer the processor runs.
type Mode int

const (
	// ModeTPIU decodes ARM TPIU synchronous frames.
	ModeTPIU Mode = iota
	// ModeCOBS decodes ORBFLOW/COBS packet framing.
	ModeCOBS
	// ModeRaw passes bytes straight through to a single fixed channel,
	// with no de-framing (a single-stream capture).
	ModeRaw
)

// Publisher is the narrow slice of the Subscriber Registry the
// processor needs; satisfied by *registry.Registry.
type Publisher interface {
	Publish(channel int, data []byte)
}

// Processor drains a Ring and publishes decoded channel runs. It must
// run in its own goroutine via Run.
type Processor struct {
	ring      *ring.Ring
	mode      Mode
	rawChan   int
	publisher Publisher
	observer  interfaces.Observer
	logger    interfaces.Logger

	tpiuDec *tpiu.Decoder
	cobsDec *cobs.Decoder

	// One-element channel-handler cache: consecutive bytes for the same
	// stream are coalesced into one staging buffer and flushed as a unit,
	// instead of publishing byte-by-byte.
	curChannel int
	curBuf     []byte

	// reframe lists channels whose decoded payload is re-wrapped in
	// ORBFLOW/COBS framing before publishing, instead of bare bytes.
	reframe map[int]bool

	stop chan struct{}
	done chan struct{}
}

// New creates a processor over r, publishing decoded channel runs to p.
// rawChan is only used in ModeRaw.
func New(r *ring.Ring, mode Mode, rawChan int, p Publisher, observer interfaces.Observer, logger interfaces.Logger) *Processor {
	return &Processor{
		ring:       r,
		mode:       mode,
		rawChan:    rawChan,
		publisher:  p,
		observer:   observer,
		logger:     logger,
		tpiuDec:    tpiu.New(),
		cobsDec:    cobs.New(),
		curChannel: -1,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run drains the ring until Stop is called. It blocks; call it in its
// own goroutine.
func (p *Processor) Run() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		case <-p.ring.Readable():
		}

		for {
			block := p.ring.Peek()
			if block == nil {
				break
			}
			p.consume(block.Data[:block.Fill])
			p.ring.Release()

			select {
			case <-p.stop:
				return
			default:
			}
		}
	}
}

// Stop signals Run to return and waits for it to do so.
func (p *Processor) Stop() {
	close(p.stop)
	<-p.done
}

// SetReframeChannels configures which channels get their decoded
// payload re-wrapped in ORBFLOW/COBS framing before publishing, instead
// of the default bare payload bytes.
func (p *Processor) SetReframeChannels(channels []int) {
	set := make(map[int]bool, len(channels))
	for _, ch := range channels {
		set[ch] = true
	}
	p.reframe = set
}

func (p *Processor) consume(data []byte) {
	switch p.mode {
	case ModeRaw:
		p.publish(p.rawChan, data)
	case ModeTPIU:
		for _, b := range data {
			p.feedTPIU(b)
		}
		p.flush()
	case ModeCOBS:
		for _, b := range data {
			p.feedCOBS(b)
		}
	}
}

func (p *Processor) feedTPIU(b byte) {
	ev := p.tpiuDec.Feed(b)
	switch ev.Kind {
	case tpiu.EventPacketReady:
		for _, e := range ev.Frame.Entries {
			p.appendByte(int(e.Stream), e.Data)
		}
	case tpiu.EventError:
		if p.observer != nil {
			p.observer.ObserveDecodeError()
		}
		if p.logger != nil {
			p.logger.Warnf("tpiu: malformed frame, resyncing")
		}
	}
}

func (p *Processor) feedCOBS(b byte) {
	ev := p.cobsDec.Feed(b)
	switch ev.Kind {
	case cobs.EventRecordReady:
		p.publish(int(ev.Record.Tag), ev.Record.Payload)
	case cobs.EventError:
		if p.observer != nil {
			p.observer.ObserveDecodeError()
		}
		if p.logger != nil {
			p.logger.Warnf("cobs: malformed record, discarding")
		}
	}
}

// appendByte coalesces consecutive same-channel bytes into curBuf,
// flushing the previous run when the channel changes.
func (p *Processor) appendByte(channel int, b byte) {
	if channel != p.curChannel {
		p.flush()
		p.curChannel = channel
	}
	p.curBuf = append(p.curBuf, b)
}

// flush publishes and clears the current coalesced run, if any.
func (p *Processor) flush() {
	if len(p.curBuf) == 0 {
		return
	}
	p.publish(p.curChannel, p.curBuf)
	p.curBuf = p.curBuf[:0]
}

func (p *Processor) publish(channel int, data []byte) {
	if len(data) == 0 {
		return
	}
	if p.reframe[channel] {
		data = cobs.EncodeFrame(byte(channel), data)
	}
	p.publisher.Publish(channel, data)
}
