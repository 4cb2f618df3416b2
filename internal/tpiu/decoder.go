// Package tpiu implements the ARM Cortex-M TPIU (Trace Port Interface Unit)
// synchronous frame decoder: a stateful de-framer that recovers a
// channel-tagged byte stream from a byte-oriented transport carrying
// 16-byte frames delimited by periodic sync sequences.
package tpiu

import "github.com/tracehub/orbdemux/internal/constants"

// State is the decoder's synchronisation state.
type State int

const (
	StateUnsynced State = iota
	StateRxing
	StateSynced
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnsynced:
		return "unsynced"
	case StateRxing:
		return "rxing"
	case StateSynced:
		return "synced"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// EventKind classifies what Feed produced for one input byte.
type EventKind int

const (
	EventNone EventKind = iota
	EventRxing
	EventNewSync
	EventSynced
	EventUnsynced
	EventPacketReady
	EventError
)

// Entry is one decoded (stream, byte) pair.
type Entry struct {
	Stream uint8
	Data   byte
}

// Frame is a decoded TPIU half-frame: up to 15 (stream, byte) entries
// recovered from one 16-byte raw TPIU frame.
type Frame struct {
	Entries []Entry
}

// Event is the result of feeding one byte to the decoder.
type Event struct {
	Kind  EventKind
	Frame Frame
}

const syncSeq = constants.TPIUSyncSequence

// Decoder is a synchronous TPIU de-framer. It consumes one byte at a time
// via Feed and is safe for use by a single goroutine (the Distribution
// Processor).
type Decoder struct {
	state  State
	offset int // 0..15, staging frame fill level
	stage  [constants.TPIUFrameSize]byte
	last4  [4]byte
	have4  int
	stream uint8 // current stream in effect, carried across frames

	TotalFrames  uint64
	LostFrames   uint64
	DecodeErrors uint64
}

// New creates a decoder starting in the Unsynced state.
func New() *Decoder {
	return &Decoder{stream: constants.MinChannel}
}

// State returns the decoder's current synchronisation state.
func (d *Decoder) State() State { return d.state }

// PendingCount returns the number of bytes currently buffered toward the
// next complete frame.
func (d *Decoder) PendingCount() int { return d.offset }

// Reset forces the decoder back to Unsynced, discarding any partially
// assembled frame. Used only on explicit resync events (spec: "Decoder
// state is reset on explicit resync events only").
func (d *Decoder) Reset() {
	d.state = StateUnsynced
	d.offset = 0
	d.have4 = 0
}

func (d *Decoder) pushLast4(b byte) {
	if d.have4 < 4 {
		d.last4[d.have4] = b
		d.have4++
		return
	}
	d.last4[0] = d.last4[1]
	d.last4[1] = d.last4[2]
	d.last4[2] = d.last4[3]
	d.last4[3] = b
}

func (d *Decoder) last4MatchesSync() bool {
	return d.have4 == 4 &&
		d.last4[0] == syncSeq[0] && d.last4[1] == syncSeq[1] &&
		d.last4[2] == syncSeq[2] && d.last4[3] == syncSeq[3]
}

// Feed processes one raw byte and returns the resulting event. The event
// sequence produced for a given byte stream depends only on the stream's
// contents, not on how it was chunked across Feed calls.
func (d *Decoder) Feed(b byte) Event {
	d.pushLast4(b)

	switch d.state {
	case StateUnsynced, StateError:
		if d.last4MatchesSync() {
			d.state = StateSynced
			d.offset = 0
			d.have4 = 0
			return Event{Kind: EventNewSync}
		}
		return Event{Kind: EventNone}

	case StateSynced, StateRxing:
		// Mid-assembly resync check: if the last four received bytes form
		// the sync sequence, the partial frame is discarded.
		if d.offset > 0 && d.last4MatchesSync() {
			d.LostFrames++
			d.state = StateSynced
			d.offset = 0
			d.have4 = 0
			return Event{Kind: EventNewSync}
		}

		d.stage[d.offset] = b
		d.offset++

		if d.offset < constants.TPIUFrameSize {
			d.state = StateRxing
			return Event{Kind: EventRxing}
		}

		// Frame complete.
		frame, ok := d.decodeFrame(d.stage)
		d.offset = 0
		d.have4 = 0
		if !ok {
			d.DecodeErrors++
			d.state = StateUnsynced
			return Event{Kind: EventError}
		}
		d.TotalFrames++
		d.state = StateSynced
		return Event{Kind: EventPacketReady, Frame: frame}
	}

	return Event{Kind: EventNone}
}

// decodeFrame applies the ARM TPIU rules: bytes at even offsets
// (0, 2, ..., 14) are either data or a stream-ID-change marker depending on
// bit 0; the aux byte at offset 15 carries one bit for each of the 8
// even-offset slots: the "change before" flag of a marker, or bit 0 of a
// data byte; odd offsets are always data.
func (d *Decoder) decodeFrame(raw [constants.TPIUFrameSize]byte) (Frame, bool) {
	aux := raw[15]
	stream := d.stream
	var entries []Entry

	for pair := 0; pair < 8; pair++ {
		evenOff := pair * 2
		b := raw[evenOff]
		changeBefore := aux&(1<<uint(pair)) != 0

		if b&1 == 1 {
			newStream := b >> 1
			if newStream < constants.MinChannel {
				return Frame{}, false
			}
			if changeBefore {
				stream = newStream
			}
			if evenOff+1 < 15 {
				entries = append(entries, Entry{Stream: stream, Data: raw[evenOff+1]})
			}
			if !changeBefore {
				stream = newStream
			}
			continue
		}

		entries = append(entries, Entry{Stream: stream, Data: b | (aux>>uint(pair))&1})
		if evenOff+1 < 15 {
			entries = append(entries, Entry{Stream: stream, Data: raw[evenOff+1]})
		}
	}

	d.stream = stream
	return Frame{Entries: entries}, true
}
