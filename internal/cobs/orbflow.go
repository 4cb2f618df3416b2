package cobs

import "github.com/tracehub/orbdemux/internal/constants"

// EventKind classifies what Decoder.Feed produced for one input byte.
type EventKind int

const (
	EventNone EventKind = iota
	EventRecordReady
	EventError
)

// Event is the result of feeding one byte to a Decoder.
type Event struct {
	Kind   EventKind
	Record Record
}

// Decoder is a stateful ORBFLOW frame de-framer: it accumulates raw
// bytes between SYNC (0x00) delimiters, COBS-decodes each delimited
// block, and validates the inner record checksum. Safe for use by a
// single goroutine.
type Decoder struct {
	staging []byte

	TotalRecords uint64
	DecodeErrors uint64
}

// New creates an ORBFLOW decoder.
func New() *Decoder {
	return &Decoder{staging: make([]byte, 0, 256)}
}

// Feed processes one raw byte and returns the resulting event.
func (d *Decoder) Feed(b byte) Event {
	if b != constants.COBSSync {
		d.staging = append(d.staging, b)
		if len(d.staging) > constants.MaxCOBSRecord {
			d.staging = d.staging[:0]
			d.DecodeErrors++
			return Event{Kind: EventError}
		}
		return Event{Kind: EventNone}
	}

	if len(d.staging) == 0 {
		// Consecutive SYNC bytes are legal idle padding.
		return Event{Kind: EventNone}
	}

	block := d.staging
	d.staging = make([]byte, 0, 256)

	decoded, err := Decode(block)
	if err != nil {
		d.DecodeErrors++
		return Event{Kind: EventError}
	}

	rec, err := DecodeRecord(decoded)
	if err != nil {
		d.DecodeErrors++
		return Event{Kind: EventError}
	}

	d.TotalRecords++
	return Event{Kind: EventRecordReady, Record: rec}
}

// EncodeFrame builds the full wire frame for one record: a COBS-encoded
// {tag, payload, checksum} block followed by the SYNC delimiter. Used by
// the publisher when re-emitting ORBFLOW frames and by tests.
func EncodeFrame(tag byte, payload []byte) []byte {
	inner := EncodeRecord(tag, payload)
	encoded := Encode(inner)
	return append(encoded, constants.COBSSync)
}
