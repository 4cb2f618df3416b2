package cobs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		{0x00},
		{0x11, 0x22, 0x00, 0x33},
		{0x00, 0x00, 0x00},
		make([]byte, 300), // exercises the 0xFF run-length rollover
	}
	for i := range cases[5] {
		cases[5][i] = byte(i % 251)
	}

	for _, data := range cases {
		encoded := Encode(data)
		for _, b := range encoded {
			require.NotZero(t, b, "encoded block must never contain a zero byte")
		}
		decoded, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, data, decoded)
	}
}

func TestDecodeRejectsZeroCode(t *testing.T) {
	_, err := Decode([]byte{0x02, 0xAA, 0x00})
	require.ErrorIs(t, err, ErrZeroCode)
}

func TestDecodeRejectsTruncated(t *testing.T) {
	_, err := Decode([]byte{0x05, 0xAA})
	require.ErrorIs(t, err, ErrTruncated)
}

func TestRecordChecksumRoundTrip(t *testing.T) {
	payload := []byte{0x10, 0x20, 0x30}
	raw := EncodeRecord(0x07, payload)

	rec, err := DecodeRecord(raw)
	require.NoError(t, err)
	require.Equal(t, byte(0x07), rec.Tag)
	require.Equal(t, payload, rec.Payload)
}

func TestRecordRejectsBadChecksum(t *testing.T) {
	raw := EncodeRecord(0x07, []byte{0x10, 0x20})
	raw[len(raw)-1] ^= 0xFF // corrupt the checksum byte

	_, err := DecodeRecord(raw)
	require.ErrorIs(t, err, ErrBadChecksum)
}

func TestRecordRejectsTooShort(t *testing.T) {
	_, err := DecodeRecord([]byte{0x01})
	require.ErrorIs(t, err, ErrRecordTooShort)
}

func TestOrbflowDecoderRoundTrip(t *testing.T) {
	d := New()
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	frame := EncodeFrame(3, payload)

	var last Event
	for _, b := range frame {
		e := d.Feed(b)
		if e.Kind != EventNone {
			last = e
		}
	}

	require.Equal(t, EventRecordReady, last.Kind)
	require.Equal(t, byte(3), last.Record.Tag)
	require.Equal(t, payload, last.Record.Payload)
	require.Equal(t, uint64(1), d.TotalRecords)
}

func TestOrbflowDecoderRecoversFromCorruptFrame(t *testing.T) {
	d := New()
	good := EncodeFrame(1, []byte{0x01, 0x02})

	corrupt := EncodeFrame(2, []byte{0x03, 0x04})
	corrupt[len(corrupt)-2] ^= 0xFF // corrupt a byte before the SYNC delimiter

	var events []Event
	feed := func(frame []byte) {
		for _, b := range frame {
			e := d.Feed(b)
			if e.Kind != EventNone {
				events = append(events, e)
			}
		}
	}

	feed(corrupt)
	feed(good)

	require.Len(t, events, 2)
	require.Equal(t, EventError, events[0].Kind)
	require.Equal(t, EventRecordReady, events[1].Kind)
	require.Equal(t, byte(1), events[1].Record.Tag)
}

func TestOrbflowDecoderIgnoresConsecutiveSync(t *testing.T) {
	d := New()
	e := d.Feed(0x00)
	require.Equal(t, EventNone, e.Kind)
	e = d.Feed(0x00)
	require.Equal(t, EventNone, e.Kind)
}
