package orbdemux

import (
	"context"
	"io"
	"time"

	"github.com/tracehub/orbdemux/internal/constants"
	"github.com/tracehub/orbdemux/internal/interfaces"
)

// Framing selects which de-framer the pipeline runs over the raw byte
// stream.
type Framing int

const (
	// FramingTPIU decodes ARM TPIU synchronous frames (selected by -t or
	// -o on the command line).
	FramingTPIU Framing = iota
	// FramingORBFLOW decodes COBS-delimited ORBFLOW records, which carry
	// their own per-record channel tag.
	FramingORBFLOW
	// FramingRaw passes bytes straight through to RawChannel, with no
	// de-framing.
	FramingRaw
)

// Options configures one pipeline run. Exactly one source field group
// should be populated; CreateAndServe enforces the mutual exclusivity
// the CLI also enforces (-f, -p, -s are mutually exclusive; USB is the
// default when none is given).
type Options struct {
	Context  context.Context
	Logger   interfaces.Logger
	Observer interfaces.Observer

	// File source (-f, -e).
	FilePath         string
	FileEOFTerminate bool

	// Serial source (-p, -a).
	SerialDevice string
	SerialBaud   uint32

	// TCP debug-server source (-s). TCPSelected distinguishes "-s was
	// given" from "-s was defaulted", since TCPHost/TCPPort are always
	// filled with their defaults by WithDefaults.
	TCPSelected bool
	TCPHost     string
	TCPPort     int

	// USB source, used when FilePath/SerialDevice/TCPHost are all unset.
	USBVendorID  int
	USBProductID int
	USBEndpoint  int

	// FPGA/orbtrace width (-o); 0 means unset. The CLI selects
	// FramingTPIU when -o is given; setting this field does not change
	// Framing.
	FPGAWidth int

	// Framing and channel selection (-t).
	Framing    Framing
	Channels   []int
	RawChannel int

	// ReframeORBFLOW lists channels whose decoded payload is re-wrapped
	// in ORBFLOW/COBS framing before being handed to subscribers, instead
	// of the default bare payload bytes.
	ReframeORBFLOW []int

	// Subscriber registry (-l).
	ListenHost     string
	ListenBasePort int

	// Interval reporter (-m); zero disables it.
	ReportInterval time.Duration
	ReportWriter   io.Writer

	// Verbosity (-v), 0..3.
	Verbosity int

	RingSlots int
}

// WithDefaults returns a copy of o with unset fields filled to their
// documented defaults.
func (o Options) WithDefaults() Options {
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.Observer == nil {
		o.Observer = NoOpObserver{}
	}
	if o.ListenHost == "" {
		o.ListenHost = "0.0.0.0"
	}
	if o.ListenBasePort == 0 {
		o.ListenBasePort = constants.DefaultListenPort
	}
	if o.TCPHost == "" {
		o.TCPHost = constants.DefaultDebugServerHost
	}
	if o.TCPPort == 0 {
		o.TCPPort = constants.DefaultDebugServerPort
	}
	if o.RingSlots == 0 {
		o.RingSlots = constants.RingSlots
	}
	if o.ReportWriter == nil {
		o.ReportWriter = io.Discard
	}
	if o.USBVendorID == 0 {
		// Default to the Orbtrace entry in the USB device table.
		o.USBVendorID = 0x1209
		o.USBProductID = 0x3443
		o.USBEndpoint = 0x81
	}
	return o
}

// Validate checks option combinations the CLI layer cannot express with
// flag parsing alone: source mutual exclusivity and channel range.
func (o Options) Validate() error {
	sourcesGiven := 0
	if o.FilePath != "" {
		sourcesGiven++
	}
	if o.SerialDevice != "" {
		sourcesGiven++
	}
	if o.TCPSelected {
		sourcesGiven++
	}
	if sourcesGiven > 1 {
		return NewError("validate-options", ErrCodeBadOption, "-f, -p, and -s are mutually exclusive")
	}

	for _, ch := range o.Channels {
		if ch < constants.MinChannel || ch > constants.MaxChannel {
			return NewError("validate-options", ErrCodeBadOption, "channel out of range 1..127")
		}
	}

	for _, ch := range o.ReframeORBFLOW {
		if !containsInt(o.Channels, ch) {
			return NewError("validate-options", ErrCodeBadOption, "ReframeORBFLOW channel must also be in Channels")
		}
	}

	if o.FPGAWidth != 0 && o.FPGAWidth != 1 && o.FPGAWidth != 2 && o.FPGAWidth != 4 {
		return NewError("validate-options", ErrCodeBadOption, "FPGA width must be 1, 2, or 4")
	}

	if o.RingSlots != 0 && o.RingSlots < constants.MinRingSlots {
		return NewError("validate-options", ErrCodeBadOption, "RingSlots must be at least 4")
	}

	return nil
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
