package orbdemux

import "github.com/tracehub/orbdemux/internal/constants"

// Re-exported constants for the public API.
const (
	RawBlockSize         = constants.RawBlockSize
	RingSlots            = constants.RingSlots
	MinRingSlots         = constants.MinRingSlots
	SubscriberQueueBytes = constants.SubscriberQueueBytes
	DefaultListenPort    = constants.DefaultListenPort
	DefaultDebugServerHost = constants.DefaultDebugServerHost
	DefaultDebugServerPort = constants.DefaultDebugServerPort
	MinChannel           = constants.MinChannel
	MaxChannel           = constants.MaxChannel
	FPGABaud             = constants.FPGABaud
)
