package orbdemux

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracehub/orbdemux/internal/constants"
)

func TestWithDefaultsFillsUnsetFields(t *testing.T) {
	o := Options{}.WithDefaults()

	require.NotNil(t, o.Context)
	require.NotNil(t, o.Observer)
	require.Equal(t, "0.0.0.0", o.ListenHost)
	require.Equal(t, constants.DefaultListenPort, o.ListenBasePort)
	require.Equal(t, constants.DefaultDebugServerHost, o.TCPHost)
	require.Equal(t, constants.DefaultDebugServerPort, o.TCPPort)
	require.Equal(t, constants.RingSlots, o.RingSlots)
	require.NotNil(t, o.ReportWriter)
	require.Equal(t, 0x1209, o.USBVendorID)
	require.Equal(t, 0x3443, o.USBProductID)
	require.Equal(t, 0x81, o.USBEndpoint)
}

func TestWithDefaultsPreservesExplicitUSBDevice(t *testing.T) {
	o := Options{USBVendorID: 0x1d50, USBProductID: 0x6018, USBEndpoint: 0x85}.WithDefaults()

	require.Equal(t, 0x1d50, o.USBVendorID)
	require.Equal(t, 0x6018, o.USBProductID)
	require.Equal(t, 0x85, o.USBEndpoint)
}

func TestValidateRejectsMultipleSources(t *testing.T) {
	o := Options{FilePath: "trace.bin", SerialDevice: "/dev/ttyACM0"}
	err := o.Validate()
	require.Error(t, err)
	require.True(t, IsCode(err, ErrCodeBadOption))
}

func TestValidateAllowsSingleSource(t *testing.T) {
	o := Options{FilePath: "trace.bin"}
	require.NoError(t, o.Validate())

	o = Options{SerialDevice: "/dev/ttyACM0"}
	require.NoError(t, o.Validate())

	o = Options{TCPSelected: true}
	require.NoError(t, o.Validate())

	require.NoError(t, Options{}.Validate())
}

func TestValidateRejectsOutOfRangeChannel(t *testing.T) {
	o := Options{Channels: []int{0}}
	err := o.Validate()
	require.Error(t, err)
	require.True(t, IsCode(err, ErrCodeBadOption))

	o = Options{Channels: []int{128}}
	err = o.Validate()
	require.Error(t, err)
	require.True(t, IsCode(err, ErrCodeBadOption))

	o = Options{Channels: []int{1, 64, 127}}
	require.NoError(t, o.Validate())
}

func TestValidateRejectsReframeChannelNotInChannels(t *testing.T) {
	o := Options{Channels: []int{1, 2}, ReframeORBFLOW: []int{9}}
	err := o.Validate()
	require.Error(t, err)
	require.True(t, IsCode(err, ErrCodeBadOption))

	o = Options{Channels: []int{1, 2}, ReframeORBFLOW: []int{2}}
	require.NoError(t, o.Validate())
}

func TestValidateRejectsBadFPGAWidth(t *testing.T) {
	o := Options{FPGAWidth: 3}
	err := o.Validate()
	require.Error(t, err)
	require.True(t, IsCode(err, ErrCodeBadOption))

	for _, w := range []int{0, 1, 2, 4} {
		require.NoError(t, Options{FPGAWidth: w}.Validate())
	}
}
