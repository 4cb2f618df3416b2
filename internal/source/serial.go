package source

import (
	"time"

	serial "github.com/daedaluz/goserial"
	"github.com/tracehub/orbdemux/internal/interfaces"
)

// SerialSource reads trace bytes from a tty, typically a UART bridge or
// an FPGA-hosted trace sink presenting as a serial device.
type SerialSource struct {
	port *serial.Port
}

// OpenSerial opens device at the given baud rate in raw mode. baud is
// set via the custom-speed path so non-standard FPGA rates (e.g.
// constants.FPGABaud) are accepted.
func OpenSerial(device string, baud uint32) (*SerialSource, error) {
	opts := serial.NewOptions().SetReadTimeout(100 * time.Millisecond)
	port, err := serial.Open(device, opts)
	if err != nil {
		return nil, err
	}

	attrs, err := port.GetAttr2()
	if err != nil {
		port.Close()
		return nil, err
	}
	attrs.MakeRaw()
	attrs.SetCustomSpeed(baud)
	if err := port.SetAttr2(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, err
	}

	return &SerialSource{port: port}, nil
}

func (s *SerialSource) Read(buf []byte) (int, interfaces.ReadStatus, error) {
	n, err := s.port.Read(buf)
	if err != nil {
		if err == serial.ErrClosed {
			return n, interfaces.StatusFatalError, err
		}
		// A read timeout is not an error from this source's perspective:
		// it just means nothing arrived within the window.
		if n == 0 {
			return 0, interfaces.StatusOK, nil
		}
		return n, interfaces.StatusTransientError, err
	}
	return n, interfaces.StatusOK, nil
}

func (s *SerialSource) Close() error { return s.port.Close() }

// Write implements interfaces.Writer, used for FPGA trace-width control
// writes sent back over the same tty.
func (s *SerialSource) Write(buf []byte) (int, error) { return s.port.Write(buf) }
