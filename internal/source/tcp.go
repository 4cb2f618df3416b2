package source

import (
	"fmt"
	"net"
	"time"

	"github.com/tracehub/orbdemux/internal/interfaces"
)

// TCPSource reads from a debug server's TCP trace socket (e.g. OpenOCD
// or a probe's own TCP bridge), as opposed to the TCP listeners the
// Subscriber Registry runs for fan-out.
type TCPSource struct {
	conn net.Conn
}

// DialTCP connects to host:port with a short connect timeout.
func DialTCP(host string, port int) (*TCPSource, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return &TCPSource{conn: conn}, nil
}

func (s *TCPSource) Read(buf []byte) (int, interfaces.ReadStatus, error) {
	n, err := s.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, interfaces.StatusTransientError, err
		}
		return n, interfaces.StatusFatalError, err
	}
	return n, interfaces.StatusOK, nil
}

func (s *TCPSource) Close() error { return s.conn.Close() }

// Write implements interfaces.Writer, used for FPGA trace-width control
// writes sent back over the same debug-server socket.
func (s *TCPSource) Write(buf []byte) (int, error) { return s.conn.Write(buf) }
