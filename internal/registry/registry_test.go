package registry

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	evicted int
}

func (o *countingObserver) ObserveBlockProduced(int)     {}
func (o *countingObserver) ObserveBlockDropped()         {}
func (o *countingObserver) ObserveDecodeError()          {}
func (o *countingObserver) ObserveSubscriberEvicted(int) { o.evicted++ }

func freePort(t *testing.T) int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func dial(t *testing.T, port int) net.Conn {
	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", "127.0.0.1:"+itoa(port))
		if err == nil {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	return conn
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestRegistryDeliversToSubscriber(t *testing.T) {
	basePort := freePort(t) // first opened channel (1) -> basePort+0
	r := New("127.0.0.1", basePort, nil, nil)
	require.NoError(t, r.OpenChannel(1))
	defer r.Close()

	conn := dial(t, basePort)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond) // let the accept loop register the subscriber
	r.Publish(1, []byte("hello"))

	buf := make([]byte, 5)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
}

func TestRegistryEvictsSaturatedSubscriber(t *testing.T) {
	basePort := freePort(t)
	obs := &countingObserver{}
	r := New("127.0.0.1", basePort, obs, nil)
	require.NoError(t, r.OpenChannel(2))
	defer r.Close()

	conn := dial(t, basePort)
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	big := make([]byte, 100*1024) // exceeds the 64KiB budget in one shot
	r.Publish(2, big)

	require.Equal(t, 1, obs.evicted)
	require.Equal(t, 0, r.SubscriberCount(2))
}

func TestRegistryPublishToUnknownChannelIsNoop(t *testing.T) {
	r := New("127.0.0.1", freePort(t), nil, nil)
	require.NotPanics(t, func() { r.Publish(99, []byte("x")) })
}
