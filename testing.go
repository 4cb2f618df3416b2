package orbdemux

import (
	"sync"

	"github.com/tracehub/orbdemux/internal/interfaces"
)

// ErrMockSourceClosed is returned by a MockSource's Read after Close.
var ErrMockSourceClosed = NewError("mock-source-read", ErrCodeSourceRead, "mock source closed")

// MockSource provides a scriptable implementation of interfaces.Source for
// testing. Reads are served from a queue of canned chunks; once the queue is
// drained it reports EndStatus (StatusEndOfInput by default) on every further
// call. It tracks call counts for verification.
type MockSource struct {
	mu     sync.Mutex
	chunks [][]byte
	err    error
	// EndStatus is returned, with n=0, once chunks is drained. Defaults to
	// StatusEndOfInput.
	EndStatus interfaces.ReadStatus

	readCalls  int
	closeCalls int
	closed     bool
}

// NewMockSource creates a mock source that yields chunks in order, then
// reports StatusEndOfInput forever.
func NewMockSource(chunks ...[]byte) *MockSource {
	return &MockSource{
		chunks:    append([][]byte{}, chunks...),
		EndStatus: interfaces.StatusEndOfInput,
	}
}

// Read implements interfaces.Source.
func (m *MockSource) Read(buf []byte) (int, interfaces.ReadStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readCalls++

	if m.closed {
		return 0, interfaces.StatusFatalError, ErrMockSourceClosed
	}

	if m.err != nil {
		err := m.err
		m.err = nil
		return 0, interfaces.StatusTransientError, err
	}

	if len(m.chunks) == 0 {
		return 0, m.EndStatus, nil
	}

	chunk := m.chunks[0]
	m.chunks = m.chunks[1:]
	n := copy(buf, chunk)
	return n, interfaces.StatusOK, nil
}

// Close implements interfaces.Source.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeCalls++
	m.closed = true
	return nil
}

// QueueChunk appends a chunk to be delivered by a future Read call.
func (m *MockSource) QueueChunk(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, append([]byte{}, data...))
}

// QueueError arranges for the next Read to return StatusTransientError with
// err, without consuming a queued chunk.
func (m *MockSource) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// IsClosed reports whether Close has been called.
func (m *MockSource) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ReadCalls returns the number of times Read has been called.
func (m *MockSource) ReadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readCalls
}

var _ interfaces.Source = (*MockSource)(nil)
