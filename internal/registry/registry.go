// Package registry implements the Subscriber Registry: one TCP listener
// per active channel, fanning each channel's decoded byte stream out to
// every connected subscriber. A slow subscriber is evicted, never
// allowed to apply backpressure to the rest of the pipeline.
package registry

import (
	"fmt"
	"net"
	"sync"

	"github.com/tracehub/orbdemux/internal/constants"
	"github.com/tracehub/orbdemux/internal/interfaces"
)

// Registry owns one listener and one subscriber set per channel.
type Registry struct {
	host     string
	basePort int
	observer interfaces.Observer
	logger   interfaces.Logger

	mu       sync.Mutex
	channels map[int]*channelState
}

type channelState struct {
	id       int
	listener net.Listener

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// New creates an empty registry. Channels are opened on demand via
// OpenChannel.
func New(host string, basePort int, observer interfaces.Observer, logger interfaces.Logger) *Registry {
	return &Registry{
		host:     host,
		basePort: basePort,
		observer: observer,
		logger:   logger,
		channels: make(map[int]*channelState),
	}
}

// OpenChannel starts a TCP listener for channel id at basePort+index,
// where index is the number of channels opened before it (0 for the
// first), and begins accepting subscribers. Calling it twice for the
// same id is a no-op.
func (r *Registry) OpenChannel(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[id]; ok {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", r.host, r.basePort+len(r.channels))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("registry: listen channel %d: %w", id, err)
	}

	ch := &channelState{id: id, listener: ln, subs: make(map[*subscriber]struct{})}
	r.channels[id] = ch
	go r.acceptLoop(ch)
	return nil
}

func (r *Registry) acceptLoop(ch *channelState) {
	for {
		conn, err := ch.listener.Accept()
		if err != nil {
			return // listener closed during shutdown
		}
		sub := newSubscriber(conn)
		ch.mu.Lock()
		ch.subs[sub] = struct{}{}
		ch.mu.Unlock()
		if r.logger != nil {
			r.logger.Debugf("channel %d: subscriber connected from %s", ch.id, conn.RemoteAddr())
		}
		go r.runSubscriber(ch, sub)
	}
}

func (r *Registry) runSubscriber(ch *channelState, sub *subscriber) {
	sub.writeLoop()
	ch.mu.Lock()
	delete(ch.subs, sub)
	ch.mu.Unlock()
}

// Publish delivers data to every subscriber on channel id. A subscriber
// whose queue would exceed SubscriberQueueBytes is evicted instead of
// being allowed to block this call.
func (r *Registry) Publish(id int, data []byte) {
	r.mu.Lock()
	ch, ok := r.channels[id]
	r.mu.Unlock()
	if !ok {
		return
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	for sub := range ch.subs {
		if !sub.enqueue(data, constants.SubscriberQueueBytes) {
			sub.close()
			delete(ch.subs, sub)
			if r.observer != nil {
				r.observer.ObserveSubscriberEvicted(id)
			}
			if r.logger != nil {
				r.logger.Warnf("channel %d: subscriber queue saturated, evicting", id)
			}
		}
	}
}

// SubscriberCount reports how many subscribers are currently connected
// on channel id.
func (r *Registry) SubscriberCount(id int) int {
	r.mu.Lock()
	ch, ok := r.channels[id]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.subs)
}

// Close shuts down every listener and disconnects every subscriber.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, ch := range r.channels {
		if err := ch.listener.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		ch.mu.Lock()
		for sub := range ch.subs {
			sub.close()
		}
		ch.mu.Unlock()
	}
	return firstErr
}
