package orbdemux

import (
	"context"
	"sync"
	"time"

	"github.com/tracehub/orbdemux/internal/constants"
	"github.com/tracehub/orbdemux/internal/interfaces"
	"github.com/tracehub/orbdemux/internal/processor"
	"github.com/tracehub/orbdemux/internal/registry"
	"github.com/tracehub/orbdemux/internal/reporter"
	"github.com/tracehub/orbdemux/internal/ring"
	"github.com/tracehub/orbdemux/internal/source"
)

// dialFunc (re-)opens the configured source. Stored so the source loop
// can reconnect after a transient or fatal read error without the
// caller having to know which source variant is active.
type dialFunc func() (interfaces.Source, error)

// Pipeline is one running source->ring->processor->registry chain.
type Pipeline struct {
	opts     Options
	registry *registry.Registry
	proc     *processor.Processor
	rep      *reporter.Reporter
	ring     *ring.Ring
	metrics  *Metrics
	observer interfaces.Observer
	logger   interfaces.Logger
	dial     dialFunc

	mu     sync.Mutex
	source interfaces.Source

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	lastDropped uint64
}

// CreateAndServe opens the configured source, wires up the ring,
// processor, and subscriber registry, and starts serving. The pipeline
// runs until the context in opts is cancelled or Shutdown is called.
func CreateAndServe(opts Options) (*Pipeline, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	dial, err := dialFuncFor(opts)
	if err != nil {
		return nil, WrapError("open-source", ErrCodeSourceOpen, err)
	}
	src, err := dial()
	if err != nil {
		return nil, WrapError("open-source", ErrCodeSourceOpen, err)
	}

	if opts.FPGAWidth != 0 {
		if err := writeFPGAWidth(src, opts.FPGAWidth, opts.Logger); err != nil {
			src.Close()
			return nil, WrapError("fpga-control", ErrCodeSourceOpen, err)
		}
	}

	metrics := NewMetrics()
	observer := opts.Observer
	if _, ok := observer.(NoOpObserver); ok || observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	r := ring.New(opts.RingSlots, constants.RawBlockSize)
	reg := registry.New(opts.ListenHost, opts.ListenBasePort, observer, opts.Logger)

	mode := processor.ModeTPIU
	switch opts.Framing {
	case FramingORBFLOW:
		mode = processor.ModeCOBS
	case FramingRaw:
		mode = processor.ModeRaw
	}

	channels := make([]int, len(opts.Channels))
	copy(channels, opts.Channels)
	if mode == processor.ModeRaw {
		channels = append(channels, opts.RawChannel)
	}
	for _, ch := range channels {
		if err := reg.OpenChannel(ch); err != nil {
			src.Close()
			return nil, WrapError("open-channel", ErrCodeChannelOpen, err)
		}
	}

	proc := processor.New(r, mode, opts.RawChannel, reg, observer, opts.Logger)
	if len(opts.ReframeORBFLOW) > 0 {
		proc.SetReframeChannels(opts.ReframeORBFLOW)
	}

	ctx, cancel := context.WithCancel(opts.Context)
	p := &Pipeline{
		opts:     opts,
		registry: reg,
		proc:     proc,
		ring:     r,
		metrics:  metrics,
		observer: observer,
		logger:   opts.Logger,
		dial:     dial,
		source:   src,
		ctx:      ctx,
		cancel:   cancel,
	}

	if opts.ReportInterval > 0 {
		p.rep = reporter.New(metrics, opts.ReportInterval, opts.ReportWriter)
		go p.rep.Run()
	}

	go proc.Run()
	p.wg.Add(1)
	go p.sourceLoop()

	return p, nil
}

// Metrics returns the pipeline's metrics instance.
func (p *Pipeline) Metrics() *Metrics { return p.metrics }

// Shutdown stops the source loop, processor, reporter, and registry,
// in that order, and waits for the source loop to exit.
func (p *Pipeline) Shutdown() error {
	p.cancel()
	p.wg.Wait()

	p.proc.Stop()
	if p.rep != nil {
		p.rep.Stop()
	}
	return p.registry.Close()
}

func (p *Pipeline) sourceLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			p.currentSource().Close()
			return
		default:
		}

		block := p.ring.Acquire()
		n, status, err := p.currentSource().Read(block.Data)

		switch status {
		case interfaces.StatusOK:
			if n > 0 {
				block.Fill = n
				p.ring.Publish()
				p.observer.ObserveBlockProduced(n)
				p.observeDrops()
			}

		case interfaces.StatusEndOfInput:
			p.currentSource().Close()
			return

		case interfaces.StatusTransientError, interfaces.StatusFatalError:
			if p.logger != nil {
				p.logger.Warnf("source read error: %v; reconnecting", err)
			}
			p.currentSource().Close()

			select {
			case <-p.ctx.Done():
				return
			case <-time.After(constants.SourceRetryBackoff):
			}

			newSrc, derr := p.dial()
			if derr != nil {
				if p.logger != nil {
					p.logger.Warnf("source reopen failed: %v", derr)
				}
				continue
			}
			p.mu.Lock()
			p.source = newSrc
			p.mu.Unlock()
		}
	}
}

func (p *Pipeline) currentSource() interfaces.Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

func (p *Pipeline) observeDrops() {
	dropped := p.ring.DroppedBlocks()
	for dropped > p.lastDropped {
		p.observer.ObserveBlockDropped()
		p.lastDropped++
	}
}

// writeFPGAWidth sends the single 2-byte FPGA/orbtrace width-select
// control write (0x77, 0xA0|w) if the source's transport supports
// writing back to the probe. Sources with no control write path (a
// bulk-only USB endpoint) are left alone, with a warning, since the
// width is then assumed to already be configured out-of-band.
func writeFPGAWidth(src interfaces.Source, width int, logger interfaces.Logger) error {
	w, ok := src.(interfaces.Writer)
	if !ok {
		if logger != nil {
			logger.Warnf("source has no control write path; skipping FPGA width select")
		}
		return nil
	}

	sel := byte(width)
	if width == 4 {
		sel = 3
	}
	_, err := w.Write([]byte{0x77, 0xA0 | sel})
	return err
}

func dialFuncFor(opts Options) (dialFunc, error) {
	switch {
	case opts.FilePath != "":
		return func() (interfaces.Source, error) {
			return source.OpenFile(opts.FilePath, !opts.FileEOFTerminate)
		}, nil

	case opts.SerialDevice != "":
		baud := opts.SerialBaud
		if baud == 0 {
			baud = constants.FPGABaud
		}
		return func() (interfaces.Source, error) {
			return source.OpenSerial(opts.SerialDevice, baud)
		}, nil

	case opts.TCPSelected:
		return func() (interfaces.Source, error) {
			return source.DialTCP(opts.TCPHost, opts.TCPPort)
		}, nil

	default:
		return func() (interfaces.Source, error) {
			return source.OpenUSB(opts.USBVendorID, opts.USBProductID, opts.USBEndpoint)
		}, nil
	}
}
