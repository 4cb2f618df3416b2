package source

import (
	"context"
	"fmt"

	"github.com/google/gousb"
	"github.com/tracehub/orbdemux/internal/constants"
	"github.com/tracehub/orbdemux/internal/interfaces"
)

// USBSource reads trace bytes from a bulk IN endpoint on a debug probe
// (e.g. an ORBTRACE- or Black Magic-style probe exposing a bulk trace
// endpoint alongside its CDC-ACM control interface).
type USBSource struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	intf    *gousb.Interface
	ep      *gousb.InEndpoint
	release func()
}

// OpenUSB opens the first device matching vid:pid, claims its default
// interface, and opens the given bulk IN endpoint for reading.
func OpenUSB(vid, pid, epNum int) (*USBSource, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, err
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("usb: no device matching %04x:%04x", vid, pid)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}

	ep, err := intf.InEndpoint(epNum)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, err
	}

	return &USBSource{ctx: ctx, dev: dev, intf: intf, ep: ep, release: done}, nil
}

func (s *USBSource) Read(buf []byte) (int, interfaces.ReadStatus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.USBReadTimeout)
	defer cancel()
	n, err := s.ep.ReadContext(ctx, buf)
	if err != nil {
		if n > 0 {
			return n, interfaces.StatusOK, nil
		}
		if ctx.Err() != nil {
			// A timeout is not an error: nothing arrived within the window.
			return 0, interfaces.StatusOK, nil
		}
		return n, interfaces.StatusTransientError, err
	}
	return n, interfaces.StatusOK, nil
}

func (s *USBSource) Close() error {
	s.release()
	s.dev.Close()
	return s.ctx.Close()
}
