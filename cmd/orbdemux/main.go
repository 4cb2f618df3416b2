// Command orbdemux demultiplexes an ARM Cortex-M trace stream (TPIU
// synchronous frames or ORBFLOW/COBS packets) from a USB probe, a debug
// server's TCP socket, a serial tty, or a file, and fans out each
// channel's bytes to TCP subscribers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/tracehub/orbdemux"
	"github.com/tracehub/orbdemux/internal/constants"
	"github.com/tracehub/orbdemux/internal/logging"
)

// Exit codes per the documented CLI contract.
const (
	exitOK          = 0
	exitOptionError = -1
	exitSerialError = -3
	exitFileError   = -4
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		baud       = flag.Uint("a", 0, "serial baud rate for -p (0 selects the 12 Mbaud FPGA rate)")
		terminate  = flag.Bool("e", false, "terminate on file source EOF instead of following")
		filePath   = flag.String("f", "", "read trace bytes from a file instead of a live probe")
		help       = flag.Bool("h", false, "print usage and exit")
		listenPort = flag.Int("l", constants.DefaultListenPort, "base subscriber listen port")
		reportMs   = flag.Int("m", 0, "interval status report period in milliseconds (0 disables)")
		fpgaWidth  = flag.Int("o", 0, "orbtrace/FPGA trace width in {1,2,4}; implies TPIU framing")
		serialDev  = flag.String("p", "", "read trace bytes from a serial device")
		debugAddr  = flag.String("s", "", "read trace bytes from a debug server's TCP socket, host[:port]")
		channels   = flag.String("t", "", "comma-separated TPIU channel list (each in 1..127)")
		verbosity  = flag.Int("v", 0, "verbosity, 0..3")
	)
	flag.Parse()

	if *help {
		flag.Usage()
		return exitOK
	}

	logConfig := &logging.Config{Level: logging.LevelFromVerbosity(*verbosity), Output: os.Stderr}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	opts, err := buildOptions(orbdemux.Options{}, *baud, *terminate, *filePath, *listenPort, *reportMs,
		*fpgaWidth, *serialDev, *debugAddr, *channels, *verbosity, logger)
	if err != nil {
		logger.Error("option error", "error", err)
		return exitOptionError
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts.Context = ctx

	p, err := orbdemux.CreateAndServe(opts)
	if err != nil {
		logger.Error("failed to start", "error", err)
		switch {
		case *serialDev != "":
			return exitSerialError
		case *filePath != "":
			return exitFileError
		default:
			return exitOptionError
		}
	}

	logger.Info("orbdemux running", "listen_base_port", opts.ListenBasePort, "channels", opts.Channels)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	cancel()

	done := make(chan struct{})
	go func() {
		if err := p.Shutdown(); err != nil {
			logger.Error("error during shutdown", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		logger.Warn("shutdown timed out, exiting anyway")
	}

	return exitOK
}

// buildOptions translates parsed flags into an orbdemux.Options,
// applying the CLI-level rules Options.Validate cannot express alone
// (channel-list parsing, host[:port] splitting, FPGA-implies-TPIU).
func buildOptions(base orbdemux.Options, baud uint, terminate bool, filePath string, listenPort, reportMs,
	fpgaWidth int, serialDev, debugAddr, channelList string, verbosity int, logger *logging.Logger) (orbdemux.Options, error) {

	o := base
	o.Logger = logger
	o.Verbosity = verbosity
	o.ListenBasePort = listenPort
	o.ReportInterval = time.Duration(reportMs) * time.Millisecond
	o.ReportWriter = os.Stdout

	o.FilePath = filePath
	o.FileEOFTerminate = terminate
	o.SerialDevice = serialDev
	o.SerialBaud = uint32(baud)
	o.FPGAWidth = fpgaWidth

	if debugAddr != "" {
		host, port, err := splitHostPort(debugAddr, constants.DefaultDebugServerPort)
		if err != nil {
			return o, err
		}
		o.TCPSelected = true
		o.TCPHost = host
		o.TCPPort = port
	}

	chans, err := parseChannels(channelList)
	if err != nil {
		return o, err
	}
	o.Channels = chans

	// -o always implies TPIU (the FPGA width select is a TPIU-only
	// concept); -t otherwise selects TPIU with the given channel list;
	// with neither given, the native ORBFLOW/COBS framing is assumed
	// (the debug-server and USB probe default wire format). No -t list
	// exists in that case, so no channel listeners are opened.
	switch {
	case fpgaWidth != 0:
		o.Framing = orbdemux.FramingTPIU
	case channelList != "":
		o.Framing = orbdemux.FramingTPIU
	default:
		o.Framing = orbdemux.FramingORBFLOW
	}

	o = o.WithDefaults()
	if err := o.Validate(); err != nil {
		return o, err
	}
	return o, nil
}

// parseChannels parses a comma-separated TPIU channel list, e.g. "1,2,7".
func parseChannels(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid channel %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// splitHostPort splits "host[:port]" into host and port, defaulting the
// port when absent. An unadorned "host" (no colon) is the common case
// for -s.
func splitHostPort(s string, defaultPort int) (string, int, error) {
	if !strings.Contains(s, ":") {
		return s, defaultPort, nil
	}
	host, portStr, err := splitLast(s, ':')
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", s, err)
	}
	return host, port, nil
}

func splitLast(s string, sep byte) (string, string, error) {
	i := strings.LastIndexByte(s, sep)
	if i < 0 {
		return "", "", fmt.Errorf("no %q found in %q", string(sep), s)
	}
	return s[:i], s[i+1:], nil
}
