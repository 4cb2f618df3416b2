// Package source implements the four byte-source variants a pipeline can
// be started from: file, TCP client (debug server), serial tty, and USB
// bulk endpoint.
package source

import (
	"io"
	"os"
	"time"

	"github.com/tracehub/orbdemux/internal/constants"
	"github.com/tracehub/orbdemux/internal/interfaces"
)

// FileSource reads a pre-recorded trace capture from a regular file.
// In follow mode it behaves like `tail -f`, polling for new bytes past
// EOF instead of terminating.
type FileSource struct {
	f      *os.File
	follow bool
}

// OpenFile opens path for reading. follow keeps the source alive past
// EOF, polling for appended bytes; otherwise EOF ends the pipeline.
func OpenFile(path string, follow bool) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{f: f, follow: follow}, nil
}

func (s *FileSource) Read(buf []byte) (int, interfaces.ReadStatus, error) {
	for {
		n, err := s.f.Read(buf)
		if n > 0 {
			return n, interfaces.StatusOK, nil
		}
		if err == io.EOF {
			if !s.follow {
				return 0, interfaces.StatusEndOfInput, nil
			}
			time.Sleep(constants.FileEOFPollInterval)
			continue
		}
		if err != nil {
			return 0, interfaces.StatusFatalError, err
		}
	}
}

func (s *FileSource) Close() error { return s.f.Close() }
