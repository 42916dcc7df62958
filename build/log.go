package build

import (
	"io"
	"os"

	"github.com/btcsuite/btclog"
)

// LogWriter is the writer that all subsystem log backends write to. Output
// always goes to stdout and, once the log rotator has been initialized, to
// the rotator pipe as well.
type LogWriter struct {
	// RotatorPipe is the write-end pipe for writing to the log rotator.
	// It is written to by the Write method of the LogWriter type.
	RotatorPipe *io.PipeWriter
}

// Write writes the byte slice to both stdout and the log rotator, if
// present.
func (w *LogWriter) Write(b []byte) (int, error) {
	os.Stdout.Write(b)
	if w.RotatorPipe != nil {
		w.RotatorPipe.Write(b)
	}
	return len(b), nil
}

// NewSubLogger constructs a new subsystem logger from the given constructor.
// If no constructor is provided, logging is disabled for the subsystem until
// a logger is installed with the package's UseLogger function.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	if genSubLogger != nil {
		return genSubLogger(subsystem)
	}
	return btclog.Disabled
}
