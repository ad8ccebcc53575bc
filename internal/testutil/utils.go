package testutil

import (
	"io"
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger that writes to stdout while the test runs
// and is silenced on cleanup.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(io.Discard)
	})
	return logger
}
