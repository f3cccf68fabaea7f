//go:build windows

package log

import (
	"io"
	"os"
)

// defaultOutput has no syslog facility to reach for on Windows, so console
// output goes straight to stderr.
func defaultOutput() io.Writer {
	return os.Stderr
}
