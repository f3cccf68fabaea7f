//go:build !windows

package log

import (
	"io"
	"log/syslog"
	"os"
)

// defaultOutput writes to the system log facility when one is reachable,
// otherwise falls back to stderr so the dispatcher still logs somewhere in
// a container or CI sandbox with no syslog daemon.
func defaultOutput() io.Writer {
	w, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_INFO, AppName)
	if err != nil {
		return os.Stderr
	}
	return w
}
