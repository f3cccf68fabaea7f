//go:build windows

package honeypot

import "net"

// listenWithBacklog on Windows falls back to the OS default backlog: the
// syscall-level SO_REUSEADDR/listen(backlog) plumbing in listen_unix.go has
// no portable Windows equivalent via the stdlib syscall package. It cannot
// distinguish address-in-use from other bind failures the way listen_unix.go
// does, so every failure here is a bindError carrying the OS message.
func listenWithBacklog(addr string, _ int) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &bindError{err: err}
	}
	return ln, nil
}
