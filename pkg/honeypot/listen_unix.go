//go:build !windows

package honeypot

import (
	"fmt"
	"net"
	"os"
	"syscall"
)

// listenWithBacklog binds a TCP listener with SO_REUSEADDR and an explicit
// backlog. The stdlib's net.Listen has no knob for this, so the socket is
// built by hand and handed back to the net package via net.FileListener.
// EADDRINUSE surfaces from bind(2), not listen(2), so that's where it's
// detected and mapped to the canonical "Already in use" reason (bindError
// and listenError are declared in errors.go, shared with the Windows
// build).
func listenWithBacklog(addr string, backlog int) (net.Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	domain := syscall.AF_INET
	var sockaddr syscall.Sockaddr
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		sa := &syscall.SockaddrInet4{Port: tcpAddr.Port}
		copy(sa.Addr[:], ip4)
		sockaddr = sa
	} else {
		domain = syscall.AF_INET6
		sa := &syscall.SockaddrInet6{Port: tcpAddr.Port}
		copy(sa.Addr[:], tcpAddr.IP.To16())
		sockaddr = sa
	}

	fd, err := syscall.Socket(domain, syscall.SOCK_STREAM, syscall.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	if err := syscall.Bind(fd, sockaddr); err != nil {
		syscall.Close(fd)
		if err == syscall.EADDRINUSE {
			return nil, &listenError{}
		}
		return nil, &bindError{err: err}
	}

	if backlog < 1 {
		backlog = 1
	}
	if err := syscall.Listen(fd, backlog); err != nil {
		syscall.Close(fd)
		return nil, &bindError{err: err}
	}

	f := os.NewFile(uintptr(fd), fmt.Sprintf("honeypot-listener-%s", addr))
	ln, err := net.FileListener(f)
	// net.FileListener dup()s the fd; the original fd must be closed either way.
	closeErr := f.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return ln, nil
}
