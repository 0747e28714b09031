//go:build unix

package proxy

import (
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// readiness waits for a listening descriptor to have a pending
// connection using poll(2). Only the listener is ever registered; client
// sockets are served with blocking I/O on worker goroutines.
type readiness struct {
	rc syscall.RawConn
}

// newReadiness returns nil when ln does not expose its descriptor, in
// which case the accept loop falls back to a plain blocking Accept.
func newReadiness(ln net.Listener) *readiness {
	sc, ok := ln.(syscall.Conn)
	if !ok {
		return nil
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil
	}
	return &readiness{rc: rc}
}

// wait blocks for at most timeout. It reports true when the descriptor is
// readable (or in an error state that Accept will surface).
func (r *readiness) wait(timeout time.Duration) (bool, error) {
	var (
		ready   bool
		pollErr error
	)
	ms := int(timeout / time.Millisecond)
	if ms <= 0 {
		ms = 1
	}
	err := r.rc.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		for {
			n, err := unix.Poll(fds, ms)
			if err == unix.EINTR {
				continue
			}
			if err != nil {
				pollErr = err
				return
			}
			ready = n > 0 && fds[0].Revents != 0
			return
		}
	})
	if err != nil {
		return false, err
	}
	return ready, pollErr
}
