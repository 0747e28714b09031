//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package proxy

import (
	"net"

	"github.com/valyala/tcplisten"
)

func (s *Server) listen(addr string) (net.Listener, error) {
	cfg := tcplisten.Config{
		ReusePort: s.ReusePort,
		Backlog:   s.Backlog,
	}
	return cfg.NewListener("tcp4", addr)
}
