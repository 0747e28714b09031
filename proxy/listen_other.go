//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package proxy

import "net"

func (s *Server) listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
