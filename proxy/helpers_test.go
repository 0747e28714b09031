package proxy

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubOrigin is a TCP server that records the forwarded request and
// answers with a fixed response.
type stubOrigin struct {
	ln       net.Listener
	accepted chan struct{}
	mu       sync.Mutex
	requests []string
}

func startOrigin(t *testing.T, response string, hold <-chan struct{}) *stubOrigin {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	o := &stubOrigin{ln: ln, accepted: make(chan struct{}, 16)}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go o.serve(c, response, hold)
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return o
}

func (o *stubOrigin) serve(c net.Conn, response string, hold <-chan struct{}) {
	defer c.Close()
	br := bufio.NewReader(c)
	var sb strings.Builder
	for {
		line, err := br.ReadString('\n')
		sb.WriteString(line)
		if err != nil || line == "\r\n" {
			break
		}
	}
	o.mu.Lock()
	o.requests = append(o.requests, sb.String())
	o.mu.Unlock()
	o.accepted <- struct{}{}
	if hold != nil {
		<-hold
	}
	_, _ = c.Write([]byte(response))
}

func (o *stubOrigin) addr() string { return o.ln.Addr().String() }

func (o *stubOrigin) lastRequest() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.requests) == 0 {
		return ""
	}
	return o.requests[len(o.requests)-1]
}

// dialTo sends every origin connection to addr, recording what the
// proxy asked for.
func dialTo(addr string, asked *[]string, mu *sync.Mutex) func(ctx context.Context, network, a string) (net.Conn, error) {
	return func(ctx context.Context, network, a string) (net.Conn, error) {
		if asked != nil {
			mu.Lock()
			*asked = append(*asked, a)
			mu.Unlock()
		}
		var d net.Dialer
		return d.DialContext(ctx, network, addr)
	}
}

func startProxy(t *testing.T, cfg func(*Server)) (*Server, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &Server{PollInterval: 10 * time.Millisecond}
	if cfg != nil {
		cfg(s)
	}
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		select {
		case err := <-errc:
			require.ErrorIs(t, err, ErrServerClosed)
		case <-ctx.Done():
			t.Error("Serve did not return after Shutdown")
		}
	})
	return s, ln.Addr().String()
}

// roundTrip writes raw to the proxy and returns everything it sends back
// before closing the connection.
func roundTrip(t *testing.T, proxyAddr, raw string) string {
	t.Helper()
	c, err := net.Dial("tcp", proxyAddr)
	require.NoError(t, err)
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(5 * time.Second))
	_, err = c.Write([]byte(raw))
	require.NoError(t, err)
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := c.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return sb.String()
}
