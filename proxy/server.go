package proxy

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"dqx0.com/go/proxylab/internal/obs"
	"dqx0.com/go/proxylab/proxy/internal/http1"
)

// Server accepts client connections and hands them to a fixed pool of
// workers through a bounded queue. When the queue is full a new
// connection is closed without a response.
type Server struct {
	Addr          string
	Workers       int // default 10
	// QueueCapacity bounds connections waiting for a free worker; default
	// Workers, minimum 1. Workers hold their task outside the queue, so
	// drops begin only once Workers+QueueCapacity connections are in flight.
	QueueCapacity int
	Backend       Backend
	MaxLineBytes  int
	DialTimeout   time.Duration
	// ReadTimeout bounds reading the client request line and headers.
	ReadTimeout time.Duration
	// UpstreamReadTimeout bounds each line read from the origin.
	UpstreamReadTimeout time.Duration
	// PollInterval is how long one readiness wait may block before the
	// accept loop re-checks for shutdown.
	PollInterval time.Duration
	ReusePort    bool
	Backlog      int
	// Dial, if set, replaces the default dialer for origin connections.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)

	Logger obs.Logger
	Meter  obs.Meter

	initOnce   sync.Once
	queue      *TaskQueue
	pool       *Pool
	relay      *Relay
	mu         sync.Mutex
	listeners  map[net.Listener]struct{}
	inShutdown atomic.Bool
}

// MaxCacheBytes and MaxObjectBytes size a response cache the proxy does
// not implement; they are exported for configuration only.
const (
	MaxCacheBytes  = 1049000
	MaxObjectBytes = 102400
)

const defaultWorkers = 10

func (s *Server) init() {
	s.initOnce.Do(func() {
		n := s.Workers
		if n <= 0 {
			n = defaultWorkers
		}
		capacity := s.QueueCapacity
		if capacity <= 0 {
			capacity = n
		}
		s.queue = NewTaskQueue(capacity)
		s.relay = &Relay{
			DialTimeout:  s.DialTimeout,
			ReadTimeout:  s.UpstreamReadTimeout,
			MaxLineBytes: s.maxLine(),
			Dial:         s.Dial,
			Logger:       s.Logger,
			Meter:        s.Meter,
		}
		s.pool = NewPool(s.queue, n, s.serveTask)
		s.pool.Logger = s.Logger
		s.pool.Meter = s.Meter
		s.listeners = make(map[net.Listener]struct{})
	})
}

// ListenAndServe builds a listener on s.Addr (default ":8080") with
// tcplisten and calls Serve.
func (s *Server) ListenAndServe() error {
	if s.inShutdown.Load() {
		return ErrServerClosed
	}
	addr := s.Addr
	if addr == "" {
		addr = ":8080"
	}
	ln, err := s.listen(addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve runs the accept loop on ln until Shutdown, starting the worker
// pool on first use. It always returns a non-nil error; after Shutdown
// that error is ErrServerClosed.
func (s *Server) Serve(ln net.Listener) error {
	s.init()
	if !s.trackListener(ln, true) {
		_ = ln.Close()
		return ErrServerClosed
	}
	defer s.trackListener(ln, false)
	defer ln.Close()

	s.pool.Start()
	s.logf(obs.Info, "proxy listening on %s, %s", ln.Addr(), s.pool)

	ready := newReadiness(ln)
	var tempDelay time.Duration
	for {
		if ready != nil {
			ok, err := ready.wait(s.pollInterval())
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		c, err := ln.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > time.Second {
				tempDelay = time.Second
			}
			s.logf(obs.Warn, "accept error: %v; retrying in %v", err, tempDelay)
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0
		s.admit(c)
	}
}

// admit queues c or, when the queue is full, closes it without writing.
func (s *Server) admit(c net.Conn) {
	t := Task{ID: genTaskID(), Conn: c, RemoteAddr: c.RemoteAddr(), Accepted: time.Now()}
	if !s.queue.TryEnqueue(t) {
		s.getMeter().Counter("proxy_dropped_total", 1)
		s.logf(obs.Warn, "task queue full, dropped connection from %s", t.RemoteAddr)
		_ = c.Close()
		return
	}
	s.getMeter().Counter("proxy_accepted_total", 1)
	s.getMeter().Gauge("proxy_queue_depth", float64(s.queue.Len()))
	s.logf(obs.Debug, "task=%s queued connection from %s", t.ID, t.RemoteAddr)
}

// ServeSerial accepts and serves connections one at a time on the
// calling goroutine, without the queue or the pool.
func (s *Server) ServeSerial(ln net.Listener) error {
	s.init()
	if !s.trackListener(ln, true) {
		_ = ln.Close()
		return ErrServerClosed
	}
	defer s.trackListener(ln, false)
	defer ln.Close()

	s.logf(obs.Info, "proxy listening on %s (serial)", ln.Addr())
	for {
		c, err := ln.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			return err
		}
		t := Task{ID: genTaskID(), Conn: c, RemoteAddr: c.RemoteAddr(), Accepted: time.Now()}
		s.pool.run(0, t)
	}
}

// Shutdown stops accepting, closes the listeners and waits for the
// workers to drain the queue. Connections already queued are still
// served. A task stuck on a slow origin delays Shutdown until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.init()
	s.inShutdown.Store(true)
	s.mu.Lock()
	for ln := range s.listeners {
		_ = ln.Close()
	}
	s.mu.Unlock()
	return s.pool.Stop(ctx)
}

// QueueLen reports how many accepted connections are waiting for a worker.
func (s *Server) QueueLen() int {
	s.init()
	return s.queue.Len()
}

// Busy reports how many workers are serving a task.
func (s *Server) Busy() int {
	s.init()
	return s.pool.Busy()
}

func (s *Server) trackListener(ln net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.inShutdown.Load() {
			return false
		}
		s.listeners[ln] = struct{}{}
		return true
	}
	delete(s.listeners, ln)
	return true
}

func (s *Server) serveTask(ctx context.Context, t Task) {
	lg := obs.Tagged(s.Logger, "task="+t.ID)
	if s.ReadTimeout > 0 {
		_ = t.Conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
	}
	br := http1.NewReader(t.Conn, s.maxLine())
	rl, err := br.ReadRequestLine()
	if err != nil {
		if isProtocolError(err) {
			s.finish(lg, 0, s.relay.reject(t.Conn, badRequest("request line", "Proxy could not parse the request")))
			return
		}
		lg.Logf(obs.Debug, "abandoned %s: read request line: %v", t.RemoteAddr, err)
		s.finish(lg, 0, err)
		return
	}
	lg.Logf(obs.Info, "%s %s %s from %s", rl.Method, rl.Target, rl.Proto, t.RemoteAddr)
	if !IsGET(rl.Method) {
		n, err := s.relay.Relay(ctx, t.Conn, rl.Method, OriginTarget{})
		s.finish(lg, n, err)
		return
	}

	hdrs, err := br.DiscardHeaders()
	if err != nil {
		if isProtocolError(err) {
			s.finish(lg, 0, s.relay.reject(t.Conn, badRequest("request header", "Proxy could not parse the request")))
			return
		}
		lg.Logf(obs.Debug, "abandoned %s: read headers: %v", t.RemoteAddr, err)
		s.finish(lg, 0, err)
		return
	}
	for _, h := range hdrs {
		lg.Logf(obs.Debug, "  %s", h)
	}
	if s.ReadTimeout > 0 {
		_ = t.Conn.SetReadDeadline(time.Time{})
	}

	origin := ParseTarget(rl.Target, s.backend())
	n, err := s.relay.Relay(ctx, t.Conn, rl.Method, origin)
	s.finish(lg, n, err)
}

func (s *Server) finish(lg obs.Logger, n int64, err error) {
	status := "relayed"
	var se *statusError
	switch {
	case err == nil:
		lg.Logf(obs.Debug, "done, %d bytes", n)
	case errors.As(err, &se):
		status = http1.DefaultReason(se.status)
		lg.Logf(obs.Info, "rejected with %d: %v", se.status, err)
	default:
		status = "aborted"
		lg.Logf(obs.Debug, "aborted after %d bytes: %v", n, err)
	}
	s.getMeter().Counter("proxy_requests_total", 1, obs.Label{Key: "status", Value: status})
}

func isProtocolError(err error) bool {
	return errors.Is(err, http1.ErrLineTooLong) || errors.Is(err, http1.ErrMalformedRequestLine)
}

func (s *Server) maxLine() int {
	if s.MaxLineBytes <= 0 {
		return http1.DefaultMaxLineBytes
	}
	return s.MaxLineBytes
}

func (s *Server) backend() Backend {
	if s.Backend.Host == "" {
		return DefaultBackend
	}
	b := s.Backend
	if b.Port == "" {
		b.Port = defaultPort
	}
	return b
}

func (s *Server) pollInterval() time.Duration {
	if s.PollInterval <= 0 {
		return 100 * time.Millisecond
	}
	return s.PollInterval
}

func (s *Server) logf(level obs.Level, format string, args ...interface{}) {
	lg := s.Logger
	if lg == nil {
		lg = obs.NopLogger{}
	}
	lg.Logf(level, format, args...)
}

func (s *Server) getMeter() obs.Meter {
	if s.Meter != nil {
		return s.Meter
	}
	return obs.NopMeter{}
}
