package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"dqx0.com/go/proxylab/internal/obs"
	"dqx0.com/go/proxylab/proxy/internal/http1"
)

// Relay forwards one GET request to its origin and copies the response
// back line by line.
type Relay struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration // per upstream line; zero means none
	MaxLineBytes int
	// Dial overrides net.Dialer, mainly for tests.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)

	Logger obs.Logger
	Meter  obs.Meter
}

// IsGET reports whether method is GET, ignoring case.
func IsGET(method string) bool {
	return strings.EqualFold(method, "GET")
}

// Relay serves one request for client and returns the number of response
// bytes written. Rejections (501, 400, 502) are written to client and
// returned as errors matching ErrNotImplemented, ErrBadRequest or
// ErrBadGateway. Any other error means the client saw a partial or no
// response. Relay closes the upstream connection but never client.
func (r *Relay) Relay(ctx context.Context, client io.Writer, method string, origin OriginTarget) (int64, error) {
	if !IsGET(method) {
		return 0, r.reject(client, notImplemented(method))
	}
	if origin.Host == "" {
		return 0, r.reject(client, badRequest(origin.Path, "Proxy could not parse the request URI"))
	}

	start := time.Now()
	r.logf(ctx, obs.Debug, "connecting to %s for %s", origin.Addr(), origin.Path)
	upstream, err := r.dial(ctx, origin.Addr())
	if err != nil {
		r.metricCounter("proxy_upstream_error_total", 1, obs.Label{Key: "stage", Value: "dial"})
		r.logf(ctx, obs.Warn, "dial %s: %v", origin.Addr(), err)
		return 0, r.reject(client, badGateway(origin.Host, "Proxy could not connect to the origin server"))
	}
	defer upstream.Close()

	if err := http1.WriteForward(upstream, "GET", origin.Path, origin.Host); err != nil {
		r.metricCounter("proxy_upstream_error_total", 1, obs.Label{Key: "stage", Value: "write"})
		return 0, r.reject(client, badGateway(origin.Host, "Proxy could not send the request to the origin server"))
	}

	n, err := r.copyResponse(client, upstream)
	r.metricHistogram("proxy_relay_duration_ms", float64(time.Since(start).Milliseconds()))
	if err != nil {
		if n == 0 && errors.Is(err, errUpstreamRead) {
			return 0, r.reject(client, badGateway(origin.Host, "Proxy received an invalid response from the origin server"))
		}
		return n, err
	}
	r.logf(ctx, obs.Debug, "relayed %d bytes from %s", n, origin.Addr())
	return n, nil
}

var (
	errUpstreamRead = errors.New("proxy: upstream read failed")
	errClientWrite  = errors.New("proxy: client write failed")
)

// copyResponse writes each upstream line to client unmodified until the
// upstream reaches EOF.
func (r *Relay) copyResponse(client io.Writer, upstream net.Conn) (int64, error) {
	br := http1.NewReader(upstream, r.MaxLineBytes)
	var n int64
	for {
		if r.ReadTimeout > 0 {
			_ = upstream.SetReadDeadline(time.Now().Add(r.ReadTimeout))
		}
		line, err := br.ReadRawLine()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			r.metricCounter("proxy_upstream_error_total", 1, obs.Label{Key: "stage", Value: "read"})
			return n, fmt.Errorf("%w: %w", errUpstreamRead, err)
		}
		w, err := client.Write(line)
		n += int64(w)
		if err != nil {
			return n, fmt.Errorf("%w: %w", errClientWrite, err)
		}
	}
}

func (r *Relay) reject(client io.Writer, se *statusError) error {
	if err := http1.WriteError(client, se.cause, se.status, se.short, se.long); err != nil {
		return fmt.Errorf("%w: %w", se, err)
	}
	return se
}

func (r *Relay) dial(ctx context.Context, addr string) (net.Conn, error) {
	if r.Dial != nil {
		return r.Dial(ctx, "tcp", addr)
	}
	d := net.Dialer{Timeout: r.DialTimeout}
	return d.DialContext(ctx, "tcp", addr)
}

func (r *Relay) logf(ctx context.Context, level obs.Level, format string, args ...interface{}) {
	lg := r.Logger
	if lg == nil {
		return
	}
	if id, ok := TaskIDFrom(ctx); ok {
		lg = obs.Tagged(lg, "task="+id)
	}
	lg.Logf(level, format, args...)
}

func (r *Relay) metricCounter(name string, value float64, labels ...obs.Label) {
	r.getMeter().Counter(name, value, labels...)
}

func (r *Relay) metricHistogram(name string, value float64, labels ...obs.Label) {
	r.getMeter().Histogram(name, value, labels...)
}

func (r *Relay) getMeter() obs.Meter {
	if r.Meter != nil {
		return r.Meter
	}
	return obs.NopMeter{}
}
