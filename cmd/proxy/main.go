package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dqx0.com/go/proxylab/internal/obs"
	"dqx0.com/go/proxylab/proxy"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <port>\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	var (
		workers     = flag.Int("workers", 10, "number of worker goroutines")
		queueCap    = flag.Int("queue", 0, "pending connection queue capacity (default: workers)")
		backend     = flag.String("backend", "localhost:8000", "origin for requests whose target is a bare path")
		maxLine     = flag.Int("max-line", 8192, "maximum request or response line length in bytes")
		dialTimeout = flag.Duration("dial-timeout", 10*time.Second, "origin connect timeout")
		metricsAddr = flag.String("metrics", "", "serve Prometheus metrics on this address, e.g. :9100")
		reusePort   = flag.Bool("reuseport", false, "enable SO_REUSEPORT on the listening socket")
		serial      = flag.Bool("serial", false, "serve one connection at a time without the worker pool")
		logLevel    = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}

	lv, err := obs.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := obs.StdLogger{L: log.New(os.Stderr, "", log.LstdFlags), Min: lv, Pref: "proxy "}

	host, port, err := net.SplitHostPort(*backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -backend %q: %v\n", *backend, err)
		os.Exit(1)
	}

	var meter obs.Meter = obs.NopMeter{}
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		meter = obs.NewPromMeter(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Logf(obs.Error, "metrics server: %v", err)
			}
		}()
	}

	s := &proxy.Server{
		Addr:          ":" + flag.Arg(0),
		Workers:       *workers,
		QueueCapacity: *queueCap,
		Backend:       proxy.Backend{Host: host, Port: port},
		MaxLineBytes:  *maxLine,
		DialTimeout:   *dialTimeout,
		ReusePort:     *reusePort,
		Logger:        logger,
		Meter:         meter,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		logger.Logf(obs.Info, "shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			logger.Logf(obs.Warn, "shutdown: %v", err)
		}
	}()

	if *serial {
		err = serveSerial(s)
	} else {
		err = s.ListenAndServe()
	}
	if !errors.Is(err, proxy.ErrServerClosed) {
		log.Fatal(err)
	}
	<-drained
}

func serveSerial(s *proxy.Server) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.ServeSerial(ln)
}
