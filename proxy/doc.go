// Package proxy implements a small forwarding HTTP/1.0 proxy.
//
// An accept loop waits for readiness on the listening socket, accepts a
// connection and offers it to a bounded TaskQueue. A fixed Pool of
// workers drains the queue; each worker reads the request line, rejects
// anything but GET, discards the client headers, and relays the request
// to the origin named by the target (or to a default backend for bare
// paths). The origin response is copied back line by line, unmodified.
//
// Overload is handled by dropping: when the queue is full a freshly
// accepted connection is closed without a response.
//
// Quick start:
//
//	s := &proxy.Server{Addr: ":15213", Workers: 10}
//	if err := s.ListenAndServe(); err != nil { log.Fatal(err) }
package proxy
