package proxy

import (
	"net"
	"strings"
)

// OriginTarget is the parsed destination of a proxied request.
type OriginTarget struct {
	Host string
	Port string
	Path string
}

// Addr returns host:port suitable for dialing.
func (o OriginTarget) Addr() string {
	return net.JoinHostPort(o.Host, o.Port)
}

// Backend is the origin used for requests whose target is a bare path.
type Backend struct {
	Host string
	Port string
}

// DefaultBackend matches the test server the proxy is usually paired with.
var DefaultBackend = Backend{Host: "localhost", Port: "8000"}

const (
	defaultPort = "80"
	defaultPath = "/"
)

// ParseTarget splits a request target into host, port and path.
//
// An absolute target ("scheme://host[:port][/path]") names its own
// origin. Anything else is a path on def, normalized to begin with "/".
// ParseTarget never fails; a target without a host yields an empty Host,
// which callers must treat as a bad request.
func ParseTarget(target string, def Backend) OriginTarget {
	i := strings.Index(target, "://")
	if i < 0 {
		path := target
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return OriginTarget{Host: def.Host, Port: def.Port, Path: path}
	}

	rest := target[i+3:]
	out := OriginTarget{Port: defaultPort, Path: defaultPath}
	authority := rest
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		authority = rest[:j]
		out.Path = rest[j:]
	}
	if strings.HasPrefix(authority, "[") {
		// IPv6 literal, e.g. [::1]:8080
		end := strings.IndexByte(authority, ']')
		if end < 0 {
			return out
		}
		out.Host = authority[1:end]
		if p := strings.TrimPrefix(authority[end+1:], ":"); p != "" {
			out.Port = p
		}
		return out
	}
	if k := strings.IndexByte(authority, ':'); k >= 0 {
		out.Host = authority[:k]
		if p := authority[k+1:]; p != "" {
			out.Port = p
		}
	} else {
		out.Host = authority
	}
	return out
}
