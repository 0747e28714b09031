package http1

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strings"
)

// UserAgent is sent upstream on every forwarded request.
const UserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:10.0.3) Gecko/20120305 Firefox/10.0.3"

// WriteForward writes the rewritten HTTP/1.0 request sent to an origin.
// Client headers are never copied; only Host, User-Agent and
// Proxy-Connection are emitted.
func WriteForward(w io.Writer, method, path, host string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s %s HTTP/1.0\r\n", method, sanitizeHeaderValue(path))
	fmt.Fprintf(bw, "Host: %s\r\n", sanitizeHeaderValue(host))
	fmt.Fprintf(bw, "User-Agent: %s\r\n", UserAgent)
	fmt.Fprint(bw, "Proxy-Connection: close\r\n")
	fmt.Fprint(bw, "\r\n")
	return bw.Flush()
}

// WriteError writes a minimal HTTP/1.0 error response with an HTML body
// naming the status, both reasons and the cause. It does not close w.
func WriteError(w io.Writer, cause string, status int, short, long string) error {
	if short == "" {
		short = DefaultReason(status)
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "HTTP/1.0 %d %s\r\n", status, sanitizeHeaderValue(short))
	fmt.Fprint(bw, "Content-type: text/html\r\n\r\n")
	fmt.Fprint(bw, "<html><title>Proxy Error</title>")
	fmt.Fprint(bw, "<body bgcolor=\"ffffff\">\r\n")
	fmt.Fprintf(bw, "%d: %s\r\n", status, html.EscapeString(short))
	fmt.Fprintf(bw, "<p>%s: %s\r\n", html.EscapeString(long), html.EscapeString(cause))
	fmt.Fprint(bw, "<hr><em>proxylab</em>\r\n")
	fmt.Fprint(bw, "</body></html>\r\n")
	return bw.Flush()
}

func DefaultReason(code int) string {
	switch code {
	case 200:
		return "OK"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 502:
		return "Bad Gateway"
	case 503:
		return "Service Unavailable"
	case 504:
		return "Gateway Timeout"
	default:
		return "Error"
	}
}

// sanitizeHeaderValue removes CR/LF and control chars except HTAB.
func sanitizeHeaderValue(v string) string {
	if v == "" {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == '\r' || c == '\n' || c == 0x7f {
			continue
		}
		if c < 0x20 && c != '\t' {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
