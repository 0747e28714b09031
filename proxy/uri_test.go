package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTarget(t *testing.T) {
	def := Backend{Host: "backend.test", Port: "8000"}
	tests := []struct {
		target string
		want   OriginTarget
	}{
		{"http://example.test:9000/foo", OriginTarget{"example.test", "9000", "/foo"}},
		{"http://example.test/foo/bar?x=1", OriginTarget{"example.test", "80", "/foo/bar?x=1"}},
		{"http://example.test:9000", OriginTarget{"example.test", "9000", "/"}},
		{"http://example.test", OriginTarget{"example.test", "80", "/"}},
		{"http://example.test:/x", OriginTarget{"example.test", "80", "/x"}},
		{"http://[::1]:8080/v6", OriginTarget{"::1", "8080", "/v6"}},
		{"http://[::1]/v6", OriginTarget{"::1", "80", "/v6"}},
		{"http:///nohost", OriginTarget{"", "80", "/nohost"}},
		{"http://", OriginTarget{"", "80", "/"}},
		{"/index.html", OriginTarget{"backend.test", "8000", "/index.html"}},
		{"index.html", OriginTarget{"backend.test", "8000", "/index.html"}},
		{"", OriginTarget{"backend.test", "8000", "/"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTarget(tt.target, def), "target %q", tt.target)
	}
}

func TestOriginTargetAddr(t *testing.T) {
	assert.Equal(t, "example.test:80", OriginTarget{Host: "example.test", Port: "80"}.Addr())
	assert.Equal(t, "[::1]:8080", OriginTarget{Host: "::1", Port: "8080"}.Addr())
}
