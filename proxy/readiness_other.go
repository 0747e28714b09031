//go:build !unix

package proxy

import (
	"net"
	"time"
)

type readiness struct{}

func newReadiness(ln net.Listener) *readiness { return nil }

func (r *readiness) wait(timeout time.Duration) (bool, error) { return true, nil }
