package proxy

import (
	"crypto/rand"
	"encoding/hex"
	"sync/atomic"
)

var idSeq atomic.Uint64

// genTaskID returns a short random hex id for log correlation, falling
// back to a process-wide sequence number if rand fails.
func genTaskID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	n := idSeq.Add(1)
	for i := range b {
		b[i] = byte(n >> (uint(i) * 8))
	}
	return hex.EncodeToString(b[:])
}
