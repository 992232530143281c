package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_RateLimitPerIP(t *testing.T) {
	r := NewRegistry(100, 2, nil, testLogger())

	assert.True(t, r.checkRateLimit("1.2.3.4"))
	assert.True(t, r.checkRateLimit("1.2.3.4"))
	assert.False(t, r.checkRateLimit("1.2.3.4"))

	// a different IP is unaffected
	assert.True(t, r.checkRateLimit("5.6.7.8"))
}

func TestIPFromAddr(t *testing.T) {
	addr := &stubAddr{s: "10.0.0.1:5555"}
	assert.Equal(t, "10.0.0.1", ipFromAddr(addr))
}

type stubAddr struct{ s string }

func (a *stubAddr) Network() string { return "tcp" }
func (a *stubAddr) String() string  { return a.s }
