package jsonserver

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func udpAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

func TestRegistryTouch(t *testing.T) {
	t.Parallel()

	t.Run("touch is idempotent for membership", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry(time.Minute)
		r.Touch(udpAddr(1001))
		r.Touch(udpAddr(1001))
		r.Touch(udpAddr(1001))
		assert.Equal(t, 1, r.Len())
	})

	t.Run("distinct ports are distinct clients", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry(time.Minute)
		r.Touch(udpAddr(1001))
		r.Touch(udpAddr(1002))
		assert.Equal(t, 2, r.Len())
	})

	t.Run("touch refreshes the TTL", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry(100 * time.Millisecond)
		r.Touch(udpAddr(1001))

		// Keep touching past the original deadline; the entry must survive.
		for i := 0; i < 3; i++ {
			time.Sleep(60 * time.Millisecond)
			r.Touch(udpAddr(1001))
		}
		r.Sweep()
		assert.Equal(t, 1, r.Len())
	})
}

func TestRegistrySweep(t *testing.T) {
	t.Parallel()

	r := NewRegistry(50 * time.Millisecond)
	r.Touch(udpAddr(1001))
	r.Touch(udpAddr(1002))
	require.Equal(t, 2, r.Len())

	time.Sleep(80 * time.Millisecond)
	r.Touch(udpAddr(1003)) // fresh client arrives after the others idled out
	r.Sweep()

	addrs := r.Snapshot()
	require.Len(t, addrs, 1)
	assert.Equal(t, "127.0.0.1:1003", addrs[0].String())
}

func TestRegistrySnapshotExcludesExpired(t *testing.T) {
	t.Parallel()

	r := NewRegistry(50 * time.Millisecond)
	r.Touch(udpAddr(1001))
	time.Sleep(80 * time.Millisecond)

	// Even without a sweep, an expired client no longer appears.
	assert.Empty(t, r.Snapshot())
}

func TestRegistryDefaultTimeout(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0)
	r.Touch(udpAddr(1001))
	r.Sweep()
	assert.Equal(t, 1, r.Len())
}
