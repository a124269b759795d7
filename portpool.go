package ftpd

import (
	"errors"
	"time"
)

// ErrNoPortAvailable is returned when no port can be leased within the
// 1-second bound spec.md §3 mandates for PortPool.Lease.
var ErrNoPortAvailable = errors.New("no passive port available")

// PortPool is the bounded FIFO of passive-mode port numbers of spec.md §3/§5:
// Lease blocks up to 1 second, Return never blocks and is idempotent-safe
// (returning a port twice is a caller bug, not a panic, mirroring the source's
// "asyncio.Queue"-backed ports queue but sized and typed explicitly).
type PortPool struct {
	ports chan int
}

// NewPortPool creates a pool pre-loaded with every port in [start, end).
func NewPortPool(start, end int) *PortPool {
	ports := make(chan int, end-start)
	for p := start; p < end; p++ {
		ports <- p
	}

	return &PortPool{ports: ports}
}

// Lease blocks up to 1 second for a free port, returning ErrNoPortAvailable
// on timeout (spec.md §4.4: "If no lease is available within 1 s, reply 500").
func (pp *PortPool) Lease() (int, error) {
	select {
	case port := <-pp.ports:
		return port, nil
	case <-time.After(time.Second):
		return 0, ErrNoPortAvailable
	}
}

// Return gives a port back to the pool. It never blocks: the channel is
// sized to hold every port the pool was created with, so a well-behaved
// caller (one Return per successful Lease) can never overflow it.
func (pp *PortPool) Return(port int) {
	select {
	case pp.ports <- port:
	default:
		// Pool is already full: a double-return bug upstream. Drop silently
		// rather than block or panic — the invariant ("returned exactly
		// once") is the caller's responsibility, not enforced here.
	}
}

// Len reports the number of ports currently available, for tests asserting
// the "pool size is restored" property (spec.md §8 property 2).
func (pp *PortPool) Len() int {
	return len(pp.ports)
}
