package ftpd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPortPoolLeaseReturn(t *testing.T) {
	pp := NewPortPool(9000, 9002)
	require.Equal(t, 2, pp.Len())

	p1, err := pp.Lease()
	require.NoError(t, err)
	require.Equal(t, 1, pp.Len())

	p2, err := pp.Lease()
	require.NoError(t, err)
	require.Equal(t, 0, pp.Len())

	require.NotEqual(t, p1, p2)
	require.Contains(t, []int{9000, 9001}, p1)
	require.Contains(t, []int{9000, 9001}, p2)

	pp.Return(p1)
	require.Equal(t, 1, pp.Len())

	pp.Return(p2)
	require.Equal(t, 2, pp.Len())
}

func TestPortPoolExhausted(t *testing.T) {
	pp := NewPortPool(9100, 9101)

	_, err := pp.Lease()
	require.NoError(t, err)

	start := time.Now()
	_, err = pp.Lease()
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrNoPortAvailable)
	require.GreaterOrEqual(t, elapsed, time.Second)
}

func TestPortPoolReturnNeverBlocksWhenFull(t *testing.T) {
	pp := NewPortPool(9200, 9201)
	require.Equal(t, 1, pp.Len())

	done := make(chan struct{})

	go func() {
		pp.Return(9200)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Return blocked on an already-full pool")
	}

	require.Equal(t, 1, pp.Len())
}
