package ftpd

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// connectionGauges exposes the Connection Accountant's counters for scraping,
// grounded in marmos91-dittofs' use of prometheus/client_golang for runtime
// gauges. Registration happens once, at package init, and is best-effort: if
// a collector with the same name is already registered, the error is ignored
// and this package's gauge is left unregistered instead of panicking.
var ( //nolint:gochecknoglobals
	connGaugeTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "goftpd_connections_total",
		Help: "Current number of accepted control connections.",
	})
	connGaugePerIPMax = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "goftpd_connections_per_ip_max",
		Help: "Highest current per-IP connection count.",
	})
)

func init() { //nolint:gochecknoinits
	for _, c := range []prometheus.Collector{connGaugeTotal, connGaugePerIPMax} {
		if err := prometheus.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

// accountant is the Connection Accountant of spec.md §4.1/§5: it tracks the
// global connection count and a per-remote-IP count under a single mutex, per
// DESIGN NOTES "Global mutable counters" — its mutator methods are the only
// code path allowed to touch the counters.
type accountant struct {
	mu        sync.Mutex
	global    int
	perIP     map[string]int
}

func newAccountant() *accountant {
	return &accountant{perIP: make(map[string]int)}
}

// admit increments both counters and returns the new global count and the
// new per-IP count (used as the session's connection_id), as in spec.md's
// "the incremented per-IP value as connection_id".
func (a *accountant) admit(ip string) (global, perIP int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.global++
	a.perIP[ip]++

	connGaugeTotal.Set(float64(a.global))

	max := 0
	for _, n := range a.perIP {
		if n > max {
			max = n
		}
	}

	connGaugePerIPMax.Set(float64(max))

	return a.global, a.perIP[ip]
}

// release decrements both counters exactly once; safe to call at most once
// per admitted session (spec.md invariant: "decremented exactly once per
// session close").
func (a *accountant) release(ip string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.global > 0 {
		a.global--
	}

	if n := a.perIP[ip]; n > 0 {
		if n == 1 {
			delete(a.perIP, ip)
		} else {
			a.perIP[ip] = n - 1
		}
	}

	connGaugeTotal.Set(float64(a.global))

	max := 0
	for _, n := range a.perIP {
		if n > max {
			max = n
		}
	}

	connGaugePerIPMax.Set(float64(max))
}
