package ftpd

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// passiveTransporter is the server-listens variant of the Data Channel
// Coordinator (spec.md §4.4 "PASV"): it leases a port from the session's
// PortPool, opens a listener on it (with the system's default backlog, not a
// backlog of 1), accepts only the first incoming connection, and resolves its
// connected signal on that connection.
type passiveTransporter struct {
	pool       *PortPool
	port       int
	listener   *net.TCPListener
	conn       net.Conn
	timeout    time.Duration
	signal     *connectedSignal
	acceptOnce chan struct{}
}

// newPassiveTransporter leases a port and starts listening on it. The caller
// is responsible for writing the 227 reply and for eventually calling Close
// (which returns the leased port exactly once).
func newPassiveTransporter(pool *PortPool, connectTimeout time.Duration) (*passiveTransporter, error) {
	port, err := pool.Lease()
	if err != nil {
		return nil, err
	}

	addr, errResolve := net.ResolveTCPAddr("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if errResolve != nil {
		pool.Return(port)

		return nil, newNetworkError("could not resolve passive port", errResolve)
	}

	listener, errListen := net.ListenTCP("tcp", addr)
	if errListen != nil {
		pool.Return(port)

		return nil, newNetworkError("could not listen on passive port", errListen)
	}

	p := &passiveTransporter{
		pool:       pool,
		port:       port,
		listener:   listener,
		timeout:    connectTimeout,
		signal:     newConnectedSignal(),
		acceptOnce: make(chan struct{}),
	}

	go p.acceptLoop()

	return p, nil
}

func (p *passiveTransporter) acceptLoop() {
	defer close(p.acceptOnce)

	if err := p.listener.SetDeadline(time.Now().Add(p.timeout)); err != nil {
		return
	}

	conn, err := p.listener.Accept()
	if err != nil {
		return
	}

	p.conn = conn
	p.signal.Resolve()
}

func (p *passiveTransporter) connected() bool {
	return p.signal.IsResolved()
}

// Open waits for the accept to complete or for the listener's connect-timeout
// deadline to pass, then returns the established connection (or an error if
// none arrived).
func (p *passiveTransporter) Open() (net.Conn, error) {
	<-p.acceptOnce

	if p.conn == nil {
		return nil, newNetworkError("passive connection never established", nil)
	}

	return p.conn, nil
}

// Close stops listening and returns the leased port exactly once.
func (p *passiveTransporter) Close() error {
	var err error
	if p.listener != nil {
		err = p.listener.Close()
	}

	if p.conn != nil {
		_ = p.conn.Close() //nolint:errcheck
	}

	p.pool.Return(p.port)

	return err
}

// pasvReply builds the "227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)" text,
// using the control connection's local address per spec.md §4.4 (not the
// configured bind address, so NAT-less clients can reach us) unless a static
// PublicHost or PublicIPResolver overrides it.
func pasvReply(cc ClientContext, settings *Settings, port int) (string, error) {
	ip := settings.PublicHost

	if ip == "" {
		if settings.PublicIPResolver != nil {
			var err error

			ip, err = settings.PublicIPResolver(cc)
			if err != nil {
				return "", fmt.Errorf("couldn't fetch public IP: %w", err)
			}
		} else {
			ip = strings.Split(cc.LocalAddr().String(), ":")[0]
		}
	}

	quads := strings.Split(ip, ".")
	if len(quads) != 4 {
		return "", fmt.Errorf("public host %q is not an IPv4 address", ip)
	}

	p1 := port / 256
	p2 := port - p1*256

	return fmt.Sprintf("Entering Passive Mode (%s,%s,%s,%s,%d,%d)", quads[0], quads[1], quads[2], quads[3], p1, p2), nil
}
