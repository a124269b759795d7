package ftpd

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// activeTransporter is the client-listens variant of the Data Channel
// Coordinator (spec.md §4.4 "PORT"): the server dials the address the client
// gave in the PORT command.
type activeTransporter struct {
	raddr    *net.TCPAddr
	conn     net.Conn
	timeout  time.Duration
	bindPort20 bool
	signal   *connectedSignal
}

func newActiveTransporter(raddr *net.TCPAddr, timeout time.Duration, bindPort20 bool) *activeTransporter {
	return &activeTransporter{raddr: raddr, timeout: timeout, bindPort20: bindPort20, signal: newConnectedSignal()}
}

// dial performs the connect. Call it from the PORT handler immediately so
// the 5-second timeout of spec.md §4.4 is enforced synchronously and a
// failure can reply 421 right away, instead of deferring to Open.
func (a *activeTransporter) dial() error {
	dialer := &net.Dialer{Timeout: a.timeout}

	if a.bindPort20 {
		dialer.LocalAddr, _ = net.ResolveTCPAddr("tcp", ":20") //nolint:errcheck
		dialer.Control = Control
	}

	conn, err := dialer.Dial("tcp", a.raddr.String())
	if err != nil {
		return newNetworkError("could not establish active connection", err)
	}

	a.conn = conn
	a.signal.Resolve()

	return nil
}

func (a *activeTransporter) connected() bool {
	return a.signal.IsResolved()
}

func (a *activeTransporter) Open() (net.Conn, error) {
	if a.conn == nil {
		return nil, newNetworkError("active connection never established", nil)
	}

	return a.conn, nil
}

func (a *activeTransporter) Close() error {
	if a.conn != nil {
		return a.conn.Close()
	}

	return nil
}

var remoteAddrRegex = regexp.MustCompile(`^([0-9]{1,3},){5}[0-9]{1,3}$`) //nolint:gochecknoglobals

// ErrRemoteAddrFormat is returned when a PORT argument isn't six comma-separated decimal numbers.
var ErrRemoteAddrFormat = errors.New("remote address has a bad format")

// parsePORTAddr parses "h1,h2,h3,h4,p1,p2" into a dialable TCP address:
// host h1.h2.h3.h4, port p1*256+p2.
func parsePORTAddr(param string) (*net.TCPAddr, error) {
	if !remoteAddrRegex.MatchString(param) {
		return nil, fmt.Errorf("could not parse %q: %w", param, ErrRemoteAddrFormat)
	}

	parts := strings.Split(param, ",")
	ip := strings.Join(parts[0:4], ".")

	p1, err := strconv.Atoi(parts[4])
	if err != nil {
		return nil, fmt.Errorf("could not parse %q: %w", param, err)
	}

	p2, err := strconv.Atoi(parts[5])
	if err != nil {
		return nil, fmt.Errorf("could not parse %q: %w", param, err)
	}

	port := p1<<8 + p2

	return net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", ip, port))
}
