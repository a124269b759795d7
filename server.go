package ftpd

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/gera2ld/goftpd/log"
	lognoop "github.com/gera2ld/goftpd/log/noop"
)

// ErrNotListening is returned by Stop when the server never started listening.
var ErrNotListening = errors.New("server isn't listening")

// Server is the Listener of spec.md §4.1: it accepts control connections,
// runs admission control through its accountant, and spawns a Session per
// accepted connection.
type Server struct {
	Logger        log.Logger
	settings      *Settings
	listener      net.Listener
	clientCounter uint32
	driver        MainDriver
	store         ObjectStore
	accountant    *accountant
	portPool      *PortPool
}

// NewServer creates a Server around a MainDriver.
func NewServer(driver MainDriver) *Server {
	return &Server{
		driver:     driver,
		Logger:     lognoop.NewNoOpLogger(),
		accountant: newAccountant(),
	}
}

func (server *Server) loadSettings() error {
	settings, err := server.driver.GetSettings()
	if err != nil || settings == nil {
		return newDriverError("couldn't load settings", err)
	}

	if settings.PublicHost != "" {
		settings.PublicHost, err = parseIPv4(settings.PublicHost)
		if err != nil {
			return err
		}
	}

	if settings.Listener == nil && settings.ListenAddr == "" {
		settings.ListenAddr = "0.0.0.0:21"
	}

	if settings.ControlTimeoutSeconds == 0 {
		settings.ControlTimeoutSeconds = 120
	}

	if settings.DataTimeoutSeconds == 0 {
		settings.DataTimeoutSeconds = 10
	}

	if settings.ConnectTimeoutSeconds == 0 {
		settings.ConnectTimeoutSeconds = 5
	}

	if settings.BufferSize == 0 {
		settings.BufferSize = 4096
	}

	if settings.Banner == "" {
		settings.Banner = "goftpd - a lightweight FTP server"
	}

	if settings.DefaultEncoding == "" {
		settings.DefaultEncoding = "utf-8"
	}

	if settings.PassiveTransferPortRange == nil {
		settings.PassiveTransferPortRange = &PortRange{Start: 8030, End: 8040}
	}

	store, err := server.driver.GetObjectStore()
	if err != nil || store == nil {
		return newDriverError("couldn't load object store", err)
	}

	server.settings = settings
	server.store = store
	server.portPool = NewPortPool(settings.PassiveTransferPortRange.Start, settings.PassiveTransferPortRange.End)

	return nil
}

func parseIPv4(publicHost string) (string, error) {
	parsedIP := net.ParseIP(publicHost)
	if parsedIP == nil {
		return "", &ipValidationError{reason: fmt.Sprintf("invalid passive IP %q", publicHost)}
	}

	parsedIP = parsedIP.To4()
	if parsedIP == nil {
		return "", &ipValidationError{reason: fmt.Sprintf("invalid IPv4 passive IP %q", publicHost)}
	}

	return parsedIP.String(), nil
}

// Listen starts listening; it is not a blocking call.
func (server *Server) Listen() error {
	if err := server.loadSettings(); err != nil {
		return fmt.Errorf("could not load settings: %w", err)
	}

	if server.settings.Listener != nil {
		server.listener = server.settings.Listener
	} else {
		listener, err := net.Listen("tcp", server.settings.ListenAddr)
		if err != nil {
			server.Logger.Error("cannot listen on main port", "err", err, "listenAddr", server.settings.ListenAddr)

			return newNetworkError("cannot listen on main port", err)
		}

		server.listener = listener
	}

	server.Logger.Info("listening", "address", server.listener.Addr())

	return nil
}

func temporaryError(err net.Error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ECONNABORTED || errno == syscall.ECONNRESET
	}

	return false
}

// Serve accepts and processes incoming clients until the listener is closed.
func (server *Server) Serve() error {
	var tempDelay time.Duration

	for {
		conn, err := server.listener.Accept()
		if err != nil {
			if done, finalErr := server.handleAcceptError(err, &tempDelay); done {
				return finalErr
			}

			continue
		}

		tempDelay = 0

		server.clientArrival(conn)
	}
}

func (server *Server) handleAcceptError(err error, tempDelay *time.Duration) (bool, error) {
	var errOp *net.OpError
	if errors.As(err, &errOp) && errOp.Err.Error() == "use of closed network connection" {
		server.listener = nil

		return true, nil
	}

	var ne net.Error
	if errors.As(err, &ne) && (ne.Temporary() || temporaryError(ne)) { //nolint:staticcheck
		if *tempDelay == 0 {
			*tempDelay = 5 * time.Millisecond
		} else {
			*tempDelay *= 2
		}

		if max := time.Second; *tempDelay > max {
			*tempDelay = max
		}

		server.Logger.Warn("accept error, retrying", "err", err, "retryDelay", *tempDelay)
		time.Sleep(*tempDelay)

		return false, nil
	}

	server.Logger.Error("listener accept error", "err", err)

	return true, newNetworkError("listener accept error", err)
}

// ListenAndServe chains Listen and Serve.
func (server *Server) ListenAndServe() error {
	if err := server.Listen(); err != nil {
		return err
	}

	server.Logger.Info("starting")

	return server.Serve()
}

// Addr returns the listening address, or "" if not listening.
func (server *Server) Addr() string {
	if server.listener != nil {
		return server.listener.Addr().String()
	}

	return ""
}

// Stop closes the listener.
func (server *Server) Stop() error {
	if server.listener == nil {
		return ErrNotListening
	}

	if err := server.listener.Close(); err != nil {
		server.Logger.Warn("could not close listener", "err", err)

		return newNetworkError("could not close listener", err)
	}

	return nil
}

// clientArrival implements Admission Control (spec.md §4.1): on accept,
// increment the global and per-IP counters (assigning the incremented
// per-IP value as connection_id), then check the ceilings *after*
// incrementing, using the server-wide default — never the eventual
// authenticated user's own limit (Open Question 3).
func (server *Server) clientArrival(conn net.Conn) {
	server.clientCounter++
	id := server.clientCounter

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String()) //nolint:errcheck
	global, perIP := server.accountant.admit(host)

	session := server.newSession(conn, id)
	session.connectionID = perIP

	if server.settings.MaxConnections > 0 && global > server.settings.MaxConnections {
		session.writeMessage(StatusServiceNotAvailable,
			fmt.Sprintf("%d users (the maximum) logged in.", server.settings.MaxConnections))
		server.accountant.release(host)
		conn.Close() //nolint:errcheck

		return
	}

	if server.settings.MaxConnectionsPerUser > 0 && perIP > server.settings.MaxConnectionsPerUser {
		session.writeMessage(StatusNotLoggedIn, "number of connections per IP is limited.")
		server.accountant.release(host)
		conn.Close() //nolint:errcheck

		return
	}

	go session.run()

	session.logger.Debug("client connected", "clientIp", conn.RemoteAddr())
}

func (server *Server) clientDeparture(s *Session) {
	s.logger.Debug("client disconnected", "clientIp", s.conn.RemoteAddr())
}
