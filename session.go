package ftpd

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gera2ld/goftpd/log"
)

// TransferType is the session's TYPE setting (spec.md §3: type ∈ {i, a}).
type TransferType int

// Supported transfer types.
const (
	TransferTypeBinary TransferType = iota
	TransferTypeASCII
)

var (
	errNoTransferConnection = newFtpError(KindBadSequence, "no transfer connection open", nil)
)

// Session is the per-control-connection state machine of spec.md §3. One is
// created per accepted connection and runs its command loop on its own
// goroutine until QUIT or a fatal I/O error.
// nolint: maligned
type Session struct {
	id       uint32
	server   *Server
	conn     net.Conn
	writer   *bufio.Writer
	reader   *bufio.Reader
	logger   log.Logger

	connectedAt  time.Time
	connectionID int // per-remote-IP sequence number assigned on admission

	paramsMutex sync.RWMutex
	user        *User  // set at PASS; nil until authenticated
	stashedName string // set at USER, consumed by PASS
	directory   string // client-visible cwd, starts "/"
	lastCommand string

	context           ResolvedPath // most recently resolved argument
	transferType      TransferType
	restOffset        int64
	pendingRenameFrom string
	mlstFacts         []Fact
	utf8              bool // OPTS UTF8 ON|OFF toggle; server default is always UTF-8

	transferMu        sync.Mutex
	transferWg        sync.WaitGroup
	transfer          transporter
	isTransferOpen    bool
	isTransferAborted bool
}

func (server *Server) newSession(conn net.Conn, id uint32) *Session {
	return &Session{
		id:           id,
		server:       server,
		conn:         conn,
		writer:       bufio.NewWriter(conn),
		reader:       bufio.NewReader(conn),
		connectedAt:  time.Now().UTC(),
		directory:    "/",
		mlstFacts:    append([]Fact(nil), DefaultFacts...),
		logger:       server.Logger.With("sessionId", id),
		transferType: server.settings.defaultTransferType(),
		utf8:         true,
	}
}

// ClientContext implementation, used by MainDriver hooks and PublicIPResolver.

func (s *Session) Path() string {
	s.paramsMutex.RLock()
	defer s.paramsMutex.RUnlock()

	return s.directory
}

func (s *Session) setDirectory(value string) {
	s.paramsMutex.Lock()
	defer s.paramsMutex.Unlock()

	s.directory = value
}

func (s *Session) ID() uint32 { return s.id }

func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

func (s *Session) LocalAddr() net.Addr { return s.conn.LocalAddr() }

func (s *Session) GetLastCommand() string {
	s.paramsMutex.RLock()
	defer s.paramsMutex.RUnlock()

	return s.lastCommand
}

func (s *Session) setLastCommand(cmd string) {
	s.paramsMutex.Lock()
	defer s.paramsMutex.Unlock()

	s.lastCommand = cmd
}

func (s *Session) Close() error {
	s.transferMu.Lock()
	defer s.transferMu.Unlock()

	s.isTransferAborted = true

	if err := s.closeTransferLocked(); err != nil {
		s.logger.Warn("problem closing transfer on external close", "err", err)
	}

	return s.conn.Close()
}

func (s *Session) closeTransferLocked() error {
	var err error
	if s.transfer != nil {
		err = s.transfer.Close()
		s.isTransferOpen = false
		s.transfer = nil
	}

	return err
}

func (s *Session) remoteIP() string {
	host, _, err := net.SplitHostPort(s.conn.RemoteAddr().String())
	if err != nil {
		return s.conn.RemoteAddr().String()
	}

	return host
}

func (s *Session) end() {
	s.server.driver.ClientDisconnected(s)
	s.server.clientDeparture(s)
	s.server.accountant.release(s.remoteIP())

	s.transferMu.Lock()
	defer s.transferMu.Unlock()

	if err := s.closeTransferLocked(); err != nil {
		s.logger.Warn("problem closing transfer", "err", err)
	}
}

func (s *Session) isCommandAborted() bool {
	s.transferMu.Lock()
	defer s.transferMu.Unlock()

	return s.isTransferAborted
}

// run is the command loop: HandleCommands in the teacher's naming.
func (s *Session) run() {
	defer s.end()

	msg, err := s.server.driver.ClientConnected(s)
	if err != nil {
		s.writeMessage(StatusSyntaxErrorNotRecognised, msg)

		return
	}

	s.writeMessage(StatusServiceReady, msg)

	for {
		timeout := time.Duration(s.server.settings.ControlTimeoutSeconds) * time.Second
		if timeout > 0 {
			if err := s.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
				s.logger.Error("network error", "err", err)
			}
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.handleStreamError(err)

			return
		}

		s.handleCommand(line)
	}
}

func (s *Session) handleStreamError(err error) {
	if ne, ok := err.(net.Error); ok && ne.Timeout() { //nolint:errorlint
		s.writeMessage(StatusServiceNotAvailable,
			fmt.Sprintf("command timeout (%d seconds): closing control connection", s.server.settings.ControlTimeoutSeconds))

		if err := s.writer.Flush(); err != nil {
			s.logger.Error("flush error", "err", err)
		}

		if err := s.conn.Close(); err != nil {
			s.logger.Error("close error", "err", err)
		}

		return
	}

	if err != io.EOF { //nolint:errorlint
		s.logger.Error("read error", "err", err)
	}
}

func (s *Session) handleCommand(line string) {
	command, param := parseLine(line)
	command = strings.ToUpper(command)

	cmdDesc := commandTable[command]
	if cmdDesc == nil {
		for _, cmd := range specialAttentionCommands {
			if strings.HasSuffix(command, cmd) {
				cmdDesc = commandTable[cmd]
				command = cmd

				break
			}
		}

		if cmdDesc == nil {
			s.setLastCommand(command)
			s.writeMessage(StatusSyntaxErrorNotRecognised, fmt.Sprintf("unknown command %q", command))

			return
		}
	}

	if s.user == nil && !cmdDesc.Open {
		s.writeMessage(StatusNotLoggedIn, "please login with USER and PASS")

		return
	}

	if !cmdDesc.SpecialAction {
		s.transferWg.Wait()
	}

	// rest_offset survives until it's consumed by RETR/STOR/APPE (or the
	// transfer that consumes it finishes); any other command clears it
	// (spec.md §3 "rest_offset" lifecycle). pending_rename_from instead
	// survives until RNTO runs, regardless of what runs in between.
	switch command {
	case "REST", "RETR", "STOR", "APPE":
	default:
		s.restOffset = 0
	}

	if command == "RNTO" {
		defer func() { s.pendingRenameFrom = "" }()
	}

	s.setLastCommand(command)

	if cmdDesc.TransferRelated {
		s.isTransferAborted = false
		s.transferWg.Add(1)

		go func(cmd, param string) {
			defer s.transferWg.Done()

			s.executeCommand(cmdDesc, cmd, param)
		}(command, param)
	} else {
		s.executeCommand(cmdDesc, command, param)
	}
}

func (s *Session) executeCommand(cmdDesc *commandDescription, command, param string) {
	defer func() {
		if r := recover(); r != nil {
			s.writeMessage(StatusSyntaxErrorNotRecognised, fmt.Sprintf("unhandled internal error: %v", r))
			s.logger.Warn("internal command handling error", "err", r, "command", command, "param", param)
			s.restOffset = 0
			s.pendingRenameFrom = ""
		}
	}()

	if err := cmdDesc.Fn(s, param); err != nil {
		s.writeMessage(getErrorCode(err, StatusSyntaxErrorNotRecognised), err.Error())
	}
}

func (s *Session) writeLine(line string) {
	if _, err := s.writer.WriteString(line + "\r\n"); err != nil {
		s.logger.Warn("answer couldn't be sent", "line", line, "err", err)
	}

	if err := s.writer.Flush(); err != nil {
		s.logger.Warn("couldn't flush line", "err", err)
	}
}

func (s *Session) writeMessage(code int, message string) {
	lines := getMessageLines(message)

	for idx, line := range lines {
		if idx < len(lines)-1 {
			s.writeLine(fmt.Sprintf("%d-%s", code, line))
		} else {
			s.writeLine(fmt.Sprintf("%d %s", code, line))
		}
	}
}

func (s *Session) multilineAnswer(code int, header string) func() {
	s.writeLine(fmt.Sprintf("%d-%s", code, header))

	return func() {
		s.writeLine(fmt.Sprintf("%d End", code))
	}
}

func parseLine(line string) (string, string) {
	parts := strings.SplitN(strings.Trim(line, "\r\n"), " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}

	return parts[0], parts[1]
}

func getMessageLines(message string) []string {
	lines := make([]string, 0, 1)
	sc := bufio.NewScanner(strings.NewReader(message))

	for sc.Scan() {
		lines = append(lines, sc.Text())
	}

	if len(lines) == 0 {
		lines = append(lines, "")
	}

	return lines
}

// openDataConn opens the pending transporter, sending 125 if it's already
// connected or 150 then awaiting the connected signal with the configured
// connect timeout (spec.md §4.5).
func (s *Session) openDataConn(info string) (net.Conn, error) {
	s.transferMu.Lock()
	tr := s.transfer
	s.transferMu.Unlock()

	if tr == nil {
		if s.isCommandAborted() {
			s.transferMu.Lock()
			s.isTransferAborted = false
			s.transferMu.Unlock()

			return nil, errNoTransferConnection
		}

		s.writeMessage(StatusActionNotTaken, errNoTransferConnection.Error())

		return nil, errNoTransferConnection
	}

	if tr.connected() {
		s.writeMessage(StatusDataConnectionAlreadyOpen, info)
	} else {
		s.writeMessage(StatusFileStatusOK, info)
	}

	conn, err := tr.Open()
	if err != nil {
		s.writeMessage(StatusCannotOpenDataConnection, err.Error())

		return nil, err
	}

	s.transferMu.Lock()
	s.isTransferOpen = true
	s.transferMu.Unlock()

	return conn, nil
}

// closeDataConn tears down the transporter and sends the final 226/421/426
// reply, unless the transfer was aborted out from under us.
func (s *Session) closeDataConn(result transferResult) {
	s.transferMu.Lock()
	errClose := s.closeTransferLocked()
	aborted := s.isTransferAborted
	s.isTransferAborted = false
	s.transferMu.Unlock()

	if aborted {
		return
	}

	switch {
	case result.timeout:
		s.writeMessage(StatusServiceNotAvailable, "data channel timeout")
	case result.err != nil:
		s.writeMessage(StatusActionAborted, fmt.Sprintf("transfer failed: %v", result.err))
	case errClose != nil:
		s.writeMessage(StatusActionNotTaken, fmt.Sprintf("issue closing transfer: %v", errClose))
	default:
		s.writeMessage(StatusClosingDataConn, fmt.Sprintf("transfer complete (%d bytes)", result.bytes))
	}
}

// pushData drives the Transfer Engine's push path (spec.md §4.5) against a
// freshly opened data connection, used by RETR and by the Listing Formatter
// for LIST/MLSD.
func (s *Session) pushData(info string, src io.Reader, maxBytesPerSec int64) {
	conn, err := s.openDataConn(info)
	if err != nil {
		return
	}

	result := pushFile(conn, src, maxBytesPerSec, s.bufferSize(), s.dataTimeout())
	s.closeDataConn(result)
}

// pullData drives the Transfer Engine's pull path, used by STOR and APPE.
func (s *Session) pullData(info string, dst io.Writer, maxBytesPerSec int64) {
	conn, err := s.openDataConn(info)
	if err != nil {
		return
	}

	result := pullFile(conn, dst, maxBytesPerSec, s.bufferSize(), s.dataTimeout())
	s.closeDataConn(result)
}

// consumeRestOffset reads and clears rest_offset, for RETR/STOR/APPE to use
// once and not leak into the next transfer (spec.md §3 "rest_offset").
func (s *Session) consumeRestOffset() int64 {
	s.paramsMutex.Lock()
	defer s.paramsMutex.Unlock()

	off := s.restOffset
	s.restOffset = 0

	return off
}

func (s *Session) bufferSize() int {
	if s.server.settings.BufferSize > 0 {
		return s.server.settings.BufferSize
	}

	return 4096
}

func (s *Session) dataTimeout() time.Duration {
	if s.server.settings.DataTimeoutSeconds > 0 {
		return time.Duration(s.server.settings.DataTimeoutSeconds) * time.Second
	}

	return 10 * time.Second
}

func (s *Session) connectTimeout() time.Duration {
	if s.server.settings.ConnectTimeoutSeconds > 0 {
		return time.Duration(s.server.settings.ConnectTimeoutSeconds) * time.Second
	}

	return 5 * time.Second
}
