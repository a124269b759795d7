package ftpd

import (
	"fmt"
	"runtime"
	"strings"
)

func (s *Session) handleTYPE(param string) error {
	switch strings.ToUpper(strings.TrimSpace(param)) {
	case "I":
		s.transferType = TransferTypeBinary
	case "A":
		s.transferType = TransferTypeASCII
	default:
		return newFtpError(KindUnsupportedParameter, fmt.Sprintf("unsupported TYPE %q", param), nil)
	}

	s.writeMessage(StatusOK, "Type set to "+strings.ToUpper(strings.TrimSpace(param)))

	return nil
}

// handleMODE accepts only stream mode (spec.md Non-goals exclude block/compressed).
func (s *Session) handleMODE(param string) error {
	if strings.ToUpper(strings.TrimSpace(param)) != "S" {
		return newFtpError(KindUnsupportedParameter, fmt.Sprintf("unsupported MODE %q", param), nil)
	}

	s.writeMessage(StatusOK, "Mode set to S.")

	return nil
}

// handleSTRU accepts only file structure (spec.md Non-goals exclude record structure).
func (s *Session) handleSTRU(param string) error {
	if strings.ToUpper(strings.TrimSpace(param)) != "F" {
		return newFtpError(KindUnsupportedParameter, fmt.Sprintf("unsupported STRU %q", param), nil)
	}

	s.writeMessage(StatusOK, "Structure set to F.")

	return nil
}

// handlePASV implements the server-listens side of the Data Channel
// Coordinator (spec.md §4.4); opening a new transporter always discards any
// previous one (the Invariant in spec.md §3).
func (s *Session) handlePASV(string) error {
	s.transferMu.Lock()

	if err := s.closeTransferLocked(); err != nil {
		s.logger.Warn("problem closing previous transporter", "err", err)
	}

	tr, err := newPassiveTransporter(s.server.portPool, s.connectTimeout())
	if err != nil {
		s.transferMu.Unlock()
		s.writeMessage(StatusSyntaxErrorNotRecognised, "no passive port available")

		return nil
	}

	s.transfer = tr
	s.transferMu.Unlock()

	reply, err := pasvReply(s, s.server.settings, tr.port)
	if err != nil {
		return newNetworkError("could not build PASV reply", err)
	}

	s.writeMessage(StatusEnteringPASV, reply)

	return nil
}

// handlePORT implements the client-listens side (spec.md §4.4). The dial
// happens synchronously so a refused connection can reply 421 immediately.
func (s *Session) handlePORT(param string) error {
	if s.server.settings.DisableActiveMode {
		return newFtpError(KindUnsupportedParameter, "active mode is disabled", nil)
	}

	raddr, err := parsePORTAddr(param)
	if err != nil {
		return newFtpError(KindProtocolSyntax, "invalid PORT address", err)
	}

	s.transferMu.Lock()

	if err := s.closeTransferLocked(); err != nil {
		s.logger.Warn("problem closing previous transporter", "err", err)
	}

	tr := newActiveTransporter(raddr, s.connectTimeout(), !s.server.settings.ActiveTransferPortNon20)
	s.transfer = tr
	s.transferMu.Unlock()

	if err := tr.dial(); err != nil {
		s.writeMessage(StatusServiceNotAvailable, err.Error())

		return nil
	}

	s.writeMessage(StatusOK, "PORT command successful.")

	return nil
}

func (s *Session) handleSYST(string) error {
	s.writeMessage(StatusSystemType, fmt.Sprintf("UNIX Type: L8 (%s) goftpd", runtime.GOOS))

	return nil
}

// handleSTAT without an argument reports general server status; with one it
// replies over the control channel with "(directory)" for a directory or the
// size in bytes for a file. It does not list a directory's contents.
func (s *Session) handleSTAT(param string) error {
	param = strings.TrimSpace(param)
	if param == "" {
		done := s.multilineAnswer(StatusSystemStatus, "goftpd status")
		s.writeLine(fmt.Sprintf(" Connected as %s", s.displayName()))
		s.writeLine(fmt.Sprintf(" TYPE: %s, STRU: F, MODE: S", transferTypeLabel(s.transferType)))
		done()

		return nil
	}

	resolved := s.resolve(param)

	info, err := s.server.store.Stat(resolved.RealPath)
	if err != nil {
		return newFtpError(KindNotFound, fmt.Sprintf("%s: no such file or directory", resolved.Path), err)
	}

	done := s.multilineAnswer(StatusSystemStatus, fmt.Sprintf("Status of %s", resolved.Path))

	if info.IsDir() {
		s.writeLine(" (directory)")
	} else {
		s.writeLine(fmt.Sprintf(" %d bytes", info.Size()))
	}

	done()

	return nil
}

func (s *Session) displayName() string {
	if s.user == nil {
		return "(not logged in)"
	}

	return s.user.Name
}

func (s *Session) handleNOOP(string) error {
	s.writeMessage(StatusOK, "OK")

	return nil
}

// handleFEAT advertises the RFC 2389/3659 extensions this server implements.
func (s *Session) handleFEAT(string) error {
	done := s.multilineAnswer(StatusSystemStatus, "Features")
	s.writeLine(" SIZE")
	s.writeLine(" MDTM")
	s.writeLine(" REST STREAM")
	s.writeLine(" MLST Type*;Size*;Modify*;Perm*;")
	s.writeLine(" MLSD")
	s.writeLine(" UTF8")
	s.writeLine(" PASV")
	done()

	return nil
}

// handleCLNT records the client identification string some clients (FileZilla,
// WinSCP) send unconditionally; it carries no semantics here.
func (s *Session) handleCLNT(string) error {
	s.writeMessage(StatusOK, "CLNT command successful.")

	return nil
}

// handleABOR replies successfully in every case: transfers run to completion
// on the command's own goroutine and are not interruptible mid-flight
// (spec.md §5 "clients that issue ABOR mid-transfer are not supported").
func (s *Session) handleABOR(string) error {
	s.writeMessage(StatusClosingDataConn, "ABOR command successful.")

	return nil
}
