package ftpd

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
)

// handleREST parses the restart offset and stashes it for the next
// RETR/STOR/APPE (spec.md §4.7).
func (s *Session) handleREST(param string) error {
	offset, err := strconv.ParseInt(param, 10, 64)
	if err != nil || offset < 0 {
		return newFtpError(KindProtocolSyntax, "REST requires a non-negative integer", err)
	}

	s.paramsMutex.Lock()
	s.restOffset = offset
	s.paramsMutex.Unlock()

	s.writeMessage(StatusFileActionPending, fmt.Sprintf("restarting at %d", offset))

	return nil
}

// handleRETR implements the push side of the Transfer Engine (spec.md §4.5),
// honoring a pending REST offset and converting line endings for ASCII type.
func (s *Session) handleRETR(param string) error {
	resolved := s.resolve(param)

	if !resolved.Attrs.has(PermRetrieve) {
		return newFtpError(KindPermissionDenied, "permission denied", nil)
	}

	info, err := s.server.store.Stat(resolved.RealPath)
	if err != nil || info.IsDir() {
		return newFtpError(KindNotFound, fmt.Sprintf("%s: not a regular file", resolved.Path), err)
	}

	file, err := s.server.store.Open(resolved.RealPath)
	if err != nil {
		return newFileAccessError("could not open file", err)
	}
	defer file.Close() //nolint:errcheck

	offset := s.consumeRestOffset()
	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			return newFileAccessError("could not seek to restart offset", err)
		}
	}

	var src io.Reader = file
	if s.transferType == TransferTypeASCII {
		src = newASCIIAccumulator(file, true)
	}

	s.pushData(fmt.Sprintf("Opening %s mode data connection for %q", transferTypeLabel(s.transferType), resolved.Path),
		src, resolved.Attrs.MaxDown)

	return nil
}

// handleSTOR and handleAPPE share the pull side; the only difference is the
// open flags (truncate-and-write vs append), mirroring the teacher's
// transferFile dispatch by command name.
func (s *Session) handleSTOR(param string) error {
	return s.store(param, PermWrite, false)
}

func (s *Session) handleAPPE(param string) error {
	return s.store(param, PermAppend, true)
}

func (s *Session) store(param, perm string, appendMode bool) error {
	resolved := s.resolve(param)

	if !resolved.Attrs.has(perm) {
		return newFtpError(KindPermissionDenied, "permission denied", nil)
	}

	flags := os.O_WRONLY | os.O_CREATE
	offset := s.consumeRestOffset()

	switch {
	case appendMode:
		flags |= os.O_APPEND
	case offset == 0:
		flags |= os.O_TRUNC
	}

	file, err := s.server.store.OpenFile(resolved.RealPath, flags, 0o644)
	if err != nil {
		return newFileAccessError("could not open file for writing", err)
	}
	defer file.Close() //nolint:errcheck

	if !appendMode && offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			return newFileAccessError("could not seek to restart offset", err)
		}
	}

	s.pullData(fmt.Sprintf("Opening %s mode data connection for %q", transferTypeLabel(s.transferType), resolved.Path),
		asciiDecorate(file, s.transferType), resolved.Attrs.MaxUp)

	return nil
}

// asciiDecorate wraps dst so writes through it get line-ending normalized,
// without changing dst's identity when transferType is binary.
func asciiDecorate(dst io.Writer, transferType TransferType) io.Writer {
	if transferType != TransferTypeASCII {
		return dst
	}

	return &asciiWriter{dst: dst, toCRLF: runtime.GOOS == "windows"}
}

// asciiWriter adapts convertLineEndings (written for the read path) to the
// io.Writer side used when pulling STOR/APPE payloads off the wire.
type asciiWriter struct {
	dst    io.Writer
	toCRLF bool
}

func (w *asciiWriter) Write(p []byte) (int, error) {
	converted := convertLineEndings(p, w.toCRLF)
	if _, err := w.dst.Write(converted); err != nil {
		return 0, err
	}

	return len(p), nil
}

func transferTypeLabel(t TransferType) string {
	if t == TransferTypeASCII {
		return "ASCII"
	}

	return "BINARY"
}

func (s *Session) handleDELE(param string) error {
	resolved := s.resolve(param)

	if !resolved.Attrs.has(PermDelete) {
		return newFtpError(KindPermissionDenied, "permission denied", nil)
	}

	if err := s.server.store.Remove(resolved.RealPath); err != nil {
		return newFileAccessError("could not delete file", err)
	}

	s.writeMessage(StatusFileOK, "file deleted.")

	return nil
}

// handleRNFR stashes the realpath for the pending RNTO; RNFR on the root is
// always rejected since there's nothing sensible to rename it to.
func (s *Session) handleRNFR(param string) error {
	resolved := s.resolve(param)

	if !resolved.Attrs.has(PermRename) {
		return newFtpError(KindPermissionDenied, "permission denied", nil)
	}

	if resolved.Path == "/" {
		return newFtpError(KindNotFound, "cannot rename the root directory", nil)
	}

	if _, err := s.server.store.Stat(resolved.RealPath); err != nil {
		return newFtpError(KindNotFound, fmt.Sprintf("%s: no such file or directory", resolved.Path), err)
	}

	s.paramsMutex.Lock()
	s.pendingRenameFrom = resolved.RealPath
	s.paramsMutex.Unlock()

	s.writeMessage(StatusFileActionPending, "ready for RNTO")

	return nil
}

// handleRNTO requires a prior RNFR in the same session.
func (s *Session) handleRNTO(param string) error {
	s.paramsMutex.RLock()
	from := s.pendingRenameFrom
	s.paramsMutex.RUnlock()

	if from == "" {
		return newFtpError(KindBadSequence, "RNFR required first", nil)
	}

	resolved := s.resolve(param)

	if !resolved.Attrs.has(PermRename) {
		return newFtpError(KindPermissionDenied, "permission denied", nil)
	}

	if err := s.server.store.Rename(from, resolved.RealPath); err != nil {
		return newFileAccessError("could not rename", err)
	}

	s.writeMessage(StatusFileOK, "rename successful.")

	return nil
}

func (s *Session) handleSIZE(param string) error {
	resolved := s.resolve(param)

	info, err := s.server.store.Stat(resolved.RealPath)
	if err != nil || info.IsDir() {
		return newFtpError(KindUnsupportedParameter, fmt.Sprintf("%s: not a regular file", resolved.Path), err)
	}

	s.writeMessage(StatusFileStatus, strconv.FormatInt(info.Size(), 10))

	return nil
}

// handleALLO is a compatibility no-op: the server doesn't pre-allocate
// space, but some clients send ALLO unconditionally before STOR.
func (s *Session) handleALLO(string) error {
	s.writeMessage(StatusOK, "ALLO command successful.")

	return nil
}

func (s *Session) handleMDTM(param string) error {
	resolved := s.resolve(param)

	info, err := s.server.store.Stat(resolved.RealPath)
	if err != nil {
		return newFtpError(KindNotFound, fmt.Sprintf("%s: no such file or directory", resolved.Path), err)
	}

	s.writeMessage(StatusFileStatus, info.ModTime().UTC().Format(dateFormatMLSD))

	return nil
}
