package ftpd

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// resolve is a shorthand for running the Path Resolver against the session's
// current directory and user.
func (s *Session) resolve(arg string) ResolvedPath {
	return resolvePath(s.user, s.Path(), arg)
}

func quoteDoubling(path string) string {
	return strings.ReplaceAll(path, `"`, `""`)
}

func (s *Session) handlePWD(string) error {
	s.writeMessage(StatusPathCreated, fmt.Sprintf("%q is current directory.", quoteDoubling(s.Path())))

	return nil
}

// handleCWD resolves the argument and, if it names a directory the user may
// enter, updates session.directory. CWD ".." at the root is called out
// explicitly by spec.md §4.7 rather than folded into the generic not-found case.
func (s *Session) handleCWD(param string) error {
	if strings.TrimSpace(param) == ".." && s.Path() == "/" {
		s.writeMessage(StatusActionNotTaken, `"/" has no parent directory.`)

		return nil
	}

	resolved := s.resolve(param)

	if !resolved.Attrs.has(PermEnter) {
		return newFtpError(KindPermissionDenied, "permission denied", nil)
	}

	info, err := s.server.store.Stat(resolved.RealPath)
	if err != nil || !info.IsDir() {
		return newFtpError(KindNotFound, fmt.Sprintf("%s: no such directory", resolved.Path), err)
	}

	s.setDirectory(resolved.Path)
	s.writeMessage(StatusFileOK, "directory changed to "+resolved.Path)

	return nil
}

func (s *Session) handleCDUP(string) error {
	return s.handleCWD("..")
}

// handleMKD requires the 'm' permission on the resolved path of the new directory.
func (s *Session) handleMKD(param string) error {
	resolved := s.resolve(param)

	if !resolved.Attrs.has(PermMakeDir) {
		return newFtpError(KindPermissionDenied, "permission denied", nil)
	}

	if err := s.server.store.Mkdir(resolved.RealPath, 0o755); err != nil {
		return newFileAccessError("could not create directory", err)
	}

	s.writeMessage(StatusPathCreated, fmt.Sprintf("%q created.", quoteDoubling(resolved.Path)))

	return nil
}

// handleRMD requires 'd' and refuses to ever remove the root.
func (s *Session) handleRMD(param string) error {
	resolved := s.resolve(param)

	if resolved.Path == "/" {
		return newFtpError(KindPermissionDenied, "cannot remove the root directory", nil)
	}

	if !resolved.Attrs.has(PermDelete) {
		return newFtpError(KindPermissionDenied, "permission denied", nil)
	}

	var err error
	if rd, ok := s.server.store.(ObjectStoreExtensionRemoveDir); ok {
		err = rd.RemoveDir(resolved.RealPath)
	} else {
		err = s.server.store.RemoveAll(resolved.RealPath)
	}

	if err != nil {
		return newFileAccessError("could not remove directory", err)
	}

	s.writeMessage(StatusFileOK, "directory removed.")

	return nil
}

// splitListArgs strips a single leading ls-style flag token (e.g. "-a",
// "-la") the way spec.md §4.7 calls out for LIST, leaving whatever path
// argument follows.
func splitListArgs(param string) string {
	fields := strings.Fields(param)
	if len(fields) > 0 && strings.HasPrefix(fields[0], "-") {
		fields = fields[1:]
	}

	return strings.Join(fields, " ")
}

// handleLIST produces a Unix-ls-style listing. A file argument short-circuits
// to a single 213 status line instead of opening a data connection, per
// spec.md §4.7.
func (s *Session) handleLIST(param string) error {
	if s.server.settings.DisableLISTArgs {
		return s.list(strings.TrimSpace(param), false)
	}

	return s.list(splitListArgs(param), false)
}

func (s *Session) handleNLST(param string) error {
	return s.list(splitListArgs(param), true)
}

func (s *Session) list(arg string, namesOnly bool) error {
	resolved := s.resolve(arg)

	if !resolved.Attrs.has(PermList) {
		return newFtpError(KindPermissionDenied, "permission denied", nil)
	}

	info, err := s.server.store.Stat(resolved.RealPath)
	if err != nil {
		return newFtpError(KindNotFound, fmt.Sprintf("%s: no such file or directory", resolved.Path), err)
	}

	if !info.IsDir() {
		if namesOnly {
			s.writeMessage(StatusFileStatus, info.Name())

			return nil
		}

		var buf bytes.Buffer

		if err := writeLISTLine(&buf, info, time.Now()); err != nil {
			return newFtpError(KindTransferFailed, "could not format listing", err)
		}

		s.writeMessage(StatusFileStatus, strings.TrimRight(buf.String(), "\r\n"))

		return nil
	}

	entries, err := afero.ReadDir(s.server.store, resolved.RealPath)
	if err != nil {
		return newFileAccessError("could not read directory", err)
	}

	entries = filterStatable(entries)

	var buf bytes.Buffer

	var formatErr error
	if namesOnly {
		formatErr = writeNLST(&buf, entries)
	} else {
		formatErr = writeLISTing(&buf, entries, time.Now())
	}

	if formatErr != nil {
		return newFtpError(KindTransferFailed, "could not format listing", formatErr)
	}

	s.pushData(fmt.Sprintf("Opening data connection for directory list of %q", resolved.Path), &buf, resolved.Attrs.MaxDown)

	return nil
}

// filterStatable is a no-op placeholder for the "entries that fail stat are
// skipped silently" rule of spec.md §4.6: afero.ReadDir already drops
// entries it can't stat, so there is nothing left to filter here.
func filterStatable(entries []os.FileInfo) []os.FileInfo {
	return entries
}

// handleMLSD writes the full MLSx listing of a directory over the data
// channel (spec.md §4.6).
func (s *Session) handleMLSD(param string) error {
	resolved := s.resolve(param)

	if !resolved.Attrs.has(PermList) {
		return newFtpError(KindPermissionDenied, "permission denied", nil)
	}

	info, err := s.server.store.Stat(resolved.RealPath)
	if err != nil || !info.IsDir() {
		return newFtpError(KindNotFound, fmt.Sprintf("%s: no such directory", resolved.Path), err)
	}

	entries, err := afero.ReadDir(s.server.store, resolved.RealPath)
	if err != nil {
		return newFileAccessError("could not read directory", err)
	}

	parent := s.resolve("..")

	var buf bytes.Buffer
	if err := writeMLSD(&buf, resolved.Attrs, resolved.Path, parent.Path, entries, time.Now(), s.mlstFacts); err != nil {
		return newFtpError(KindTransferFailed, "could not format listing", err)
	}

	s.pushData(fmt.Sprintf("Opening data connection for MLSD of %q", resolved.Path), &buf, resolved.Attrs.MaxDown)

	return nil
}

// handleMLST replies with a multi-line 250 describing a single path, rather
// than its contents (spec.md §4.6).
func (s *Session) handleMLST(param string) error {
	resolved := s.resolve(param)

	if !resolved.Attrs.has(PermList) {
		return newFtpError(KindPermissionDenied, "permission denied", nil)
	}

	info, err := s.server.store.Stat(resolved.RealPath)
	if err != nil {
		return newFtpError(KindNotFound, fmt.Sprintf("%s: no such file or directory", resolved.Path), err)
	}

	kind := entryFile
	if info.IsDir() {
		kind = entryDir
	}

	var buf bytes.Buffer
	if err := writeMLSxLine(&buf, resolved.Path, kind, info.Size(), info.ModTime(), resolved.Attrs, s.mlstFacts); err != nil {
		return newFtpError(KindTransferFailed, "could not format fact line", err)
	}

	done := s.multilineAnswer(StatusFileOK, fmt.Sprintf("Listing %s: %s", kind, resolved.Path))
	s.writeLine(" " + strings.TrimRight(buf.String(), "\r\n"))
	done()

	return nil
}

// handleOPTS implements "OPTS UTF8 ON|OFF" (always allowed) and
// "OPTS MLST ..." (requires login) per spec.md §4.7.
func (s *Session) handleOPTS(param string) error {
	parts := strings.SplitN(strings.TrimSpace(param), " ", 2)
	if parts[0] == "" {
		return newFtpError(KindProtocolSyntax, "OPTS requires a sub-command", nil)
	}

	sub := strings.ToUpper(parts[0])

	arg := ""
	if len(parts) == 2 {
		arg = parts[1]
	}

	switch sub {
	case "UTF8":
		switch strings.ToUpper(strings.TrimSpace(arg)) {
		case "ON", "":
			s.utf8 = true
			s.writeMessage(StatusOK, "UTF8 mode enabled")
		case "OFF":
			s.utf8 = false
			s.writeMessage(StatusOK, "UTF8 mode disabled")
		default:
			return newFtpError(KindProtocolSyntax, "OPTS UTF8 accepts ON or OFF", nil)
		}

		return nil
	case "MLST":
		if s.user == nil {
			return newFtpError(KindNotAuthenticated, "please login with USER and PASS", nil)
		}

		facts := parseFactNames(arg)
		if len(facts) == 0 {
			facts = append([]Fact(nil), DefaultFacts...)
		}

		s.paramsMutex.Lock()
		s.mlstFacts = facts
		s.paramsMutex.Unlock()

		names := make([]string, len(facts))
		for i, f := range facts {
			names[i] = factName(f)
		}

		s.writeMessage(StatusOK, fmt.Sprintf("MLST OPTS %s;", strings.Join(names, ";")))

		return nil
	default:
		return newFtpError(KindUnsupportedParameter, fmt.Sprintf("unsupported OPTS sub-command %q", sub), nil)
	}
}
