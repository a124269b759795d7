package ftpd

import (
	"fmt"
	"strings"
)

// handleUSER stashes the lowercased name and replies with the account's login
// message (anonymous accounts use it to ask for an email address, mirroring
// slftpd's anonymous notice), or 430 if the name is unknown.
func (s *Session) handleUSER(param string) error {
	if param == "" {
		return newFtpError(KindProtocolSyntax, "USER requires a name", nil)
	}

	name := strings.ToLower(param)

	s.paramsMutex.Lock()
	s.stashedName = name
	s.user = nil
	s.paramsMutex.Unlock()

	user, err := s.server.driver.LookupUser(name)
	if err != nil || user == nil {
		s.writeMessage(StatusLoginFailed, fmt.Sprintf("unknown user %q", name))

		return nil
	}

	msg := fmt.Sprintf("User %s okay, need password.", strings.ToUpper(name))
	if user.LoginMessage != "" {
		msg = user.LoginMessage
	}

	s.writeMessage(StatusNeedPassword, msg)

	return nil
}

// handlePASS checks the password against the account stashed by USER. The
// per-user connection ceiling is only enforced here, after authentication
// (the pre-login ceiling, checked at admission, always uses the server
// default per spec.md's Open Question 3).
func (s *Session) handlePASS(param string) error {
	s.paramsMutex.RLock()
	name := s.stashedName
	s.paramsMutex.RUnlock()

	if name == "" {
		s.writeMessage(StatusNeedAccount, "login with USER first")

		return nil
	}

	user, err := s.server.driver.AuthUser(s, name, param)
	if err != nil || user == nil {
		s.writeMessage(StatusLoginFailed, "authentication failed")

		return nil
	}

	if user.MaxConnections > 0 && s.connectionID > user.MaxConnections {
		s.writeMessage(StatusNotLoggedIn, "number of connections per IP is limited.")

		return nil
	}

	s.paramsMutex.Lock()
	s.user = user
	s.paramsMutex.Unlock()

	s.writeMessage(StatusLoggedIn, "User logged in, proceed.")

	return nil
}

// handleQUIT replies 221 and closes the control connection; the command loop
// observes the closed socket on its next read and exits.
func (s *Session) handleQUIT(string) error {
	s.writeMessage(StatusClosingControlConn, "Goodbye.")

	if err := s.conn.Close(); err != nil {
		s.logger.Warn("error closing connection on QUIT", "err", err)
	}

	return nil
}
