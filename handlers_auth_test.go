package ftpd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserRequiresName(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConnNoLogin(t, server)

	sendAndCheckPlain(t, raw, "USER", StatusSyntaxError)
}

func TestUnknownUserRejected(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConnNoLogin(t, server)

	sendAndCheckPlain(t, raw, "USER nobody", StatusLoginFailed)
}

func TestPassWithoutUserRejected(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConnNoLogin(t, server)

	sendAndCheckPlain(t, raw, "PASS whatever", StatusNeedAccount)
}

func TestUserPassLoginSucceeds(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConnNoLogin(t, server)

	msg := sendAndCheckPlain(t, raw, "USER "+authUser, StatusNeedPassword)
	require.Contains(t, msg, "password")

	sendAndCheckPlain(t, raw, "PASS "+authPass, StatusLoggedIn)
}

func TestQuitClosesConnection(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConn(t, server)

	sendAndCheck(t, raw, "QUIT", StatusClosingControlConn)
}
