package ftpd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModeAcceptsStreamOnly(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConn(t, server)

	sendAndCheck(t, raw, "MODE S", StatusOK)
	sendAndCheck(t, raw, "MODE B", StatusNotImplementedParam)
}

func TestStruAcceptsFileOnly(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConn(t, server)

	sendAndCheck(t, raw, "STRU F", StatusOK)
	sendAndCheck(t, raw, "STRU R", StatusNotImplementedParam)
}

func TestNoopOK(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConn(t, server)

	sendAndCheck(t, raw, "NOOP", StatusOK)
}

func TestClntOK(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConn(t, server)

	sendAndCheck(t, raw, "CLNT WinSCP", StatusOK)
}

func TestAborAlwaysOK(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConn(t, server)

	sendAndCheck(t, raw, "ABOR", StatusClosingDataConn)
}

func TestStatWithoutArgReportsStatus(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConn(t, server)

	code, msg, err := raw.SendCommand("STAT")
	require.NoError(t, err)
	require.Equal(t, StatusSystemStatus, code, msg)
	require.Contains(t, msg, "Connected as")
}

func TestStatOnMissingPathNotFound(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConn(t, server)

	sendAndCheck(t, raw, "STAT /nowhere", StatusActionNotTaken)
}

func TestPortRejectedWhenActiveModeDisabled(t *testing.T) {
	server := newTestServer(t)
	server.settings.DisableActiveMode = true

	raw := newRawConn(t, server)
	sendAndCheck(t, raw, "PORT 127,0,0,1,4,1", StatusNotImplementedParam)
}

func TestPasvReplyFormat(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConn(t, server)

	code, msg, err := raw.SendCommand("PASV")
	require.NoError(t, err)
	require.Equal(t, StatusEnteringPASV, code, msg)
	require.Contains(t, msg, "(")
}
