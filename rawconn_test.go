package ftpd

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// plainConn is a bare control-connection helper for exercises that must run
// before login, where goftp's client (which always authenticates first)
// doesn't apply — mirroring the teacher's handle_auth_test.go use of a raw
// net.Conn for the pre-login NOOP probe.
type plainConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newRawConnNoLogin(t *testing.T, server *Server) *plainConn {
	t.Helper()

	conn, err := net.DialTimeout("tcp", server.Addr(), 5*time.Second)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	pc := &plainConn{conn: conn, reader: bufio.NewReader(conn)}
	pc.readReply(t) // banner

	return pc
}

func (pc *plainConn) readReply(t *testing.T) (int, string) {
	t.Helper()

	line, err := pc.reader.ReadString('\n')
	require.NoError(t, err)

	code, err := strconv.Atoi(strings.TrimSpace(line[:3]))
	require.NoError(t, err)

	return code, strings.TrimSpace(line[4:])
}

func sendAndCheckPlain(t *testing.T, pc *plainConn, cmd string, expected int) string {
	t.Helper()

	_, err := pc.conn.Write([]byte(cmd + "\r\n"))
	require.NoError(t, err)

	code, msg := pc.readReply(t)
	require.Equal(t, expected, code)

	return msg
}
