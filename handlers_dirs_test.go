package ftpd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListEmptyDirectory(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(t, server)

	entries, err := client.ReadDir("/")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestListAfterMkdirAndStore(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(t, server)

	_, err := client.Mkdir("subdir")
	require.NoError(t, err)

	require.NoError(t, client.Store("file.txt", bytes.NewReader([]byte("hi"))))

	entries, err := client.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestNlstListsNamesOnly(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(t, server)

	require.NoError(t, client.Store("names.txt", bytes.NewReader([]byte("x"))))

	raw := newRawConn(t, server)

	dcGetter, err := raw.PrepareDataConn()
	require.NoError(t, err)

	code, msg, err := raw.SendCommand("NLST")
	require.NoError(t, err)
	require.Equal(t, StatusFileStatusOK, code, msg)

	dataConn, err := dcGetter()
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = out.ReadFrom(dataConn)
	require.NoError(t, err)
	require.NoError(t, dataConn.Close())

	require.Contains(t, out.String(), "names.txt")
}

func TestListOnSingleFileRepliesInline(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(t, server)

	require.NoError(t, client.Store("single.txt", bytes.NewReader([]byte("hi"))))

	raw := newRawConn(t, server)
	msg := sendAndCheck(t, raw, "LIST single.txt", StatusFileStatus)
	require.Contains(t, msg, "single.txt")
}

func TestMlstReportsTypeAndPerm(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(t, server)

	require.NoError(t, client.Store("fact.bin", bytes.NewReader([]byte("x"))))

	raw := newRawConn(t, server)
	code, msg, err := raw.SendCommand("MLST fact.bin")
	require.NoError(t, err)
	require.Equal(t, StatusFileOK, code, msg)
	require.Contains(t, msg, "Type=file")
	require.Contains(t, msg, "Perm=rwadf")
}

func TestMlsdListsDirectoryEntries(t *testing.T) {
	server := newTestServer(t)
	client := newTestClient(t, server)

	require.NoError(t, client.Store("entry.bin", bytes.NewReader([]byte("x"))))

	raw := newRawConn(t, server)

	dcGetter, err := raw.PrepareDataConn()
	require.NoError(t, err)

	code, msg, err := raw.SendCommand("MLSD")
	require.NoError(t, err)
	require.Equal(t, StatusFileStatusOK, code, msg)

	dataConn, err := dcGetter()
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = out.ReadFrom(dataConn)
	require.NoError(t, err)
	require.NoError(t, dataConn.Close())

	require.Contains(t, out.String(), "entry.bin")
}

func TestOptsUtf8Toggle(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConn(t, server)

	sendAndCheck(t, raw, "OPTS UTF8 ON", StatusOK)
	sendAndCheck(t, raw, "OPTS UTF8 OFF", StatusOK)
	sendAndCheck(t, raw, "OPTS UTF8 MAYBE", StatusSyntaxError)
}

func TestOptsMlstSelectsFacts(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConn(t, server)

	msg := sendAndCheck(t, raw, "OPTS MLST Type;Size;", StatusOK)
	require.Contains(t, msg, "Type")
}

func TestMkdThenRmdRoundTrip(t *testing.T) {
	server := newTestServer(t)
	raw := newRawConn(t, server)

	sendAndCheck(t, raw, "MKD /temp", StatusPathCreated)
	sendAndCheck(t, raw, "RMD /temp", StatusFileOK)
}
