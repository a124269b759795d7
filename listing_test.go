package ftpd

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestParseFactNames(t *testing.T) {
	facts := parseFactNames("Size;Modify;;Perm")
	require.Equal(t, []Fact{FactSize, FactModify, FactPerm}, facts)
}

func TestParseFactNamesUnknownIgnored(t *testing.T) {
	facts := parseFactNames("size;bogus;type")
	require.Equal(t, []Fact{FactSize, FactType}, facts)
}

func TestPermForEntryFile(t *testing.T) {
	require.Equal(t, "rwd", permForEntry(Attrs{Permission: "elrwd"}, false))
}

func TestPermForEntryDir(t *testing.T) {
	require.Equal(t, "eldm", permForEntry(Attrs{Permission: "elrwdm"}, true))
}

func TestWriteMLSxLine(t *testing.T) {
	var buf bytes.Buffer
	modTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	err := writeMLSxLine(&buf, "report.txt", entryFile, 42, modTime, Attrs{Permission: "elrw"}, DefaultFacts)
	require.NoError(t, err)
	require.Equal(t, "Type=file;Size=42;Modify=20240301120000;Perm=rw; report.txt\r\n", buf.String())
}

func TestWriteMLSDOmitsParentAtRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.txt", []byte("hi"), 0o644))
	infos, err := afero.ReadDir(fs, "/")
	require.NoError(t, err)

	var buf bytes.Buffer
	err = writeMLSD(&buf, Attrs{Permission: "elrw"}, "/", "/", infos, time.Now(), DefaultFacts)
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, " .\r\n")
	require.NotContains(t, out, " ..\r\n")
	require.Contains(t, out, "a.txt\r\n")
}

func TestWriteNLST(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/one.txt", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/two.txt", []byte("y"), 0o644))
	infos, err := afero.ReadDir(fs, "/")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeNLST(&buf, infos))
	require.Equal(t, "one.txt\r\ntwo.txt\r\n", buf.String())
}

func TestWriteLISTLineSameYearUsesTimeFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.txt", []byte("hi"), 0o644))
	info, err := fs.Stat("/a.txt")
	require.NoError(t, err)

	var buf bytes.Buffer
	now := time.Date(info.ModTime().Year(), 6, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, writeLISTLine(&buf, info, now))
	require.NotContains(t, buf.String(), info.ModTime().Format("2006"))
}

func TestWriteLISTLineDifferentYearUsesYearFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.txt", []byte("hi"), 0o644))
	info, err := fs.Stat("/a.txt")
	require.NoError(t, err)

	var buf bytes.Buffer
	now := time.Date(info.ModTime().Year()+2, 6, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, writeLISTLine(&buf, info, now))
	require.Contains(t, buf.String(), info.ModTime().Format("2006"))
}

func TestOrderDirsFirst(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/b.txt", []byte("x"), 0o644))
	require.NoError(t, fs.MkdirAll("/a", 0o755))
	infos, err := afero.ReadDir(fs, "/")
	require.NoError(t, err)

	ordered := orderDirsFirst(infos)
	require.Len(t, ordered, 2)
	require.True(t, ordered[0].IsDir())
	require.False(t, ordered[1].IsDir())
}
