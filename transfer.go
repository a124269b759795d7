package ftpd

import (
	"context"
	"io"
	"net"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

// newLimiter builds a token-bucket limiter sized so that sustained
// throughput matches maxBytesPerSec while a burst up to one buffer is let
// through immediately — the idiomatic Go substitute for the Python
// original's per-chunk sleep(delta-elapsed) pacing (SPEC_FULL.md Open
// Question 4). A zero cap means unlimited, matching "0 means unlimited" in
// spec.md §3.
func newLimiter(maxBytesPerSec int64, bufSize int) *rate.Limiter {
	if maxBytesPerSec <= 0 {
		return nil
	}

	return rate.NewLimiter(rate.Limit(maxBytesPerSec), bufSize)
}

func waitLimiter(ctx context.Context, limiter *rate.Limiter, n int) error {
	if limiter == nil || n == 0 {
		return nil
	}

	// WaitN rejects a request larger than the bucket size with an error;
	// clamp the wait to the bucket's own burst so an oversized final chunk
	// still drains instead of failing.
	if n > limiter.Burst() {
		n = limiter.Burst()
	}

	return limiter.WaitN(ctx, n)
}

// asciiAccumulator decodes a byte stream for ASCII-mode transfers (type 'a'),
// converting line endings to CRLF or LF (as toCRLF selects) and holding back a
// trailing incomplete UTF-8 sequence across Read calls instead of corrupting
// it (Open Question 1: "accumulate a trailing undecodable byte buffer across
// reads before decoding").
type asciiAccumulator struct {
	src     io.Reader
	pending []byte
	toCRLF  bool
}

func newASCIIAccumulator(src io.Reader, toCRLF bool) *asciiAccumulator {
	return &asciiAccumulator{src: src, toCRLF: toCRLF}
}

func (a *asciiAccumulator) Read(p []byte) (int, error) {
	buf := make([]byte, len(p))

	n, err := a.src.Read(buf)
	if n == 0 {
		return 0, err
	}

	chunk := append(a.pending, buf[:n]...) //nolint:gocritic
	a.pending = nil

	// Hold back a trailing byte sequence that looks like the start of a
	// multi-byte UTF-8 rune we haven't fully received yet.
	if cut := incompleteRuneTail(chunk); cut > 0 && err == nil {
		a.pending = append(a.pending, chunk[len(chunk)-cut:]...)
		chunk = chunk[:len(chunk)-cut]
	}

	converted := convertLineEndings(chunk, a.toCRLF)

	copyN := copy(p, converted)
	if copyN < len(converted) {
		// p was sized len(p) but line-ending expansion can grow the data;
		// stash the overflow to return on the next call.
		a.pending = append(converted[copyN:], a.pending...)

		return copyN, nil
	}

	return copyN, err
}

// incompleteRuneTail returns how many trailing bytes of b form the start of
// a UTF-8 sequence that isn't yet complete (0 if b ends cleanly).
func incompleteRuneTail(b []byte) int {
	for tail := 1; tail <= utf8.UTFMax && tail <= len(b); tail++ {
		if !utf8.RuneStart(b[len(b)-tail]) {
			continue
		}

		if utf8.FullRune(b[len(b)-tail:]) {
			return 0
		}

		return tail
	}

	return 0
}

func convertLineEndings(b []byte, toCRLF bool) []byte {
	out := make([]byte, 0, len(b)+len(b)/10)

	for i := 0; i < len(b); i++ {
		switch {
		case b[i] == '\r' && i+1 < len(b) && b[i+1] == '\n':
			// already CRLF
			if toCRLF {
				out = append(out, '\r', '\n')
			} else {
				out = append(out, '\n')
			}

			i++
		case b[i] == '\n':
			if toCRLF {
				out = append(out, '\r', '\n')
			} else {
				out = append(out, '\n')
			}
		default:
			out = append(out, b[i])
		}
	}

	return out
}

// transferResult is what the Transfer Engine reports back so the caller can
// choose between 226/421/426 (spec.md §4.5).
type transferResult struct {
	bytes   int64
	timeout bool
	err     error
}

// pushFile streams src to conn, honoring maxBytesPerSec and the data-channel
// idle timeout; used by RETR, LIST and MLSD (spec.md §4.5 "Push").
func pushFile(conn net.Conn, src io.Reader, maxBytesPerSec int64, bufSize int, idleTimeout time.Duration) transferResult {
	limiter := newLimiter(maxBytesPerSec, bufSize)
	buf := make([]byte, bufSize)

	var total int64

	for {
		if err := conn.SetWriteDeadline(time.Now().Add(idleTimeout)); err != nil {
			return transferResult{bytes: total, err: err}
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if err := waitLimiter(context.Background(), limiter, n); err != nil {
				return transferResult{bytes: total, err: err}
			}

			if _, err := conn.Write(buf[:n]); err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() { //nolint:errorlint
					return transferResult{bytes: total, timeout: true, err: err}
				}

				return transferResult{bytes: total, err: err}
			}

			total += int64(n)
		}

		if readErr != nil {
			if readErr == io.EOF { //nolint:errorlint
				return transferResult{bytes: total}
			}

			return transferResult{bytes: total, err: readErr}
		}
	}
}

// pullFile reads from conn into dst until EOF, honoring maxBytesPerSec and
// the data-channel idle timeout; used by STOR and APPE (spec.md §4.5 "Pull").
func pullFile(conn net.Conn, dst io.Writer, maxBytesPerSec int64, bufSize int, idleTimeout time.Duration) transferResult {
	limiter := newLimiter(maxBytesPerSec, bufSize)
	buf := make([]byte, bufSize)

	var total int64

	for {
		if err := conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return transferResult{bytes: total, err: err}
		}

		n, readErr := conn.Read(buf)
		if n > 0 {
			if err := waitLimiter(context.Background(), limiter, n); err != nil {
				return transferResult{bytes: total, err: err}
			}

			if _, err := dst.Write(buf[:n]); err != nil {
				return transferResult{bytes: total, err: err}
			}

			total += int64(n)
		}

		if readErr != nil {
			if readErr == io.EOF { //nolint:errorlint
				return transferResult{bytes: total}
			}

			if ne, ok := readErr.(net.Error); ok && ne.Timeout() { //nolint:errorlint
				return transferResult{bytes: total, timeout: true, err: readErr}
			}

			return transferResult{bytes: total, err: readErr}
		}
	}
}
