package ftpd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetErrorCodeFtpErrorKind(t *testing.T) {
	err := newFtpError(KindPermissionDenied, "nope", nil)
	require.Equal(t, StatusActionNotTaken, getErrorCode(err, StatusSyntaxErrorNotRecognised))
}

func TestGetErrorCodeFileAccessErrorMapsTo550(t *testing.T) {
	err := newFileAccessError("could not remove", errors.New("boom"))
	require.Equal(t, StatusActionNotTaken, getErrorCode(err, StatusSyntaxErrorNotRecognised))
}

func TestGetErrorCodeUnknownFallsBackToDefault(t *testing.T) {
	err := errors.New("plain error")
	require.Equal(t, StatusSyntaxErrorNotRecognised, getErrorCode(err, StatusSyntaxErrorNotRecognised))
}
