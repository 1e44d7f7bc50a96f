package error

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(ConnectionError, "failed to dial relay", cause)

	require.Equal(t, "failed to dial relay: connection refused", err.Error())
	require.ErrorIs(t, err, cause)
	require.True(t, Is(fmt.Errorf("open: %w", err), ConnectionError))
	require.False(t, Is(err, AuthError))
	require.False(t, Is(cause, ConnectionError))
}

func TestIsFindsNestedType(t *testing.T) {
	inner := New(CryptoError, "failed to decrypt key", nil)
	outer := New(AuthError, "no usable key", inner)
	require.True(t, Is(outer, CryptoError))
	require.Equal(t, "auth", AuthError.String())
}
