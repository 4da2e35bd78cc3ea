package auth

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/notifyclient/pkg/constants"
)

func TestMemory(t *testing.T) {
	m := NewMemory("")

	_, err := m.Token()
	require.ErrorIs(t, err, constants.ErrNoToken)

	m.Set("  abc  ")
	token, err := m.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	m.Clear()
	_, err = m.Token()
	assert.ErrorIs(t, err, constants.ErrNoToken)
}

func TestKeyring(t *testing.T) {
	k := NewKeyring(keyring.NewArrayKeyring(nil))

	_, err := k.Token()
	require.ErrorIs(t, err, constants.ErrNoToken)

	require.NoError(t, k.Set("rotated"))
	token, err := k.Token()
	require.NoError(t, err)
	assert.Equal(t, "rotated", token)

	require.NoError(t, k.Clear())
	require.NoError(t, k.Clear())
	_, err = k.Token()
	assert.ErrorIs(t, err, constants.ErrNoToken)
}

func TestHeader(t *testing.T) {
	assert.Equal(t, "Token abc", Header("Token", "abc"))
	assert.Equal(t, "abc", Header("", "abc"))
}
