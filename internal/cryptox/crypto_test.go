package cryptox

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCredentialDigest_Deterministic(t *testing.T) {
	a := CredentialDigest("ape-key-1")
	b := CredentialDigest("ape-key-1")
	require.Equal(t, a, b)
}

func TestCredentialDigest_FixedSizeHex(t *testing.T) {
	d := CredentialDigest("x")
	require.Len(t, d, 64)
	_, err := hex.DecodeString(d)
	require.NoError(t, err)
}

func TestCredentialDigest_DistinctInputs(t *testing.T) {
	require.NotEqual(t, CredentialDigest("a"), CredentialDigest("b"))
}

func TestSecretsEqual(t *testing.T) {
	require.True(t, SecretsEqual("secret", "secret"))
	require.False(t, SecretsEqual("secret", "Secret"))
	require.False(t, SecretsEqual("secret", "secret "))
}
