package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSHA256HexForms(t *testing.T) {
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	require.Equal(t, want, SHA256Hex([]byte("abc")))

	got, err := SHA256HexFromReader(strings.NewReader("abc"))
	require.NoError(t, err)
	require.Equal(t, want, got)
}
