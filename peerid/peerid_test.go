package peerid

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateRoundTrip(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)
	require.Len(t, id.PeerID, Len)
	require.True(t, strings.HasPrefix(id.PeerID, "12D3KooW"), id.PeerID)

	pub, err := PublicKey(id.PeerID)
	require.NoError(t, err)
	require.Equal(t, id.PublicKey, pub)
}

func TestFromSeedDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	a, err := FromSeed(seed)
	require.NoError(t, err)
	b, err := FromSeed(seed)
	require.NoError(t, err)
	require.Equal(t, a.PeerID, b.PeerID)

	_, err = FromSeed([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	require.Error(t, Validate("peerX"))
	require.Error(t, Validate(strings.Repeat("0", Len)))
}

func TestShort(t *testing.T) {
	require.Equal(t, ".a1b2", Short("12D3KooWxyza1b2"))
	require.Equal(t, ".ab", Short("ab"))
}
