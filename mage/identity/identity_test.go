package identity

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TheusHen/mage/mage/crypto"
)

const seedOnePub = "a4e09292b651c278b9772c569f5fa9bb13d906b46ab68c9df9dc2b4409f8a209"

func TestFromSeed(t *testing.T) {
	id, err := FromSeed(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	require.Equal(t, seedOnePub, id.PublicKey.String())

	_, err = FromSeed(make([]byte, 31))
	require.ErrorIs(t, err, crypto.ErrKeyLength)
}

func TestGenerateDistinct(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)
	require.NotEqual(t, a.Seed, b.Seed)
	require.NotEqual(t, a.PublicKey, b.PublicKey)

	again, err := FromSeed(a.Seed[:])
	require.NoError(t, err)
	require.Equal(t, a, again)
}

func TestParsePublicKey(t *testing.T) {
	pub, err := ParsePublicKey(seedOnePub + "\n")
	require.NoError(t, err)
	require.Equal(t, seedOnePub, pub.String())
	require.Len(t, pub.Bytes(), 32)

	_, err = ParsePublicKey("zz")
	require.Error(t, err)
	_, err = ParsePublicKey(seedOnePub[:62])
	require.ErrorIs(t, err, crypto.ErrKeyLength)
}

func TestSeedFileRoundTrip(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "seed")
	require.NoError(t, WriteSeedFile(path, id))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Equal(t, id, loaded)
}

func TestLoadSeedFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadSeedFile(filepath.Join(dir, "missing"))
	require.Error(t, err)

	short := filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(short, []byte(strings.Repeat("ab", 16)), 0o600))
	_, err = LoadSeedFile(short)
	require.ErrorIs(t, err, crypto.ErrKeyLength)
	require.Contains(t, err.Error(), short)
}

func TestFingerprint(t *testing.T) {
	pub, err := ParsePublicKey(seedOnePub)
	require.NoError(t, err)

	fp := pub.Fingerprint()
	require.Equal(t, FingerprintOf(pub), fp)
	require.Len(t, fp.Short(), 16)
	require.True(t, strings.HasPrefix(fp.String(), fp.Short()))

	parsed, err := ParseFingerprint(fp.String())
	require.NoError(t, err)
	require.Equal(t, fp, parsed)

	_, err = ParseFingerprint("abcd")
	require.Error(t, err)

	other, err := FromSeed(bytes.Repeat([]byte{2}, 32))
	require.NoError(t, err)
	require.NotEqual(t, fp, other.PublicKey.Fingerprint())
}
