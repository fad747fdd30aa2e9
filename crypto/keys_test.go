package crypto

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	addr := key.PubKey().Address()
	require.Equal(t, ScavengerPrefix, addr.Prefix())

	var raw [20]byte
	copy(raw[:], addr.Bytes())
	parsed, err := ParseAddress(FormatAddress(raw))
	require.NoError(t, err)
	require.Equal(t, raw, parsed)

	_, err = ParseAddress("not-an-address")
	require.Error(t, err)
}

func TestSignAndRecover(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	digest := blake3.Sum256([]byte("custody_transfer"))
	sig, err := key.Sign(digest[:])
	require.NoError(t, err)

	recovered, err := RecoverAddress(digest[:], sig)
	require.NoError(t, err)
	require.True(t, bytes.Equal(recovered[:], key.PubKey().Address().Bytes()))

	_, err = RecoverAddress(digest[:], sig[:10])
	require.Error(t, err)
}

func TestKeystoreRoundTrip(t *testing.T) {
	scryptN, scryptP = keystore.LightScryptN, keystore.LightScryptP
	t.Cleanup(func() { scryptN, scryptP = keystore.StandardScryptN, keystore.StandardScryptP })

	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	var addr [20]byte
	copy(addr[:], key.PubKey().Address().Bytes())

	path := filepath.Join(t.TempDir(), "keys", KeyFileName(addr))
	require.NoError(t, SaveToKeystore(path, key, "hunter2"))

	loaded, err := LoadFromKeystore(path, "hunter2")
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), loaded.Bytes())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Overwrites replace the previous file.
	other, err := GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, SaveToKeystore(path, other, "hunter2"))
	loaded, err = LoadFromKeystore(path, "hunter2")
	require.NoError(t, err)
	require.Equal(t, other.Bytes(), loaded.Bytes())
}
