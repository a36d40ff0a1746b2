package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// A well-known test vector: private key 0x01 maps to this address.
const (
	testKeyHex  = "0000000000000000000000000000000000000000000000000000000000000001"
	testKeyAddr = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	require.Equal(t, testKeyHex, got)

	_, err = DecryptKey(blob, "wrong")
	require.Error(t, err)
}

func TestEncryptKeyValidation(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	require.Error(t, err)

	_, err = EncryptKey("zz", "pw")
	require.Error(t, err)

	_, err = EncryptKey("abcd", "pw")
	require.Error(t, err)
}

func TestLoadKeyResolutionOrder(t *testing.T) {
	// Raw key wins even when a file path is set.
	k, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex, EncryptedKeyPath: "/nope"})
	require.NoError(t, err)
	require.Equal(t, testKeyHex, k)

	blob, err := EncryptKey(testKeyHex, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "owner.key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	k, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	require.Equal(t, testKeyHex, k)

	_, err = LoadKey(KeyConfig{})
	require.Error(t, err)
}

func TestOwnerAddress(t *testing.T) {
	addr, err := OwnerAddress(testKeyHex)
	require.NoError(t, err)
	require.Equal(t, testKeyAddr, addr.Hex())

	_, err = OwnerAddress("not-hex")
	require.Error(t, err)
}
