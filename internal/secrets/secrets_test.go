package secrets_test

import (
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/physical-mcp/internal/secrets"
)

func randomRoot(t *testing.T) []byte {
	t.Helper()
	root := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, root)
	require.NoError(t, err)
	return root
}

func TestSealOpenRoundTrip(t *testing.T) {
	k, err := secrets.NewKeyring(randomRoot(t))
	require.NoError(t, err)

	blob, err := k.SealString(secrets.PurposeProviderAPIKey, "sk-ant-test-key")
	require.NoError(t, err)
	assert.NotContains(t, blob, "sk-ant-test-key")

	plain, err := k.OpenString(secrets.PurposeProviderAPIKey, blob)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test-key", plain)
}

func TestOpenWrongPurposeFails(t *testing.T) {
	k, err := secrets.NewKeyring(randomRoot(t))
	require.NoError(t, err)

	blob, err := k.SealString(secrets.PurposeProviderAPIKey, "sk-ant-test-key")
	require.NoError(t, err)

	_, err = k.OpenString(secrets.PurposePushTokenSigner, blob)
	assert.ErrorIs(t, err, secrets.ErrDecryption)
}

func TestOpenTamperedBlobFails(t *testing.T) {
	k, err := secrets.NewKeyring(randomRoot(t))
	require.NoError(t, err)

	blob, err := k.SealString(secrets.PurposeProviderAPIKey, "sk-ant-test-key")
	require.NoError(t, err)

	tampered := []byte(blob)
	tampered[len(tampered)-1] ^= 0x01
	_, err = k.OpenString(secrets.PurposeProviderAPIKey, string(tampered))
	assert.ErrorIs(t, err, secrets.ErrDecryption)
}

func TestNewKeyringRejectsWrongSize(t *testing.T) {
	_, err := secrets.NewKeyring([]byte("too-short"))
	assert.Error(t, err)
}

func TestLoadOrCreatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.key")

	k1, err := secrets.LoadOrCreate(path)
	require.NoError(t, err)
	blob, err := k1.SealString(secrets.PurposeProviderAPIKey, "sk-ant-test-key")
	require.NoError(t, err)

	k2, err := secrets.LoadOrCreate(path)
	require.NoError(t, err)
	plain, err := k2.OpenString(secrets.PurposeProviderAPIKey, blob)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test-key", plain)
}

func TestLoadOrCreateRejectsMalformedKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.key")
	require.NoError(t, os.WriteFile(path, []byte("not base64!!"), 0o600))

	_, err := secrets.LoadOrCreate(path)
	assert.Error(t, err)
}
