package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c := NewCipher("test-key")
	meta := map[string]string{"box_client_id": "abc", "box_client_secret": "shh"}

	blob, err := c.Seal(meta)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), blob[0])
	assert.NotContains(t, string(blob), "shh")

	got, err := c.Open(blob)
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestCipherNoKeyIsPassThrough(t *testing.T) {
	c := NewCipher("")
	meta := map[string]string{"k": "v"}
	blob, err := c.Seal(meta)
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(blob))

	got, err := c.Open(blob)
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestCipherOpensLegacyPlainRows(t *testing.T) {
	// rows written before a key was configured stay readable
	c := NewCipher("later-key")
	got, err := c.Open([]byte(`{"k":"v"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k": "v"}, got)
}

func TestCipherWrongKeyFails(t *testing.T) {
	blob, err := NewCipher("key-a").Seal(map[string]string{"k": "v"})
	require.NoError(t, err)
	_, err = NewCipher("key-b").Open(blob)
	assert.Error(t, err)

	_, err = NewCipher("").Open(blob)
	assert.Error(t, err)
}

func TestCipherEmptyBlob(t *testing.T) {
	got, err := NewCipher("k").Open(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
