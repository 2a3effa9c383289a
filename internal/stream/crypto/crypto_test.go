package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/pymarshal/pkg/util/merr"
)

func newTestEncryptor(t *testing.T) *AEADHMAC {
	c, err := NewAEADHMAC(bytes.Repeat([]byte{7}, KeySize), []byte("mac"))
	require.NoError(t, err)
	return c
}

func TestEncryptDecrypt(t *testing.T) {
	c := newTestEncryptor(t)
	aad := []byte("header")
	packet, err := c.Encrypt([]byte("payload"), aad)
	require.NoError(t, err)

	plain, err := c.Decrypt(packet, aad)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), plain)

	_, err = c.Decrypt(packet, []byte("other"))
	assert.ErrorIs(t, err, ErrInvalidMAC)

	packet[len(packet)/2] ^= 1
	_, err = c.Decrypt(packet, aad)
	assert.ErrorIs(t, err, ErrInvalidMAC)

	_, err = c.Decrypt([]byte{1, 2, 3}, aad)
	assert.ErrorIs(t, err, ErrPacketTooShort)
}

func TestEmptyPlaintext(t *testing.T) {
	c := newTestEncryptor(t)
	packet, err := c.Encrypt(nil, nil)
	require.NoError(t, err)
	plain, err := c.Decrypt(packet, nil)
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestNewErrors(t *testing.T) {
	_, err := NewAEADHMAC([]byte("short"), []byte("mac"))
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
	_, err = NewAEADHMAC(bytes.Repeat([]byte{1}, KeySize), nil)
	assert.ErrorIs(t, err, merr.ErrParameterMissing)

	_, err = NewAEADHMACFromHex("zz", "00")
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
	c, err := NewAEADHMACFromHex(strings.Repeat("ab", KeySize), "01")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestNop(t *testing.T) {
	out, err := NopEncryptor{}.Encrypt([]byte("x"), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), out)
}
