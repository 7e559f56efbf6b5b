package encryption

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"
)

// encrypt собирает содержимое так же, как клиент формы
func encrypt(t *testing.T, msg string) string {
	t.Helper()
	formPublic, _, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	submissionPublic, submissionPrivate, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var nonce [NonceSize]byte
	_, err = rand.Read(nonce[:])
	require.NoError(t, err)

	sealed := box.Seal(nil, []byte(msg), &nonce, formPublic, submissionPrivate)
	return base64.StdEncoding.EncodeToString(submissionPublic[:]) + ";" +
		base64.StdEncoding.EncodeToString(nonce[:]) + ":" +
		base64.StdEncoding.EncodeToString(sealed)
}

func TestCheckEncryptedEncodingValid(t *testing.T) {
	assert.NoError(t, CheckEncryptedEncoding(encrypt(t, `{"a":1}`)))
	assert.NoError(t, CheckEncryptedEncoding(encrypt(t, "")))
}

func TestCheckEncryptedEncodingInvalid(t *testing.T) {
	valid := encrypt(t, "hello")
	key := base64.StdEncoding.EncodeToString(make([]byte, PublicKeySize))
	nonce := base64.StdEncoding.EncodeToString(make([]byte, NonceSize))
	cipher := base64.StdEncoding.EncodeToString(make([]byte, box.Overhead+3))

	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"no separators", "abc"},
		{"no nonce separator", key + ";" + nonce},
		{"empty key", ";" + nonce + ":" + cipher},
		{"empty cipher", key + ";" + nonce + ":"},
		{"key not base64", "!!!;" + nonce + ":" + cipher},
		{"short key", base64.StdEncoding.EncodeToString(make([]byte, 16)) + ";" + nonce + ":" + cipher},
		{"short nonce", key + ";" + base64.StdEncoding.EncodeToString(make([]byte, 12)) + ":" + cipher},
		{"short cipher", key + ";" + nonce + ":" + base64.StdEncoding.EncodeToString(make([]byte, 4))},
		{"cipher not base64", key + ";" + nonce + ":%%%"},
		{"truncated", valid[:len(valid)-3]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckEncryptedEncoding(tt.content)
			var encErr *InvalidEncodingError
			assert.True(t, errors.As(err, &encErr), "got %v", err)
		})
	}
}
