// Проверка формата зашифрованного содержимого ответа. Содержимое не расшифровывается: проверяется только, что строка имеет вид
// <публичный ключ>;<nonce>:<шифротекст>, каждая часть в base64 и длины частей соответствуют nacl box.
package encryption

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/box"
)

const (
	PublicKeySize = 32
	NonceSize     = 24
)

// InvalidEncodingError некорректный формат зашифрованного содержимого
type InvalidEncodingError struct {
	Reason string
	Err    error
}

func (e *InvalidEncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid encrypted content: %s: %v", e.Reason, e.Err)
	}
	return "invalid encrypted content: " + e.Reason
}

func (e *InvalidEncodingError) Unwrap() error {
	return e.Err
}

// CheckEncryptedEncoding возвращает nil для корректно закодированного содержимого и *InvalidEncodingError в остальных случаях
func CheckEncryptedEncoding(content string) error {
	publicKey, rest, ok := strings.Cut(content, ";")
	if !ok {
		return &InvalidEncodingError{Reason: "missing required fields"}
	}
	nonce, cipherText, ok := strings.Cut(rest, ":")
	if !ok || publicKey == "" || nonce == "" || cipherText == "" {
		return &InvalidEncodingError{Reason: "missing required fields"}
	}

	if err := checkPart("public key", publicKey, PublicKeySize, true); err != nil {
		return err
	}
	if err := checkPart("nonce", nonce, NonceSize, true); err != nil {
		return err
	}
	return checkPart("ciphertext", cipherText, box.Overhead, false)
}

func checkPart(name, part string, size int, exact bool) error {
	decoded, err := base64.StdEncoding.DecodeString(part)
	if err != nil {
		return &InvalidEncodingError{Reason: name + " is not base64", Err: err}
	}
	if exact && len(decoded) != size {
		return &InvalidEncodingError{Reason: fmt.Sprintf("%s must be %d bytes, got %d", name, size, len(decoded))}
	}
	if !exact && len(decoded) < size {
		return &InvalidEncodingError{Reason: fmt.Sprintf("%s is shorter than %d bytes", name, size)}
	}
	return nil
}
