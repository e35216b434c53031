package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrInvalidCiphertext is returned when a payload is not valid base64 AES-CBC output.
var ErrInvalidCiphertext = errors.New("codec: invalid ciphertext")

// Cipher is AES-128-CBC with PKCS#7 padding over base64 text.
// The key and IV are the raw bytes of 16-character strings.
type Cipher struct {
	block cipher.Block
	iv    []byte
}

// NewCipher returns a Cipher for a 16-character key and IV.
func NewCipher(key, iv string) (*Cipher, error) {
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("codec: invalid IV length %d", len(iv))
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	return &Cipher{block: block, iv: []byte(iv)}, nil
}

// Encrypt returns base64(AES-CBC(PKCS7(plaintext))).
func (c *Cipher) Encrypt(plaintext string) string {
	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	buf := make([]byte, len(plaintext)+pad)
	copy(buf, plaintext)
	copy(buf[len(plaintext):], bytes.Repeat([]byte{byte(pad)}, pad))

	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(buf, buf)
	return base64.StdEncoding.EncodeToString(buf)
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	buf, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(buf) == 0 || len(buf)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: length %d is not a multiple of the block size", ErrInvalidCiphertext, len(buf))
	}
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(buf, buf)

	pad := int(buf[len(buf)-1])
	if pad == 0 || pad > aes.BlockSize {
		return "", fmt.Errorf("%w: bad padding", ErrInvalidCiphertext)
	}
	for _, b := range buf[len(buf)-pad:] {
		if int(b) != pad {
			return "", fmt.Errorf("%w: bad padding", ErrInvalidCiphertext)
		}
	}
	return string(buf[:len(buf)-pad]), nil
}
