// Package codec implements the session payload envelope used by authenticated router requests
package codec

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/blacktop/tplink/pkg/pkcs1"
	"github.com/blacktop/tplink/pkg/random"
)

// ChunkSize is the number of signing-string characters encrypted per RSA block.
const ChunkSize = 53

// secretLen is the number of decimal digits in the AES key and IV.
const secretLen = 16

// Envelope is the form body of an authenticated request.
type Envelope struct {
	Sign string
	Data string
}

// Codec signs and encrypts request bodies for one session.
type Codec struct {
	rsa      *pkcs1.Encryptor
	aes      *Cipher
	digest   string
	key      string
	iv       string
	sequence int64
}

// New builds a Codec from the signing key served by form=auth.
// The AES key and IV are fresh 16-digit strings drawn from src (nil means random.Default()).
func New(modulusHex, exponentHex string, seq int64, username, password string, src random.Source) (*Codec, error) {
	if src == nil {
		src = random.Default()
	}
	enc, err := pkcs1.NewEncryptor(modulusHex, exponentHex, src)
	if err != nil {
		return nil, err
	}
	key := random.Digits(src, secretLen)
	iv := random.Digits(src, secretLen)
	cbc, err := NewCipher(key, iv)
	if err != nil {
		return nil, err
	}
	return &Codec{
		rsa:      enc,
		aes:      cbc,
		digest:   Digest(username, password),
		key:      key,
		iv:       iv,
		sequence: seq,
	}, nil
}

// Digest returns the hex MD5 of username+password.
func Digest(username, password string) string {
	sum := md5.Sum([]byte(username + password))
	return hex.EncodeToString(sum[:])
}

// Key returns the 16-digit AES key.
func (c *Codec) Key() string { return c.key }

// IV returns the 16-digit AES IV.
func (c *Codec) IV() string { return c.iv }

// Digest returns the hex MD5 of the username and password.
func (c *Codec) Digest() string { return c.digest }

// Sequence returns the sequence value from form=auth.
func (c *Codec) Sequence() int64 { return c.sequence }

// SigningString returns the plaintext that Signature encrypts.
func (c *Codec) SigningString(text string, withKey bool) string {
	var sb strings.Builder
	if withKey {
		sb.WriteString("k=" + c.key + "&i=" + c.iv + "&")
	}
	sb.WriteString("h=" + c.digest + "&s=" + text)
	return sb.String()
}

// Signature encrypts the signing string in ChunkSize-character chunks and concatenates the results.
func (c *Codec) Signature(text string, withKey bool) (string, error) {
	var sb strings.Builder
	for _, chunk := range Chunks(c.SigningString(text, withKey), ChunkSize) {
		ct, err := c.rsa.Encrypt(chunk)
		if err != nil {
			return "", err
		}
		sb.WriteString(ct)
	}
	return sb.String(), nil
}

// EncryptRequest encrypts plaintext and signs the sequence plus the ciphertext length.
//
// NOTE: the sequence is never advanced; every request in a session signs the same base value.
func (c *Codec) EncryptRequest(plaintext string, withKey bool) (*Envelope, error) {
	data := c.aes.Encrypt(plaintext)
	sign, err := c.Signature(strconv.FormatInt(c.sequence+int64(len(data)), 10), withKey)
	if err != nil {
		return nil, err
	}
	return &Envelope{Sign: sign, Data: data}, nil
}

// DecryptResponse decrypts the data field of an authenticated response.
func (c *Codec) DecryptResponse(data string) (string, error) {
	return c.aes.Decrypt(data)
}

// Chunks splits s into consecutive pieces of at most size characters.
// Characters are counted in UTF-16 code units, matching the RSA block length check.
func Chunks(s string, size int) []string {
	if s == "" {
		return nil
	}
	var (
		chunks []string
		start  int
		units  int
	)
	for i, r := range s {
		n := 1
		if r > 0xffff {
			n = 2
		}
		if units+n > size {
			chunks = append(chunks, s[start:i])
			start, units = i, 0
		}
		units += n
	}
	return append(chunks, s[start:])
}
