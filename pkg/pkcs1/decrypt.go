package pkcs1

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"math/big"
	"strings"
)

var one = big.NewInt(1)

// GenerateKey returns a textbook RSA key with e = 65537.
//
// crypto/rsa refuses to generate keys below 1024 bits, while the firmware signs with
// 512-bit keys.
func GenerateKey(random io.Reader, bits int) (*rsa.PrivateKey, error) {
	if bits < 64 || bits%2 != 0 {
		return nil, fmt.Errorf("pkcs1: invalid key size %d", bits)
	}
	e := big.NewInt(65537)
	for {
		p, err := rand.Prime(random, bits/2)
		if err != nil {
			return nil, err
		}
		q, err := rand.Prime(random, bits/2)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}
		n := new(big.Int).Mul(p, q)
		if n.BitLen() != bits {
			continue
		}
		totient := new(big.Int).Mul(new(big.Int).Sub(p, one), new(big.Int).Sub(q, one))
		d := new(big.Int).ModInverse(e, totient)
		if d == nil {
			continue
		}
		return &rsa.PrivateKey{
			PublicKey: rsa.PublicKey{N: n, E: int(e.Int64())},
			D:         d,
			Primes:    []*big.Int{p, q},
		}, nil
	}
}

// Decrypter reverses Encryptor for the holder of the private key.
type Decrypter struct {
	key   *rsa.PrivateKey
	size  int
	width int
}

// NewDecrypter returns a Decrypter whose ciphertext width matches ModulusHex.
func NewDecrypter(key *rsa.PrivateKey) *Decrypter {
	return &Decrypter{
		key:   key,
		size:  (key.N.BitLen() + 7) >> 3,
		width: len(key.N.Text(16)),
	}
}

// ModulusHex returns the modulus as the router serves it.
func (d *Decrypter) ModulusHex() string { return d.key.N.Text(16) }

// ExponentHex returns the public exponent as the router serves it.
func (d *Decrypter) ExponentHex() string { return big.NewInt(int64(d.key.E)).Text(16) }

// Width returns the hex length of a single ciphertext block.
func (d *Decrypter) Width() int { return d.width }

// DecryptBlock returns the raw padded block.
func (d *Decrypter) DecryptBlock(ciphertext string) ([]byte, error) {
	c, ok := new(big.Int).SetString(ciphertext, 16)
	if !ok || c.Cmp(d.key.N) >= 0 {
		return nil, ErrDecryption
	}
	m := new(big.Int).Exp(c, d.key.D, d.key.N)
	if (m.BitLen()+7)>>3 > d.size {
		return nil, ErrDecryption
	}
	return m.FillBytes(make([]byte, d.size)), nil
}

// Decrypt returns the message of a single ciphertext block.
func (d *Decrypter) Decrypt(ciphertext string) (string, error) {
	block, err := d.DecryptBlock(ciphertext)
	if err != nil {
		return "", err
	}
	if len(block) < overhead || block[0] != 0 || block[1] != 2 {
		return "", ErrDecryption
	}
	sep := bytes.IndexByte(block[2:], 0)
	if sep < 0 {
		return "", ErrDecryption
	}
	return decode(block[2+sep+1:])
}

// DecryptChunks decrypts a concatenation of fixed-width ciphertexts and joins the messages.
func (d *Decrypter) DecryptChunks(ciphertext string) (string, error) {
	if len(ciphertext) == 0 || len(ciphertext)%d.width != 0 {
		return "", ErrDecryption
	}
	var sb strings.Builder
	for i := 0; i < len(ciphertext); i += d.width {
		msg, err := d.Decrypt(ciphertext[i : i+d.width])
		if err != nil {
			return "", err
		}
		sb.WriteString(msg)
	}
	return sb.String(), nil
}
