// Package pkcs1 implements the router's RSA block encryption (PKCS#1 v1.5 type 2 padding)
package pkcs1

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf16"

	"github.com/blacktop/tplink/pkg/modexp"
	"github.com/blacktop/tplink/pkg/random"
)

// overhead is the minimum padding: two format bytes, eight filler bytes and the separator.
const overhead = 11

// ErrDecryption is returned when a ciphertext does not decrypt to a valid block.
var ErrDecryption = errors.New("pkcs1: decryption error")

// Units a LengthError can be measured in.
const (
	// UnitChars counts UTF-16 code units of the input.
	UnitChars = "characters"
	// UnitBytes counts bytes of the encoded input.
	UnitBytes = "bytes"
)

// LengthError is returned when a message does not fit in a single block.
// Length and Max are both measured in Unit: UTF-16 code units when the input
// has too many characters, encoded bytes when multi-byte text overflows the block.
type LengthError struct {
	Length int
	Max    int
	Unit   string
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("pkcs1: string is too long, received length %d %s (max %d)", e.Length, e.Unit, e.Max)
}

// Encryptor encrypts short strings under an RSA public key.
type Encryptor struct {
	exponent *big.Int
	width    int
	size     int
	ctx      *modexp.Context
	random   random.Source
}

// NewEncryptor parses the hex modulus and exponent as served by the router.
// A nil src uses random.Default().
func NewEncryptor(modulusHex, exponentHex string, src random.Source) (*Encryptor, error) {
	n, ok := new(big.Int).SetString(modulusHex, 16)
	if !ok || n.Cmp(big.NewInt(1)) <= 0 {
		return nil, fmt.Errorf("pkcs1: invalid modulus %q", modulusHex)
	}
	e, ok := new(big.Int).SetString(exponentHex, 16)
	if !ok || e.Sign() <= 0 {
		return nil, fmt.Errorf("pkcs1: invalid exponent %q", exponentHex)
	}
	if src == nil {
		src = random.Default()
	}
	return &Encryptor{
		exponent: e,
		width:    len(modulusHex),
		size:     (n.BitLen() + 7) >> 3,
		ctx:      modexp.New(n),
		random:   src,
	}, nil
}

// BlockSize returns the encoded block length in bytes.
func (e *Encryptor) BlockSize() int { return e.size }

// Width returns the length of every ciphertext this Encryptor produces.
func (e *Encryptor) Width() int { return e.width }

// Encrypt pads text into a single block, encrypts it and returns fixed-width lowercase hex.
func (e *Encryptor) Encrypt(text string) (string, error) {
	block, err := e.pad(text)
	if err != nil {
		return "", err
	}
	c := e.ctx.Exp(new(big.Int).SetBytes(block), e.exponent)
	return fmt.Sprintf("%0*x", e.width, c), nil
}

// pad builds 0x00 0x02 <non-zero filler> 0x00 <message>.
func (e *Encryptor) pad(text string) ([]byte, error) {
	units := utf16Units(text)
	if e.size < len(units)+overhead {
		return nil, &LengthError{Length: len(units), Max: e.size - overhead, Unit: UnitChars}
	}

	msg := encode(units)
	// multi-byte text can pass the length check and still overflow the block
	if len(msg) > e.size-3 {
		return nil, &LengthError{Length: len(msg), Max: e.size - 3, Unit: UnitBytes}
	}

	block := make([]byte, e.size)
	idx := e.size - len(msg)
	copy(block[idx:], msg)

	idx--
	block[idx] = 0
	for idx > 2 {
		idx--
		block[idx] = byte(int(e.random.Float64()*255) + 1)
	}
	block[1] = 2
	block[0] = 0

	return block, nil
}

func utf16Units(s string) []uint16 { return utf16.Encode([]rune(s)) }

// encode writes UTF-16 code units as 1, 2 or 3 bytes each.
// Code points outside the BMP become two 3-byte surrogate sequences.
func encode(units []uint16) []byte {
	out := make([]byte, 0, len(units)*3)
	for _, c := range units {
		switch {
		case c < 0x80:
			out = append(out, byte(c))
		case c < 0x800:
			out = append(out, byte(c>>6)|0xc0, byte(c&0x3f)|0x80)
		default:
			out = append(out, byte(c>>12)|0xe0, byte((c>>6)&0x3f)|0x80, byte(c&0x3f)|0x80)
		}
	}
	return out
}

func decode(b []byte) (string, error) {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xe0 == 0xc0 && i+1 < len(b):
			units = append(units, uint16(c&0x1f)<<6|uint16(b[i+1]&0x3f))
			i += 2
		case c&0xf0 == 0xe0 && i+2 < len(b):
			units = append(units, uint16(c&0x0f)<<12|uint16(b[i+1]&0x3f)<<6|uint16(b[i+2]&0x3f))
			i += 3
		default:
			return "", ErrDecryption
		}
	}
	return string(utf16.Decode(units)), nil
}
