package pkcs1

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"

	"github.com/blacktop/tplink/pkg/random"
)

func testKey(t *testing.T, bits int) (*rsa.PrivateKey, *Decrypter) {
	t.Helper()
	key, err := GenerateKey(rand.Reader, bits)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	return key, NewDecrypter(key)
}

func TestNewEncryptor(t *testing.T) {
	tests := []struct {
		name     string
		modulus  string
		exponent string
		wantErr  bool
	}{
		{"valid", "E66FDAC84695316901FD021515E50289660E7EAD252CAAC5B56FFC1332B4BEF6FAB44C01A2510C3053C1CC259D9983FB1719F9F9FA7B96AE65860BDBA97AC4C3", "010001", false},
		{"not hex", "zz", "010001", true},
		{"empty", "", "010001", true},
		{"one", "1", "010001", true},
		{"zero exponent", "61", "0", true},
		{"bad exponent", "61", "xyz", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncryptor(tt.modulus, tt.exponent, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEncryptor() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncryptLength(t *testing.T) {
	_, dec := testKey(t, 512)
	enc, err := NewEncryptor(dec.ModulusHex(), dec.ExponentHex(), random.NewSeeded(1))
	if err != nil {
		t.Fatal(err)
	}
	if enc.BlockSize() != 64 {
		t.Fatalf("BlockSize() = %d, want 64", enc.BlockSize())
	}

	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"empty", "", false},
		{"short", "admin", false},
		{"max", strings.Repeat("a", 53), false},
		{"too long", strings.Repeat("a", 54), true},
		{"multi-byte overflow", strings.Repeat("€", 53), true},
		{"multi-byte fits", strings.Repeat("€", 20), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := enc.Encrypt(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Encrypt() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var lerr *LengthError
				if !errors.As(err, &lerr) {
					t.Errorf("Encrypt() error = %T, want *LengthError", err)
				}
				return
			}
			if len(got) != enc.Width() {
				t.Errorf("len(Encrypt()) = %d, want %d", len(got), enc.Width())
			}
			if strings.ToLower(got) != got {
				t.Errorf("Encrypt() = %s, want lowercase hex", got)
			}
		})
	}
}

func TestLengthErrorMessage(t *testing.T) {
	err := &LengthError{Length: 54, Max: 53, Unit: UnitChars}
	if !strings.Contains(err.Error(), "received length 54 characters") {
		t.Errorf("Error() = %q, want it to name the offending length", err.Error())
	}
}

func TestLengthErrorUnit(t *testing.T) {
	_, dec := testKey(t, 512)
	enc, err := NewEncryptor(dec.ModulusHex(), dec.ExponentHex(), random.NewSeeded(1))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		text string
		want LengthError
	}{
		{"too many characters", strings.Repeat("a", 54), LengthError{Length: 54, Max: 53, Unit: UnitChars}},
		// 30 characters fit, their 90 encoded bytes do not
		{"encoded overflow", strings.Repeat("€", 30), LengthError{Length: 90, Max: 61, Unit: UnitBytes}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Encrypt(tt.text)
			var lerr *LengthError
			if !errors.As(err, &lerr) {
				t.Fatalf("Encrypt() error = %v, want *LengthError", err)
			}
			if *lerr != tt.want {
				t.Errorf("Encrypt() error = %+v, want %+v", *lerr, tt.want)
			}
		})
	}
}

func TestEncryptBlockLayout(t *testing.T) {
	_, dec := testKey(t, 512)
	enc, err := NewEncryptor(dec.ModulusHex(), dec.ExponentHex(), random.NewSeeded(7))
	if err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"", "x", "admin", "pässwörd€", "k=1234567890123456&i=1234567890123456&h=0123", "🔐 lock"} {
		ct, err := enc.Encrypt(text)
		if err != nil {
			t.Fatalf("Encrypt(%q) error = %v", text, err)
		}
		block, err := dec.DecryptBlock(ct)
		if err != nil {
			t.Fatalf("DecryptBlock() error = %v", err)
		}
		if block[0] != 0x00 || block[1] != 0x02 {
			t.Fatalf("block starts with % x, want 00 02", block[:2])
		}
		sep := bytes.IndexByte(block[2:], 0) + 2
		msg := encode(utf16Units(text))
		if sep != len(block)-len(msg)-1 {
			t.Errorf("separator at %d, want %d", sep, len(block)-len(msg)-1)
		}
		if !bytes.Equal(block[sep+1:], msg) {
			t.Errorf("message bytes = % x, want % x", block[sep+1:], msg)
		}
		got, err := dec.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if got != text {
			t.Errorf("Decrypt() = %q, want %q", got, text)
		}
	}
}

func TestEncryptDeterministic(t *testing.T) {
	_, dec := testKey(t, 512)
	a, _ := NewEncryptor(dec.ModulusHex(), dec.ExponentHex(), random.NewSeeded(3))
	b, _ := NewEncryptor(dec.ModulusHex(), dec.ExponentHex(), random.NewSeeded(3))
	c, _ := NewEncryptor(dec.ModulusHex(), dec.ExponentHex(), random.NewSeeded(4))
	x, _ := a.Encrypt("password")
	y, _ := b.Encrypt("password")
	z, _ := c.Encrypt("password")
	if x != y {
		t.Error("same seed produced different ciphertexts")
	}
	if x == z {
		t.Error("different seeds produced identical ciphertexts")
	}
}

func TestEncryptPadsToModulusWidth(t *testing.T) {
	_, dec := testKey(t, 512)
	// leading zeros in the served modulus widen every ciphertext
	enc, err := NewEncryptor("0000"+dec.ModulusHex(), dec.ExponentHex(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ct, err := enc.Encrypt("admin")
	if err != nil {
		t.Fatal(err)
	}
	if len(ct) != len(dec.ModulusHex())+4 {
		t.Errorf("len(Encrypt()) = %d, want %d", len(ct), len(dec.ModulusHex())+4)
	}
	if _, err := dec.Decrypt(strings.TrimPrefix(ct, "0000")); err != nil {
		t.Errorf("Decrypt() error = %v", err)
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []byte
	}{
		{"ascii", "A", []byte{0x41}},
		{"two byte", "é", []byte{0xc3, 0xa9}},
		{"three byte", "€", []byte{0xe2, 0x82, 0xac}},
		{"surrogates", "😀", []byte{0xed, 0xa0, 0xbd, 0xed, 0xb8, 0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := encode(utf16Units(tt.text)); !bytes.Equal(got, tt.want) {
				t.Errorf("encode(%q) = % x, want % x", tt.text, got, tt.want)
			}
		})
	}
}

func TestDecryptChunks(t *testing.T) {
	_, dec := testKey(t, 512)
	enc, _ := NewEncryptor(dec.ModulusHex(), dec.ExponentHex(), nil)
	a, _ := enc.Encrypt("first ")
	b, _ := enc.Encrypt("second")
	got, err := dec.DecryptChunks(a + b)
	if err != nil {
		t.Fatal(err)
	}
	if got != "first second" {
		t.Errorf("DecryptChunks() = %q, want %q", got, "first second")
	}
	if _, err := dec.DecryptChunks(a[1:]); !errors.Is(err, ErrDecryption) {
		t.Errorf("DecryptChunks(truncated) error = %v, want ErrDecryption", err)
	}
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey(rand.Reader, 512)
	if err != nil {
		t.Fatal(err)
	}
	if key.N.BitLen() != 512 {
		t.Errorf("N.BitLen() = %d, want 512", key.N.BitLen())
	}
	if _, err := GenerateKey(rand.Reader, 63); err == nil {
		t.Error("GenerateKey(63) succeeded, want error")
	}
}
