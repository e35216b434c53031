// Package emulator serves the router's login and status API for local development and tests
package emulator

import (
	"crypto/rand"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/blacktop/tplink/pkg/codec"
	"github.com/blacktop/tplink/pkg/pkcs1"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

const (
	// DefaultKeyBits is the firmware key size; a 53 character chunk fills one block exactly.
	DefaultKeyBits  = 512
	DefaultSessions = 16
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 8080
	DefaultUsername = "admin"

	maxSeq = 1 << 30
)

var (
	// ErrUnauthorized is returned for an unknown stok or a mismatched sysauth cookie.
	ErrUnauthorized = errors.New("emulator: unauthorized")
	// ErrBadSignature is returned when a request signature does not verify.
	ErrBadSignature = errors.New("emulator: bad signature")
	// ErrLoginFailed is returned when the decrypted password is wrong.
	ErrLoginFailed = errors.New("emulator: login failed")
)

// Host is a wireless client reported by the status form.
type Host struct {
	Hostname string `json:"hostname" mapstructure:"hostname"`
	MAC      string `json:"macaddr" mapstructure:"macaddr"`
	IP       string `json:"ipaddr" mapstructure:"ipaddr"`
	WireType string `json:"wire_type" mapstructure:"wire_type"`
}

// DefaultHosts are reported when no hosts are configured.
var DefaultHosts = []Host{
	{Hostname: "iPhone", MAC: "6C-4A-85-12-34-56", IP: "192.168.0.101", WireType: "5G"},
	{Hostname: "living-room-tv", MAC: "A8-23-FE-65-43-21", IP: "192.168.0.102", WireType: "2.4G"},
}

// Config is the emulator config.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	KeyBits  int
	Sessions int
	Hosts    []Host
	Debug    bool
}

// Grant is issued by a successful login.
type Grant struct {
	Stok    string
	Sysauth string
}

type client struct {
	sysauth string
	cipher  *codec.Cipher
}

// Emulator holds the device-side state of the handshake.
type Emulator struct {
	password string
	digest   string
	seq      int64
	pwKey    *pkcs1.Decrypter
	signKey  *pkcs1.Decrypter
	hosts    []Host
	sessions *lru.Cache[string, *client]
}

// New generates the password and signing key pairs and a sequence value.
func New(conf *Config) (*Emulator, error) {
	if len(conf.Password) == 0 {
		return nil, errors.New("emulator: password is required")
	}
	bits := conf.KeyBits
	if bits == 0 {
		bits = DefaultKeyBits
	}
	size := conf.Sessions
	if size <= 0 {
		size = DefaultSessions
	}
	user := conf.Username
	if len(user) == 0 {
		user = DefaultUsername
	}
	hosts := conf.Hosts
	if hosts == nil {
		hosts = DefaultHosts
	}

	pwKey, err := pkcs1.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate password key")
	}
	signKey, err := pkcs1.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate signing key")
	}
	seq, err := rand.Int(rand.Reader, big.NewInt(maxSeq))
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate sequence")
	}
	sessions, err := lru.New[string, *client](size)
	if err != nil {
		return nil, err
	}

	return &Emulator{
		password: conf.Password,
		digest:   codec.Digest(user, conf.Password),
		seq:      seq.Int64(),
		pwKey:    pkcs1.NewDecrypter(pwKey),
		signKey:  pkcs1.NewDecrypter(signKey),
		hosts:    hosts,
		sessions: sessions,
	}, nil
}

// PasswordKey returns the form=keys [modulus, exponent] pair.
func (e *Emulator) PasswordKey() []string {
	return []string{e.pwKey.ModulusHex(), e.pwKey.ExponentHex()}
}

// SigningKey returns the form=auth [modulus, exponent] pair.
func (e *Emulator) SigningKey() []string {
	return []string{e.signKey.ModulusHex(), e.signKey.ExponentHex()}
}

func (e *Emulator) Sequence() int64 { return e.seq }

// Sessions returns the number of live sessions.
func (e *Emulator) Sessions() int { return e.sessions.Len() }

// Login verifies a form=login envelope. The returned cipher is non-nil whenever the
// key material could be recovered, so failures can still be answered encrypted.
func (e *Emulator) Login(sign, data string) (*Grant, *codec.Cipher, error) {
	fields, err := e.signature(sign)
	if err != nil {
		return nil, nil, err
	}
	if !fields.HasKey() {
		return nil, nil, errors.Wrap(ErrBadSignature, "login without key material")
	}
	cipher, err := codec.NewCipher(fields.Key, fields.IV)
	if err != nil {
		return nil, nil, errors.Wrap(ErrBadSignature, err.Error())
	}
	if err := e.verify(fields, data); err != nil {
		return nil, cipher, err
	}

	plain, err := cipher.Decrypt(data)
	if err != nil {
		return nil, cipher, err
	}
	form, err := url.ParseQuery(plain)
	if err != nil || form.Get("operation") != "login" {
		return nil, cipher, errors.Wrap(ErrLoginFailed, "bad login form")
	}
	password, err := e.pwKey.Decrypt(form.Get("password"))
	if err != nil {
		return nil, cipher, errors.Wrap(ErrLoginFailed, err.Error())
	}
	if password != e.password {
		return nil, cipher, ErrLoginFailed
	}

	grant := &Grant{Stok: token(), Sysauth: token()}
	if evicted := e.sessions.Add(grant.Stok, &client{sysauth: grant.Sysauth, cipher: cipher}); evicted {
		log.Debug("evicted oldest emulator session")
	}
	return grant, cipher, nil
}

// Lookup returns the cipher of the session identified by stok and its cookie.
func (e *Emulator) Lookup(stok, sysauth string) (*codec.Cipher, error) {
	c, ok := e.sessions.Get(stok)
	if !ok || c.sysauth != sysauth {
		return nil, ErrUnauthorized
	}
	return c.cipher, nil
}

// Open verifies an authenticated envelope and returns the decrypted form.
func (e *Emulator) Open(cipher *codec.Cipher, sign, data string) (url.Values, error) {
	fields, err := e.signature(sign)
	if err != nil {
		return nil, err
	}
	if fields.HasKey() {
		return nil, errors.Wrap(ErrBadSignature, "unexpected key material")
	}
	if err := e.verify(fields, data); err != nil {
		return nil, err
	}
	plain, err := cipher.Decrypt(data)
	if err != nil {
		return nil, err
	}
	return url.ParseQuery(plain)
}

// Status returns the form=all payload.
func (e *Emulator) Status() map[string]any {
	return map[string]any{
		"access_devices_wireless_host": e.hosts,
		"lan_ipv4_ipaddr":              "192.168.0.1",
		"wireless_2g_enable":           "on",
		"wireless_5g_enable":           "on",
	}
}

func (e *Emulator) signature(sign string) (*codec.SigningFields, error) {
	signing, err := e.signKey.DecryptChunks(sign)
	if err != nil {
		return nil, errors.Wrap(ErrBadSignature, err.Error())
	}
	fields, err := codec.ParseSigningString(signing)
	if err != nil {
		return nil, errors.Wrap(ErrBadSignature, err.Error())
	}
	return fields, nil
}

func (e *Emulator) verify(fields *codec.SigningFields, data string) error {
	if fields.Digest != e.digest {
		return ErrLoginFailed
	}
	if want := strconv.FormatInt(e.seq+int64(len(data)), 10); fields.Text != want {
		return errors.Wrapf(ErrBadSignature, "signed %s, want %s", fields.Text, want)
	}
	return nil
}

func token() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
