package emulator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/blacktop/tplink/pkg/codec"
	"github.com/blacktop/tplink/pkg/pkcs1"
	"github.com/blacktop/tplink/pkg/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse"

func newTestEmulator(t *testing.T) *Emulator {
	t.Helper()
	emu, err := New(&Config{Password: testPassword, Sessions: 2})
	require.NoError(t, err)
	return emu
}

func clientCodec(t *testing.T, emu *Emulator, password string) *codec.Codec {
	t.Helper()
	key := emu.SigningKey()
	c, err := codec.New(key[0], key[1], emu.Sequence(), "admin", password, random.NewSeeded(9))
	require.NoError(t, err)
	return c
}

func loginEnvelope(t *testing.T, emu *Emulator, c *codec.Codec, password string) *codec.Envelope {
	t.Helper()
	key := emu.PasswordKey()
	enc, err := pkcs1.NewEncryptor(key[0], key[1], nil)
	require.NoError(t, err)
	hex, err := enc.Encrypt(password)
	require.NoError(t, err)
	env, err := c.EncryptRequest("password="+hex+"&operation=login", true)
	require.NoError(t, err)
	return env
}

func TestNewRequiresPassword(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	emu := newTestEmulator(t)
	c := clientCodec(t, emu, testPassword)
	env := loginEnvelope(t, emu, c, testPassword)

	grant, cipher, err := emu.Login(env.Sign, env.Data)
	require.NoError(t, err)
	require.NotNil(t, cipher)
	assert.Len(t, grant.Stok, 32)
	assert.Len(t, grant.Sysauth, 32)
	assert.NotEqual(t, grant.Stok, grant.Sysauth)
	assert.Equal(t, 1, emu.Sessions())

	_, err = emu.Lookup(grant.Stok, grant.Sysauth)
	assert.NoError(t, err)
	_, err = emu.Lookup(grant.Stok, "nope")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = emu.Lookup("nope", grant.Sysauth)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLoginWrongPassword(t *testing.T) {
	emu := newTestEmulator(t)

	// digest and RSA password both wrong
	c := clientCodec(t, emu, "wrong")
	env := loginEnvelope(t, emu, c, "wrong")
	grant, cipher, err := emu.Login(env.Sign, env.Data)
	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.Nil(t, grant)
	assert.NotNil(t, cipher, "failures after key recovery must still be answerable")

	// digest right, RSA password wrong
	c = clientCodec(t, emu, testPassword)
	env = loginEnvelope(t, emu, c, "wrong")
	_, _, err = emu.Login(env.Sign, env.Data)
	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.Zero(t, emu.Sessions())
}

func TestLoginRejectsBadSignature(t *testing.T) {
	emu := newTestEmulator(t)
	c := clientCodec(t, emu, testPassword)
	env := loginEnvelope(t, emu, c, testPassword)

	_, cipher, err := emu.Login("abcd", env.Data)
	assert.ErrorIs(t, err, ErrBadSignature)
	assert.Nil(t, cipher)

	// the signed length no longer matches the data
	_, _, err = emu.Login(env.Sign, env.Data+"AAAA")
	assert.ErrorIs(t, err, ErrBadSignature)

	// key material is mandatory at login
	plain, err := c.EncryptRequest("operation=login", false)
	require.NoError(t, err)
	_, _, err = emu.Login(plain.Sign, plain.Data)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestOpen(t *testing.T) {
	emu := newTestEmulator(t)
	c := clientCodec(t, emu, testPassword)
	env := loginEnvelope(t, emu, c, testPassword)
	grant, _, err := emu.Login(env.Sign, env.Data)
	require.NoError(t, err)
	cipher, err := emu.Lookup(grant.Stok, grant.Sysauth)
	require.NoError(t, err)

	req, err := c.EncryptRequest("operation=read", false)
	require.NoError(t, err)
	form, err := emu.Open(cipher, req.Sign, req.Data)
	require.NoError(t, err)
	assert.Equal(t, "read", form.Get("operation"))

	withKey, err := c.EncryptRequest("operation=read", true)
	require.NoError(t, err)
	_, err = emu.Open(cipher, withKey.Sign, withKey.Data)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestSessionEviction(t *testing.T) {
	emu := newTestEmulator(t)
	var grants []*Grant
	for range 3 {
		c := clientCodec(t, emu, testPassword)
		env := loginEnvelope(t, emu, c, testPassword)
		grant, _, err := emu.Login(env.Sign, env.Data)
		require.NoError(t, err)
		grants = append(grants, grant)
	}
	assert.Equal(t, 2, emu.Sessions())
	_, err := emu.Lookup(grants[0].Stok, grants[0].Sysauth)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = emu.Lookup(grants[2].Stok, grants[2].Sysauth)
	assert.NoError(t, err)
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in    string
		stok  string
		route string
		ok    bool
	}{
		{"/;stok=/login", "", "/login", true},
		{"/;stok=abc123/admin/status", "abc123", "/admin/status", true},
		{"/login", "", "", false},
		{"/;stok=abc", "", "", false},
	}
	for _, tt := range tests {
		stok, route, ok := splitPath(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.stok, stok, tt.in)
		assert.Equal(t, tt.route, route, tt.in)
	}
}

func TestServerPublicForms(t *testing.T) {
	s, err := NewServer(&Config{Password: testPassword})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	post := func(path string) (*http.Response, map[string]any) {
		resp, err := http.Post(ts.URL+"/cgi-bin/luci/;stok="+path, "application/x-www-form-urlencoded", strings.NewReader("operation=read"))
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp, body
	}

	resp, body := post("/login?form=keys")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	keys := body["data"].(map[string]any)["password"].([]any)
	assert.Equal(t, s.Emulator().PasswordKey()[0], keys[0])

	resp, body = post("/login?form=auth")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, s.Emulator().Sequence(), data["seq"])
	assert.Len(t, data["key"], 2)

	resp, body = post("/admin/status?form=all")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestServerLoginCookie(t *testing.T) {
	s, err := NewServer(&Config{Password: testPassword})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	emu := s.Emulator()
	c := clientCodec(t, emu, testPassword)
	env := loginEnvelope(t, emu, c, testPassword)
	form := "sign=" + url.QueryEscape(env.Sign) + "&data=" + url.QueryEscape(env.Data)

	resp, err := http.Post(ts.URL+"/cgi-bin/luci/;stok=/login?form=login", "application/x-www-form-urlencoded", strings.NewReader(form))
	require.NoError(t, err)
	defer resp.Body.Close()

	setCookie := resp.Header.Get("Set-Cookie")
	assert.True(t, strings.HasPrefix(setCookie, "sysauth="), setCookie)
	assert.True(t, strings.HasSuffix(setCookie, "; Path=/; HttpOnly"), setCookie)

	var outer struct {
		Data string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outer))
	plain, err := c.DecryptResponse(outer.Data)
	require.NoError(t, err)
	var inner struct {
		Success bool `json:"success"`
		Data    struct {
			Stok string `json:"stok"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(plain), &inner))
	assert.True(t, inner.Success)
	assert.NotEmpty(t, inner.Data.Stok)
}

func TestServerStopBeforeStart(t *testing.T) {
	s, err := NewServer(&Config{Password: testPassword})
	require.NoError(t, err)
	assert.NoError(t, s.Stop())
	assert.Equal(t, "127.0.0.1:8080", s.Addr())
}
