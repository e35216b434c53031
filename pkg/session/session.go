// Package session implements the router login handshake and authenticated queries
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/blacktop/tplink/pkg/codec"
	"github.com/blacktop/tplink/pkg/pkcs1"
	"github.com/blacktop/tplink/pkg/random"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultBaseURL is the router's web API root as resolved on its own LAN.
	DefaultBaseURL = "http://tplinkwifi.net/cgi-bin"
	// DefaultUsername is the factory admin account, hashed into the login digest.
	DefaultUsername = "admin"

	defaultBody = "operation=read"
	contentType = "application/x-www-form-urlencoded"

	pathKeys   = "/login?form=keys"
	pathAuth   = "/login?form=auth"
	pathLogin  = "/login?form=login"
	pathStatus = "/admin/status?form=all"

	// largest integer a JSON number decodes to exactly
	maxSeq = 1 << 53
)

// State is the authentication state of a Session.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config is the Session config
type Config struct {
	BaseURL string
	// Username is hashed with Password into the signing digest (defaults to DefaultUsername).
	Username string
	Password string
	Proxy    string
	Insecure bool
	// Random feeds RSA padding and the AES key/IV (defaults to random.Default()).
	Random random.Source
	// Client overrides the HTTP client built from Proxy and Insecure.
	Client *http.Client
}

// Session is an authenticated connection to a router's web API.
type Session struct {
	conf   Config
	client *http.Client
	login  singleflight.Group

	mu      sync.RWMutex
	state   State
	stok    string
	sysauth string
	codec   *codec.Codec
}

// New returns an unauthenticated Session.
func New(conf *Config) (*Session, error) {
	if conf == nil || len(conf.Password) == 0 {
		return nil, fmt.Errorf("session: password is required")
	}
	c := *conf
	if len(c.BaseURL) == 0 {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if len(c.Username) == 0 {
		c.Username = DefaultUsername
	}
	if c.Random == nil {
		c.Random = random.Default()
	}

	client := c.Client
	if client == nil {
		var err error
		if client, err = newClient(&c); err != nil {
			return nil, err
		}
	}

	return &Session{conf: c, client: client}, nil
}

// State returns the current authentication state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token returns the stok issued at login (empty before).
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stok
}

// Cookie returns the sysauth cookie issued at login (empty before).
func (s *Session) Cookie() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sysauth
}

// BaseURL returns the API root the session talks to.
func (s *Session) BaseURL() string { return s.conf.BaseURL }

// Login performs the handshake. Concurrent callers share a single attempt and
// calling Login on an authenticated session does nothing.
func (s *Session) Login(ctx context.Context) error {
	_, err, shared := s.login.Do("login", func() (any, error) {
		s.mu.Lock()
		if s.state == Authenticated {
			s.mu.Unlock()
			return nil, nil
		}
		s.state = Authenticating
		s.mu.Unlock()

		stok, sysauth, c, err := s.handshake(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.state = Unauthenticated
			return nil, err
		}
		s.stok, s.sysauth, s.codec = stok, sysauth, c
		s.state = Authenticated
		return nil, nil
	})
	if shared {
		log.Debug("joined in-flight login")
	}
	return err
}

func (s *Session) handshake(ctx context.Context) (string, string, *codec.Codec, error) {
	var (
		password string
		c        *codec.Codec
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		password, err = s.encryptedPassword(gctx)
		return err
	})
	g.Go(func() (err error) {
		c, err = s.newCodec(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", "", nil, err
	}

	data, header, err := s.queryAuth(ctx, c, "", "", pathLogin, "password="+password+"&operation=login", true)
	if err != nil {
		return "", "", nil, errors.Wrap(err, "failed to login")
	}

	var login struct {
		Stok any `json:"stok"`
	}
	if err := json.Unmarshal(data, &login); err != nil {
		return "", "", nil, invalid("login", "response is not an object", data)
	}
	stok, ok := login.Stok.(string)
	if !ok {
		return "", "", nil, invalid("login", "missing string stok", data)
	}
	sysauth, ok := sessionCookie(header.Values("Set-Cookie"))
	if !ok {
		return "", "", nil, invalid("login", "missing "+CookieName+" cookie", []byte(strings.Join(header.Values("Set-Cookie"), "\n")))
	}

	log.WithField("url", s.conf.BaseURL).Debug("logged in")

	return stok, sysauth, c, nil
}

func (s *Session) encryptedPassword(ctx context.Context) (string, error) {
	data, err := s.query(ctx, pathKeys)
	if err != nil {
		return "", errors.Wrap(err, "failed to get password key")
	}
	var keys struct {
		Password []string `json:"password"`
	}
	if err := json.Unmarshal(data, &keys); err != nil || len(keys.Password) != 2 {
		return "", invalid("keys", "expected password [modulus, exponent]", data)
	}
	enc, err := pkcs1.NewEncryptor(keys.Password[0], keys.Password[1], s.conf.Random)
	if err != nil {
		return "", &ValidationError{Op: "keys", Reason: err.Error(), Body: string(data)}
	}
	return enc.Encrypt(s.conf.Password)
}

func (s *Session) newCodec(ctx context.Context) (*codec.Codec, error) {
	data, err := s.query(ctx, pathAuth)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get signing key")
	}
	var auth struct {
		Key []string `json:"key"`
		Seq any      `json:"seq"`
	}
	if err := json.Unmarshal(data, &auth); err != nil || len(auth.Key) != 2 {
		return nil, invalid("auth", "expected key [modulus, exponent]", data)
	}
	// any JSON number is accepted (1e3, 5.0) as long as it is integral
	seq, ok := auth.Seq.(float64)
	if !ok || seq != math.Trunc(seq) || math.Abs(seq) > maxSeq {
		return nil, invalid("auth", "expected integral numeric seq", data)
	}
	c, err := codec.New(auth.Key[0], auth.Key[1], int64(seq), s.conf.Username, s.conf.Password, s.conf.Random)
	if err != nil {
		return nil, &ValidationError{Op: "auth", Reason: err.Error(), Body: string(data)}
	}
	return c, nil
}

// Status is the decoded admin/status?form=all payload.
type Status struct {
	WirelessHosts []Host
	Raw           json.RawMessage
}

// Host is a client associated with one of the router's radios.
type Host struct {
	Hostname string `json:"hostname"`
	MAC      string `json:"macaddr"`
	IP       string `json:"ipaddr"`
	WireType string `json:"wire_type"`
}

// StatusAll queries the full router status.
func (s *Session) StatusAll(ctx context.Context) (*Status, error) {
	data, err := s.Query(ctx, pathStatus, "")
	if err != nil {
		return nil, err
	}
	var status struct {
		Hosts json.RawMessage `json:"access_devices_wireless_host"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, invalid("status", "response is not an object", data)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(status.Hosts), []byte("[")) {
		return nil, invalid("status", "missing access_devices_wireless_host array", data)
	}
	var hosts []Host
	if err := json.Unmarshal(status.Hosts, &hosts); err != nil {
		return nil, invalid("status", "malformed access_devices_wireless_host", data)
	}
	return &Status{WirelessHosts: hosts, Raw: data}, nil
}

// Query issues an authenticated request for path and returns the decrypted payload.
// An empty body sends operation=read.
func (s *Session) Query(ctx context.Context, path, body string) (json.RawMessage, error) {
	s.mu.RLock()
	state, stok, sysauth, c := s.state, s.stok, s.sysauth, s.codec
	s.mu.RUnlock()

	if state != Authenticated || c == nil {
		return nil, ErrNotAuthenticated
	}
	if len(body) == 0 {
		body = defaultBody
	}
	data, _, err := s.queryAuth(ctx, c, stok, sysauth, path, body, false)
	return data, err
}

// query is an unauthenticated request
func (s *Session) query(ctx context.Context, path string) (json.RawMessage, error) {
	body, _, err := s.post(ctx, "", path, defaultBody, "")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, failed(path, "unparsable response", body, err)
	}
	if !resp.Success {
		return nil, failed(path, "request was not successful", body, nil)
	}
	return resp.Data, nil
}

func (s *Session) queryAuth(ctx context.Context, c *codec.Codec, stok, sysauth, path, body string, login bool) (json.RawMessage, http.Header, error) {
	env, err := c.EncryptRequest(body, login)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to encrypt request")
	}
	form := "sign=" + url.QueryEscape(env.Sign) + "&data=" + url.QueryEscape(env.Data)

	raw, header, err := s.post(ctx, stok, path, form, sysauth)
	if err != nil {
		return nil, nil, err
	}

	var outer struct {
		Data *string `json:"data"`
	}
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, nil, failed(path, "unparsable response", raw, err)
	}
	if outer.Data == nil {
		return nil, nil, failed(path, "missing encrypted data", raw, nil)
	}
	plain, err := c.DecryptResponse(*outer.Data)
	if err != nil {
		return nil, nil, failed(path, "undecryptable response", raw, err)
	}

	var inner struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(plain), &inner); err != nil {
		return nil, nil, failed(path, "unparsable decrypted response", []byte(plain), err)
	}
	if !inner.Success {
		return nil, nil, failed(path, "request was not successful", []byte(plain), nil)
	}
	return inner.Data, header, nil
}

func (s *Session) post(ctx context.Context, stok, path, form, sysauth string) ([]byte, http.Header, error) {
	u := s.conf.BaseURL + "/luci/;stok=" + stok + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form))
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot create http request")
	}
	req.Header.Set("Content-Type", contentType)
	if len(sysauth) > 0 {
		req.Header.Set("Cookie", CookieName+"="+sysauth)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to POST %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read %s response", path)
	}

	log.WithFields(log.Fields{
		"path":   path,
		"status": resp.StatusCode,
	}).Debug("POST")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, failed(path, "response received "+resp.Status, body, nil)
	}
	return body, resp.Header, nil
}

func invalid(op, reason string, body []byte) error {
	log.WithField("body", string(body)).Warnf("%s: %s", op, reason)
	return &ValidationError{Op: op, Reason: reason, Body: string(body)}
}

func failed(op, reason string, body []byte, err error) error {
	log.WithField("body", string(body)).Warnf("failed querying API: %s: %s", op, reason)
	return &ProtocolError{Op: op, Reason: reason, Body: string(body), Err: err}
}
