package emulator

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/blacktop/tplink/pkg/codec"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

const (
	cookieName   = "sysauth"
	stokPrefix   = "/;stok="
	shutdownWait = 5 * time.Second
)

// Server is the emulator's HTTP front end
type Server struct {
	router *gin.Engine
	emu    *Emulator
	conf   *Config

	mu  sync.Mutex
	srv *http.Server
}

// NewServer creates a new emulator server
func NewServer(conf *Config) (*Server, error) {
	if conf.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	emu, err := New(conf)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: gin.New(),
		emu:    emu,
		conf:   conf,
	}
	s.router.Use(gin.Recovery(), logger())
	s.router.POST("/cgi-bin/luci/*path", s.luci)

	return s, nil
}

// Emulator returns the device state behind the server
func (s *Server) Emulator() *Emulator { return s.emu }

// Handler returns the server's routes for mounting under httptest
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the listen address
func (s *Server) Addr() string {
	host := s.conf.Host
	if len(host) == 0 {
		host = DefaultHost
	}
	port := s.conf.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.mu.Lock()
	s.srv = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.srv
	s.mu.Unlock()

	log.WithField("url", "http://"+s.Addr()+"/cgi-bin").Info("emulator listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Server) luci(c *gin.Context) {
	stok, route, ok := splitPath(c.Param("path"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "errorcode": "not found"})
		return
	}
	endpoint := route + "?form=" + c.Query("form")
	if len(stok) == 0 {
		s.public(c, endpoint)
		return
	}
	s.private(c, stok, endpoint)
}

func (s *Server) public(c *gin.Context, endpoint string) {
	switch endpoint {
	case "/login?form=keys":
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"password": s.emu.PasswordKey()}})
	case "/login?form=auth":
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"key": s.emu.SigningKey(), "seq": s.emu.Sequence()}})
	case "/login?form=login":
		s.login(c)
	default:
		c.JSON(http.StatusForbidden, gin.H{"success": false, "errorcode": "permission denied"})
	}
}

func (s *Server) login(c *gin.Context) {
	grant, cipher, err := s.emu.Login(c.PostForm("sign"), c.PostForm("data"))
	if err != nil {
		log.WithError(err).Warn("emulator login rejected")
		if cipher == nil {
			c.JSON(http.StatusOK, gin.H{"success": false, "errorcode": "invalid signature"})
			return
		}
		reply(c, cipher, gin.H{"success": false, "errorcode": "login failed"})
		return
	}
	c.Header("Set-Cookie", cookieName+"="+grant.Sysauth+"; Path=/; HttpOnly")
	reply(c, cipher, gin.H{"success": true, "data": gin.H{"stok": grant.Stok}})
}

func (s *Server) private(c *gin.Context, stok, endpoint string) {
	sysauth, _ := c.Cookie(cookieName)
	cipher, err := s.emu.Lookup(stok, sysauth)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "errorcode": "timeout"})
		return
	}
	form, err := s.emu.Open(cipher, c.PostForm("sign"), c.PostForm("data"))
	if err != nil {
		log.WithError(err).Warn("emulator request rejected")
		reply(c, cipher, gin.H{"success": false, "errorcode": "invalid request"})
		return
	}

	switch {
	case endpoint == "/admin/status?form=all" && form.Get("operation") == "read":
		reply(c, cipher, gin.H{"success": true, "data": s.emu.Status()})
	default:
		reply(c, cipher, gin.H{"success": false, "errorcode": "unsupported form"})
	}
}

// reply answers with {"data": <encrypted inner envelope>}
func reply(c *gin.Context, cipher *codec.Cipher, inner gin.H) {
	dat, err := json.Marshal(inner)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cipher.Encrypt(string(dat))})
}

// splitPath splits "/;stok=<token>/<route>" into its token and route
func splitPath(p string) (string, string, bool) {
	rest, ok := strings.CutPrefix(p, stokPrefix)
	if !ok {
		return "", "", false
	}
	i := strings.IndexByte(rest, '/')
	if i < 0 {
		return "", "", false
	}
	return rest[:i], rest[i:], true
}

func logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"path":    c.Request.URL.Path,
			"form":    c.Query("form"),
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("emulator request")
	}
}
