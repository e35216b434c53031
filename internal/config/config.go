// Package config is used to load the configuration file
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/blacktop/tplink/internal/emulator"
	"github.com/blacktop/tplink/pkg/session"
	"github.com/spf13/viper"
)

type router struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Proxy    string `mapstructure:"proxy"`
	Insecure bool   `mapstructure:"insecure"`
}

type emulatorConf struct {
	Host     string          `mapstructure:"host"`
	Port     int             `mapstructure:"port"`
	Username string          `mapstructure:"username"`
	Password string          `mapstructure:"password"`
	KeyBits  int             `mapstructure:"key-bits"`
	Sessions int             `mapstructure:"sessions"`
	Hosts    []emulator.Host `mapstructure:"hosts"`
}

type vault struct {
	Dir      string `mapstructure:"dir"`
	Password string `mapstructure:"password"`
}

// Config is the configuration struct
type Config struct {
	Router   router       `mapstructure:"router"`
	Emulator emulatorConf `mapstructure:"emulator"`
	Vault    vault        `mapstructure:"vault"`
}

// Dir returns the default configuration directory
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: failed to get user home directory: %v", err)
	}
	return filepath.Join(home, ".config", "tplink"), nil
}

func (c *Config) verify() error {
	if c.Router.URL == "" {
		c.Router.URL = session.DefaultBaseURL
	}
	u, err := url.Parse(c.Router.URL)
	if err != nil {
		return fmt.Errorf("config: invalid router url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: router url must be http or https: %s", c.Router.URL)
	}
	if c.Router.Username == "" {
		c.Router.Username = session.DefaultUsername
	}

	if c.Emulator.Host == "" {
		c.Emulator.Host = emulator.DefaultHost
	}
	if c.Emulator.Username == "" {
		c.Emulator.Username = emulator.DefaultUsername
	}
	if c.Emulator.Port == 0 {
		c.Emulator.Port = emulator.DefaultPort
	} else if c.Emulator.Port < 0 || c.Emulator.Port > 65535 {
		return fmt.Errorf("config: invalid emulator port %d", c.Emulator.Port)
	}
	if c.Emulator.KeyBits == 0 {
		c.Emulator.KeyBits = emulator.DefaultKeyBits
	} else if c.Emulator.KeyBits < emulator.DefaultKeyBits || c.Emulator.KeyBits%2 != 0 {
		// signature chunks need at least a 64 byte block
		return fmt.Errorf("config: emulator key-bits must be an even number >= %d", emulator.DefaultKeyBits)
	}

	if c.Vault.Dir == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		c.Vault.Dir = dir
	}

	return nil
}

// Session returns the router session config
func (c *Config) Session() *session.Config {
	return &session.Config{
		BaseURL:  c.Router.URL,
		Username: c.Router.Username,
		Password: c.Router.Password,
		Proxy:    c.Router.Proxy,
		Insecure: c.Router.Insecure,
	}
}

// EmulatorConfig returns the emulator config
func (c *Config) EmulatorConfig(debug bool) *emulator.Config {
	return &emulator.Config{
		Host:     c.Emulator.Host,
		Port:     c.Emulator.Port,
		Username: c.Emulator.Username,
		Password: c.Emulator.Password,
		KeyBits:  c.Emulator.KeyBits,
		Sessions: c.Emulator.Sessions,
		Hosts:    c.Emulator.Hosts,
		Debug:    debug,
	}
}

// SetDefaults registers every key so that TPLINK_* environment variables are seen by Unmarshal
func SetDefaults(v *viper.Viper) {
	v.SetDefault("router.url", session.DefaultBaseURL)
	v.SetDefault("router.username", session.DefaultUsername)
	v.SetDefault("router.password", "")
	v.SetDefault("router.proxy", "")
	v.SetDefault("router.insecure", false)
	v.SetDefault("emulator.host", emulator.DefaultHost)
	v.SetDefault("emulator.port", emulator.DefaultPort)
	v.SetDefault("emulator.username", emulator.DefaultUsername)
	v.SetDefault("emulator.password", "")
	v.SetDefault("emulator.key-bits", emulator.DefaultKeyBits)
	v.SetDefault("emulator.sessions", emulator.DefaultSessions)
	v.SetDefault("vault.dir", "")
	v.SetDefault("vault.password", "")
}

// Load loads the configuration from v
func Load(v *viper.Viper) (*Config, error) {
	var c *Config

	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}
	if c == nil {
		c = &Config{}
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return c, nil
}

// LoadConfig loads the configuration file
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}
