// Package vault stores router credentials in the OS keychain (or an encrypted file)
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

const (
	// ServiceName is the keychain service the credentials are filed under
	ServiceName = "tplink-auth.service"
	// ItemName is the key of the credentials item
	ItemName = "tplink-vault"
	label    = "tplink"
)

// ErrNotFound is returned when the vault holds no credentials
var ErrNotFound = errors.New("vault: no credentials stored")

// Credentials are the stored router login
type Credentials struct {
	URL      string `json:"url,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Config is the vault config
type Config struct {
	Dir      string
	Password string
	// Prompt asks for the file vault password when Password is empty
	Prompt func(msg string) (string, error)
	// Backends restricts the keyring backends (all available when empty)
	Backends []keyring.BackendType
}

// Vault is an open credentials vault
type Vault struct {
	ring keyring.Keyring
}

// Open opens (or creates) the credentials vault
func Open(conf *Config) (*Vault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:                    ServiceName,
		AllowedBackends:                conf.Backends,
		KeychainSynchronizable:         false,
		KeychainAccessibleWhenUnlocked: true,
		KeychainTrustApplication:       true,
		FileDir:                        conf.Dir,
		FilePasswordFunc: func(string) (string, error) {
			if len(conf.Password) > 0 {
				return conf.Password, nil
			}
			if conf.Prompt == nil {
				return "", fmt.Errorf("vault: password required for %s", conf.Dir)
			}
			msg := "Enter a password to decrypt your credentials vault: " + filepath.Join(conf.Dir, ItemName)
			if _, err := os.Stat(filepath.Join(conf.Dir, ItemName)); errors.Is(err, os.ErrNotExist) {
				msg = "Enter a password to encrypt your credentials to vault: " + filepath.Join(conf.Dir, ItemName)
			}
			pass, err := conf.Prompt(msg)
			if err != nil {
				return "", err
			}
			conf.Password = pass
			return pass, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %v", err)
	}
	return &Vault{ring: ring}, nil
}

// Get returns the stored credentials
func (v *Vault) Get() (*Credentials, error) {
	item, err := v.ring.Get(ItemName)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credentials from vault: %v", err)
	}
	var creds Credentials
	if err := json.Unmarshal(item.Data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vault credentials (removing them with 'tplink login --forget' might fix it): %v", err)
	}
	return &creds, nil
}

// Set stores the credentials
func (v *Vault) Set(creds *Credentials) error {
	dat, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal vault credentials: %v", err)
	}
	return v.ring.Set(keyring.Item{
		Key:         ItemName,
		Data:        dat,
		Label:       label,
		Description: "router password",
	})
}

// Remove deletes the stored credentials
func (v *Vault) Remove() error {
	if err := v.ring.Remove(ItemName); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to remove vault credentials: %v", err)
	}
	return nil
}
