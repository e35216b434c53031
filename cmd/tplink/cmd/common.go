/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/apex/log"
	"github.com/blacktop/tplink/internal/config"
	"github.com/blacktop/tplink/internal/vault"
	"github.com/blacktop/tplink/pkg/session"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

func askPassword(msg string) (string, error) {
	var password string
	prompt := &survey.Password{
		Message: msg,
	}
	if err := survey.AskOne(prompt, &password); err != nil {
		if err == terminal.InterruptErr {
			log.Warn("Exiting...")
			os.Exit(0)
		}
		return "", err
	}
	return password, nil
}

func openVault(conf *config.Config) (*vault.Vault, error) {
	return vault.Open(&vault.Config{
		Dir:      conf.Vault.Dir,
		Password: conf.Vault.Password,
		Prompt:   askPassword,
	})
}

// credentials fills in the router password from the vault, prompting (and saving) when it is missing
func credentials(conf *config.Config) error {
	if len(conf.Router.Password) > 0 {
		return nil
	}

	v, err := openVault(conf)
	if err != nil {
		return err
	}
	creds, err := v.Get()
	if err == nil && len(creds.Password) > 0 && (creds.URL == "" || creds.URL == conf.Router.URL) {
		conf.Router.Password = creds.Password
		return nil
	}
	if err != nil && !errors.Is(err, vault.ErrNotFound) {
		log.Errorf("failed to get credentials from vault: %v", err)
	}

	password, err := askPassword(fmt.Sprintf("Please type the %s password for %s:", conf.Router.Username, conf.Router.URL))
	if err != nil {
		return err
	}
	conf.Router.Password = password

	if err := v.Set(&vault.Credentials{
		URL:      conf.Router.URL,
		Username: conf.Router.Username,
		Password: password,
	}); err != nil {
		log.Errorf("failed to save credentials to vault: %v", err)
	}
	return nil
}

// newSession loads the config and credentials and returns an unauthenticated session
func newSession() (*session.Session, error) {
	conf, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := credentials(conf); err != nil {
		return nil, err
	}
	return session.New(conf.Session())
}

// login runs the router handshake behind a spinner
func login(ctx context.Context, sess *session.Session) error {
	s := spinner.New(spinner.CharSets[38], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Prefix = color.BlueString("   • Logging in to %s... ", sess.BaseURL())
	s.Start()
	err := sess.Login(ctx)
	s.Stop()
	if err != nil {
		return fmt.Errorf("failed to login to %s: %v", sess.BaseURL(), err)
	}
	return nil
}
