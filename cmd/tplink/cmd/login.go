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
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/tplink/internal/colors"
	"github.com/blacktop/tplink/internal/config"
	"github.com/blacktop/tplink/pkg/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().Bool("show-token", false, "Print the session token and cookie")
	loginCmd.Flags().Bool("forget", false, "Remove the credentials stored in the vault")
	viper.BindPFlag("login.show-token", loginCmd.Flags().Lookup("show-token"))
	viper.BindPFlag("login.forget", loginCmd.Flags().Lookup("forget"))
}

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the router and print the session state",
	Example: heredoc.Doc(`
		# Log in using the password stored in the vault (prompts and saves it when missing)
		❯ tplink login
		# Log in to a router at a custom address and print the full token and cookie
		❯ tplink login --url http://192.168.0.1/cgi-bin --show-token
		# Remove the stored credentials
		❯ tplink login --forget`),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("login.forget") {
			conf, err := config.LoadConfig()
			if err != nil {
				return err
			}
			v, err := openVault(conf)
			if err != nil {
				return err
			}
			if err := v.Remove(); err != nil {
				return err
			}
			log.Info("Removed stored credentials")
			return nil
		}

		sess, err := newSession()
		if err != nil {
			return err
		}
		if err := login(context.Background(), sess); err != nil {
			return err
		}

		label := colors.Label().SprintFunc()
		secret := colors.Secret().SprintFunc()
		state := sess.State()
		fmt.Printf("%s %s\n", label("Router:"), sess.BaseURL())
		fmt.Printf("%s %s\n", label("State: "), colors.State(state.String(), state == session.Authenticated))
		if viper.GetBool("login.show-token") {
			fmt.Printf("%s %s\n", label("stok:  "), secret(sess.Token()))
			fmt.Printf("%s %s\n", label("sysauth:"), secret(sess.Cookie()))
		} else {
			fmt.Printf("%s %s\n", label("stok:  "), secret(redact(sess.Token())))
		}
		return nil
	},
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
