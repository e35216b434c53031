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

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/tplink/internal/config"
	"github.com/blacktop/tplink/internal/emulator"
	"github.com/caarlos0/ctrlc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(emulateCmd)

	emulateCmd.Flags().String("host", emulator.DefaultHost, "Listen host")
	emulateCmd.Flags().IntP("port", "P", emulator.DefaultPort, "Listen port")
	emulateCmd.Flags().String("admin-username", emulator.DefaultUsername, "Username the emulated router hashes into its digest")
	emulateCmd.Flags().String("admin-password", "", "Password the emulated router accepts")
	emulateCmd.Flags().Int("key-bits", emulator.DefaultKeyBits, "RSA key size")
	viper.BindPFlag("emulator.host", emulateCmd.Flags().Lookup("host"))
	viper.BindPFlag("emulator.port", emulateCmd.Flags().Lookup("port"))
	viper.BindPFlag("emulator.username", emulateCmd.Flags().Lookup("admin-username"))
	viper.BindPFlag("emulator.password", emulateCmd.Flags().Lookup("admin-password"))
	viper.BindPFlag("emulator.key-bits", emulateCmd.Flags().Lookup("key-bits"))
}

// emulateCmd represents the emulate command
var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Serve the router login API locally",
	Example: heredoc.Doc(`
		# Serve the emulated router on 127.0.0.1:8080
		❯ tplink emulate --admin-password hunter2
		# Talk to it from another shell
		❯ tplink status --url http://127.0.0.1:8080/cgi-bin --password hunter2`),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if len(conf.Emulator.Password) == 0 {
			if conf.Emulator.Password, err = askPassword("Choose the emulated router password:"); err != nil {
				return err
			}
		}

		srv, err := emulator.NewServer(conf.EmulatorConfig(Verbose))
		if err != nil {
			return fmt.Errorf("failed to create emulator: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := ctrlc.Default.Run(ctx, srv.Start); err != nil {
			if errors.As(err, &ctrlc.ErrorCtrlC{}) {
				log.Warn("Stopping emulator...")
				return srv.Stop()
			}
			return fmt.Errorf("failed to run emulator: %v", err)
		}
		return nil
	},
}
