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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/blacktop/tplink/internal/colors"
	"github.com/blacktop/tplink/pkg/session"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Bool("json", false, "Print the full status as JSON")
	viper.BindPFlag("status.json", statusCmd.Flags().Lookup("json"))
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List the router's wireless clients",
	Example: heredoc.Doc(`
		# List the wireless clients
		❯ tplink status
		# Dump the complete status document
		❯ tplink status --json`),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession()
		if err != nil {
			return err
		}
		ctx := context.Background()
		if err := login(ctx, sess); err != nil {
			return err
		}
		status, err := sess.StatusAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %v", err)
		}

		if viper.GetBool("status.json") {
			var out any
			if err := json.Unmarshal(status.Raw, &out); err != nil {
				return fmt.Errorf("failed to parse status: %v", err)
			}
			dat, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal status: %v", err)
			}
			fmt.Println(string(dat))
			return nil
		}

		colors.Heading().Printf("Wireless Clients (%d)\n", len(status.WirelessHosts))
		renderHosts(os.Stdout, status.WirelessHosts)
		return nil
	},
}

func renderHosts(w io.Writer, hosts []session.Host) {
	data := [][]string{}
	for _, h := range hosts {
		data = append(data, []string{h.Hostname, h.IP, h.MAC, h.WireType})
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Hostname", "IP", "MAC", "Band"})
	table.AppendBulk(data)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.Render() // Send output
}
