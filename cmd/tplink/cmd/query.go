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
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringP("body", "b", "operation=read", "Form body to send")
	viper.BindPFlag("query.body", queryCmd.Flags().Lookup("body"))
}

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <path>",
	Short: "Send an authenticated request and print the decrypted JSON",
	Example: heredoc.Doc(`
		# Read the full status document
		❯ tplink query '/admin/status?form=all'
		# Send a custom form body
		❯ tplink query '/admin/status?form=all' --body 'operation=read'`),
	Args:          cobra.ExactArgs(1),
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
		data, err := sess.Query(ctx, args[0], viper.GetString("query.body"))
		if err != nil {
			return fmt.Errorf("failed to query %s: %v", args[0], err)
		}

		var out bytes.Buffer
		if err := json.Indent(&out, data, "", "  "); err != nil {
			return fmt.Errorf("failed to format response: %v", err)
		}
		fmt.Println(out.String())
		return nil
	},
}
