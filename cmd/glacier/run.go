package main

import (
	"os"

	"github.com/aretw0/glacier/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Send a single request to a script",
	Long:  `Initializes the script, sends it one request and prints the committed response.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engOpts, err := engineOptions(cmd)
		if err != nil {
			return err
		}

		opts := cli.RunOptions{ScriptPath: args[0]}
		opts.Method, _ = cmd.Flags().GetString("method")
		opts.URL, _ = cmd.Flags().GetString("url")
		opts.Headers, _ = cmd.Flags().GetStringArray("header")
		opts.Body, _ = cmd.Flags().GetString("body")
		opts.BodyFile, _ = cmd.Flags().GetString("body-file")
		opts.Repeat, _ = cmd.Flags().GetInt("repeat")
		opts.Verbose, _ = cmd.Flags().GetBool("verbose")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.Run(ctx, opts, engOpts, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("method", "X", "GET", "Request method")
	runCmd.Flags().StringP("url", "u", "http://localhost/", "Request URL")
	runCmd.Flags().StringArrayP("header", "H", nil, "Request header as \"Name: value\" (repeatable)")
	runCmd.Flags().StringP("body", "d", "", "Request body")
	runCmd.Flags().String("body-file", "", "Read the request body from a file")
	runCmd.Flags().IntP("repeat", "n", 1, "Send the request this many times")
	runCmd.Flags().BoolP("verbose", "v", false, "Print scheduler statistics")
}
