package main

import (
	"os"

	"github.com/aretw0/glacier/internal/cli"
	"github.com/aretw0/glacier/internal/presentation/tui"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var serveCmd = &cobra.Command{
	Use:   "serve <script>",
	Short: "Serve a script over HTTP",
	Long:  `Initializes the script once and routes every HTTP request to it. Health and metrics live under /_glacier.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engOpts, err := engineOptions(cmd)
		if err != nil {
			return err
		}

		opts := cli.ServeOptions{
			ScriptPath: args[0],
			Addr:       engOpts.Config.HTTP.Addr,
		}
		if cmd.Flags().Changed("addr") {
			opts.Addr, _ = cmd.Flags().GetString("addr")
		}
		opts.CORS, _ = cmd.Flags().GetBool("cors")

		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet && term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner(os.Stdout, termenv.EnvColorProfile())
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.Serve(ctx, opts, engOpts)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on (overrides config)")
	serveCmd.Flags().Bool("cors", false, "Allow cross-origin requests")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
