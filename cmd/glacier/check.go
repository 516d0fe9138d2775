package main

import (
	"os"

	"github.com/aretw0/glacier/internal/cli"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <script>",
	Short: "Initialize a script and report fatal errors",
	Long:  `Runs the initialization phase only. Exits non-zero when the script fails to compile, throws, or leaves failing tasks.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engOpts, err := engineOptions(cmd)
		if err != nil {
			return err
		}
		return cli.Check(cmd.Context(), args[0], engOpts, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
