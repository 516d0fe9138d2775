package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/glacier"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of glacier",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("glacier version %s\n", strings.TrimSpace(glacier.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
