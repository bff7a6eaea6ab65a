package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Resource mapping API server",
	Long: `Strata serves JSON:API documents over registered resource types:
schema descriptors map domain records onto wire resources, with include
resolution, deferred relationship writes, and reversible self-links.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default strata.yaml in the working directory)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
