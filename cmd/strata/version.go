package main

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		bold := color.New(color.Bold)
		bold.Printf("strata %s", version)
		color.New(color.FgHiBlack).Printf(" (%s, %s/%s)\n",
			runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
