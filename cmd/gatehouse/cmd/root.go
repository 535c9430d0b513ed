package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "gatehouse",
	Short: "Gatehouse is a forward-auth authentication gateway",
	Long: `An authentication gateway for reverse proxies: interactive login backed
by bcrypt credentials, signed session cookies, static API tokens, and a
forward-auth verification endpoint the proxy consults per request.
Complete documentation is available at https://github.com/jmcleod/gatehouse`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
