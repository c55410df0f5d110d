package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is the build version, overridable at link time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "latchkey",
	Short: "Latchkey is a device-bound re-authentication service",
	Long: `Latchkey exchanges a one-time temporary credential for a hardware-protected,
biometric-gated session, so a device re-authenticates without a password.
Complete documentation is available at https://github.com/jtmarsh/latchkey`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
