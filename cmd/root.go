// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "firestorm",
	Short: "Firestorm - table-driven packet decode engine",
	Long: `Firestorm decodes captured packets through a registry of protocol decoders.
Each packet is walked from its link type down to the transport layer, recording one
decode control block per layer, and flow trackers observe the layers as they are recorded.

Features:
  - Namespaced protocol registry, frozen before decoding starts
  - Per-packet layer arena sized from the registered protocols
  - IPv4 with fragments, AH, tunnels and ICMP error payloads
  - Fragment and TCP connection tracking
  - Summaries to the console or Kafka`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults apply when empty)")

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(protocolsCmd)
	rootCmd.AddCommand(validateCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
