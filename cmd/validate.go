package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/firestorm/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply defaults and validate it without decoding anything.

Examples:
  firestorm validate -c /etc/firestorm/config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(configFile, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

func runValidate(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "VALID: min_layers=%d, %d filter instruction(s), sink=%s\n",
		cfg.Decoder.MinLayers,
		len(cfg.Pipeline.Filter),
		cfg.Pipeline.Sink.Type,
	)
	return nil
}
