package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/firestorm/internal/config"
	"firestige.xyz/firestorm/internal/core/decoder"
	"firestige.xyz/firestorm/internal/engine"
)

var protocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "List registered decoders, protocols and namespace bindings",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile)
		if err != nil {
			exitWithError("failed to load config", err)
		}
		eng, err := engine.New(cfg)
		if err != nil {
			exitWithError("failed to build registry", err)
		}
		runProtocols(eng.Registry, os.Stdout)
	},
}

func runProtocols(reg *decoder.Registry, out io.Writer) {
	fmt.Fprintf(out, "Decoders (%d):\n", len(reg.Decoders()))
	for _, d := range reg.Decoders() {
		fmt.Fprintf(out, "  %s\n", d.Label)
		for _, p := range d.Protocols() {
			tracked := ""
			if p.Tracked() {
				tracked = " [tracked]"
			}
			fmt.Fprintf(out, "    - %-10s dcb=%d%s\n", p.Label, p.DCBSize, tracked)
		}
	}

	fmt.Fprintf(out, "Arena: %d layer(s) x %d bytes\n", reg.MinLayers(), reg.MaxDCBSize())

	fmt.Fprintln(out, "Namespaces:")
	for _, ns := range reg.Namespaces() {
		for _, e := range reg.Entries(ns) {
			fmt.Fprintf(out, "  %-8s %-6d (0x%04x) -> %s\n", ns, e.ID, uint32(e.ID), e.Decoder.Label)
		}
	}
}
