// Command scanprep prepares scanned PDFs for archiving: it drops blank
// pages and splits batches at QR separator sheets. It runs either as a
// one-shot CLI (process) or as a queue-backed service (serve).
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/local/scanprep/internal/config"
	"github.com/local/scanprep/internal/logger"
)

func main() {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "scanprep",
		Short:         "Blank page removal and separator-sheet splitting for scanned PDFs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	viper.SetEnvPrefix("SCANPREP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	root.AddCommand(newProcessCmd(), newServeCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// initLogging configures the global logger from the environment. The CLI
// defaults to console-only output; serve adds file rotation and Axiom.
func initLogging(cfg config.Config, consoleOnly bool) error {
	opts := logger.Options{
		Level:      cfg.Logging.Level,
		Pretty:     cfg.Logging.Pretty,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,

		SendToAxiom:  cfg.Axiom.Send,
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}
	if consoleOnly {
		opts.File = ""
		opts.SendToAxiom = false
	}
	return logger.Init(opts)
}
