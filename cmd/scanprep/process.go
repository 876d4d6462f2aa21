package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/local/scanprep/internal/config"
	"github.com/local/scanprep/internal/logger"
	"github.com/local/scanprep/internal/pdfout"
	"github.com/local/scanprep/internal/pipeline"
	"github.com/local/scanprep/internal/render"
)

func newProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process INPUT [OUTPUT_DIR]",
		Short: "Process one PDF and write the resulting documents",
		Long: `Process renders every page of INPUT, drops blank pages, splits the
batch at separator sheets, and writes each resulting document to
OUTPUT_DIR as {i}-{basename}.

INPUT may be - to read the PDF from stdin. OUTPUT_DIR may be - to write
to stdout, which requires that the run produces at most one document.
OUTPUT_DIR defaults to the current directory.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runProcess,
	}

	flags := cmd.Flags()
	flags.Bool("blank-removal", true, "drop blank pages")
	flags.Bool("no-blank-removal", false, "keep blank pages")
	flags.Bool("page-separation", true, "split documents at separator sheets")
	flags.Bool("no-page-separation", false, "do not split at separator sheets")
	flags.Float64("blank-threshold", config.DefaultBlankThreshold, "ink ratio below which a page is blank")
	flags.Float64("no-text-blank-threshold", config.DefaultNoTextBlankThreshold, "blank threshold for pages without a text layer")
	flags.Int("dpi", render.DefaultDPI, "render resolution")
	flags.String("marker-payload", "", "separator sheet payload (defaults to the standard payload)")
	flags.Int("workers", 0, "classification workers (0 = number of CPUs)")

	cmd.MarkFlagsMutuallyExclusive("blank-removal", "no-blank-removal")
	cmd.MarkFlagsMutuallyExclusive("page-separation", "no-page-separation")

	_ = viper.BindPFlags(flags)
	return cmd
}

// applyNoFlags applies the paired inverse toggles, which beat the positive
// flags and the environment.
func applyNoFlags(flags *pflag.FlagSet, run *config.RunConfig) {
	if off, _ := flags.GetBool("no-blank-removal"); off {
		run.BlankRemoval = false
	}
	if off, _ := flags.GetBool("no-page-separation"); off {
		run.PageSeparation = false
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	if err := initLogging(cfg, true); err != nil {
		return err
	}
	defer logger.Close()

	// Flag beats SCANPREP_* environment beats default, resolved by viper.
	run := config.DefaultRun()
	run.BlankRemoval = viper.GetBool("blank-removal")
	run.PageSeparation = viper.GetBool("page-separation")
	run.BlankThreshold = viper.GetFloat64("blank-threshold")
	run.NoTextBlankThreshold = viper.GetFloat64("no-text-blank-threshold")
	run.RenderDPI = viper.GetInt("dpi")
	run.Workers = viper.GetInt("workers")
	if v := viper.GetString("marker-payload"); v != "" {
		run.MarkerPayload = v
	}
	applyNoFlags(cmd.Flags(), &run)
	if err := run.Validate(); err != nil {
		return err
	}

	input := args[0]
	outDir := "."
	if len(args) == 2 {
		outDir = args[1]
	}

	srcPath, base, cleanup, err := resolveCLIInput(input)
	if err != nil {
		return err
	}
	defer cleanup()

	r := render.NewFitz(srcPath, run.RenderDPI)
	plan, err := pipeline.Default(run).Process(cmd.Context(), r, run)
	if err != nil {
		return fmt.Errorf("classify %s: %w", input, err)
	}

	writer := pdfout.New(srcPath)

	if outDir == "-" {
		switch len(plan.Documents) {
		case 0:
			log.Warn().Msg("all pages dropped, no output written")
			return nil
		case 1:
			return writer.WriteTo(plan.Documents[0], os.Stdout)
		default:
			return fmt.Errorf("stdout output requires a single document, got %d (use an output directory)", len(plan.Documents))
		}
	}

	paths, err := writer.EmitPlan(plan, outDir, base)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		log.Warn().Msg("all pages dropped, no output written")
		return nil
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

// resolveCLIInput maps the INPUT argument to a readable PDF file. Stdin is
// spooled to a temp file because rendering needs random access.
func resolveCLIInput(input string) (path, base string, cleanup func(), err error) {
	if input != "-" {
		if _, err := os.Stat(input); err != nil {
			return "", "", nil, err
		}
		return input, filepath.Base(input), func() {}, nil
	}

	f, err := os.CreateTemp("", "stdin-*.pdf")
	if err != nil {
		return "", "", nil, err
	}
	if _, err := io.Copy(f, os.Stdin); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", "", nil, fmt.Errorf("read stdin: %w", err)
	}
	f.Close()
	return f.Name(), "stdin.pdf", func() { os.Remove(f.Name()) }, nil
}
