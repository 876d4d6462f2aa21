// Package converter turns office documents into PDFs with headless
// LibreOffice so the pipeline only ever sees PDF input.
package converter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LibreOffice runs soffice in headless mode. Each conversion gets a private
// user profile directory; soffice refuses concurrent runs sharing one.
type LibreOffice struct {
	Binary  string
	Timeout time.Duration
}

// New returns a converter with defaults.
func New() *LibreOffice {
	return &LibreOffice{Binary: "soffice", Timeout: 2 * time.Minute}
}

// Available reports whether the soffice binary can be found.
func (l *LibreOffice) Available() bool {
	_, err := exec.LookPath(l.Binary)
	return err == nil
}

// ToPDF converts the input file and returns the path of the produced PDF
// inside a fresh temp directory. The caller removes the directory of the
// returned file when done.
func (l *LibreOffice) ToPDF(ctx context.Context, inputPath string) (string, error) {
	outDir, err := os.MkdirTemp("", "convert-"+uuid.NewString()[:8]+"-*")
	if err != nil {
		return "", err
	}
	profileDir := filepath.Join(outDir, ".profile")

	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, l.Binary,
		"--headless", "--norestore",
		"-env:UserInstallation=file://"+profileDir,
		"--convert-to", "pdf",
		"--outdir", outDir,
		inputPath,
	)
	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		os.RemoveAll(outDir)
		return "", fmt.Errorf("libreoffice convert: %w: %s", err, strings.TrimSpace(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	pdfPath := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		os.RemoveAll(outDir)
		return "", fmt.Errorf("libreoffice produced no output for %s", inputPath)
	}

	log.Info().Str("input", inputPath).Dur("took", time.Since(start)).Msg("converted to pdf")
	return pdfPath, nil
}
