package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/scanprep/internal/job"
)

var httpClient = &http.Client{Timeout: 5 * time.Minute}

// errTransientInput marks input fetch failures that may clear up on their
// own (upstream 5xx, network errors, S3 unavailability). Jobs failing with
// it are requeued with a delay instead of going straight to the DLQ.
var errTransientInput = errors.New("transient input failure")

func markTransient(err error) error {
	return fmt.Errorf("%w: %w", errTransientInput, err)
}

// resolveInput materializes the job source as a local file. The cleanup
// removes any temp file this call created; uploaded local files are left in
// place for the server's retention policy.
func (p *Pool) resolveInput(ctx context.Context, j job.Job) (string, func(), error) {
	switch j.SourceKind() {
	case job.SourceLocal:
		if _, err := os.Stat(j.Source); err != nil {
			return "", nil, fmt.Errorf("input file missing: %w", err)
		}
		return j.Source, func() {}, nil

	case job.SourceHTTP:
		path, err := downloadHTTPToTemp(ctx, j.Source, p.Cfg.Server.MaxUploadMB)
		if err != nil {
			return "", nil, err
		}
		return path, func() { os.Remove(path) }, nil

	case job.SourceS3:
		if p.Storage == nil {
			return "", nil, fmt.Errorf("s3 source given but no bucket configured")
		}
		path, err := p.Storage.DownloadToTemp(ctx, j.Source)
		if err != nil {
			// The object may simply not be replicated yet.
			return "", nil, markTransient(err)
		}
		return path, func() { os.Remove(path) }, nil
	}
	return "", nil, fmt.Errorf("unknown source kind for %q", j.Source)
}

// downloadHTTPToTemp fetches a URL into a temp file, enforcing the upload
// size limit. Connection errors and 5xx responses are transient; client
// errors and oversized bodies are permanent.
func downloadHTTPToTemp(ctx context.Context, url string, maxMB int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", markTransient(fmt.Errorf("fetch %s: %w", url, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ferr := fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError {
			return "", markTransient(ferr)
		}
		return "", ferr
	}

	f, err := os.CreateTemp("", "httpin-*.pdf")
	if err != nil {
		return "", err
	}
	defer f.Close()

	limit := maxMB * 1024 * 1024
	n, err := io.Copy(f, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		os.Remove(f.Name())
		return "", markTransient(fmt.Errorf("download %s: %w", url, err))
	}
	if n > limit {
		os.Remove(f.Name())
		return "", fmt.Errorf("download %s: exceeds %d MB limit", url, maxMB)
	}

	log.Debug().Str("url", url).Int64("bytes", n).Msg("downloaded input over http")
	return f.Name(), nil
}
