// Package job defines the queued work unit exchanged between the HTTP
// server and the worker pool.
package job

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/local/scanprep/internal/config"
)

// Source kinds accepted by the service.
const (
	SourceLocal = "local"
	SourceHTTP  = "http"
	SourceS3    = "s3"
)

// Job is one unit of work on the queue. Source is a local path (uploads),
// an http(s) URL, or an s3:// URL; outputs of s3 inputs go back to S3.
type Job struct {
	ID         string           `json:"id"`
	Source     string           `json:"source"`
	FileName   string           `json:"file_name"`
	Run        config.RunConfig `json:"run"`
	Attempt    int              `json:"attempt"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
}

// SourceKind classifies the job source.
func (j Job) SourceKind() string {
	switch {
	case strings.HasPrefix(j.Source, "s3://"):
		return SourceS3
	case strings.HasPrefix(j.Source, "http://"), strings.HasPrefix(j.Source, "https://"):
		return SourceHTTP
	default:
		return SourceLocal
	}
}

// Encode serializes the job for the queue.
func (j Job) Encode() ([]byte, error) { return json.Marshal(j) }

// Decode parses a queue payload.
func Decode(payload []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(payload, &j); err != nil {
		return Job{}, fmt.Errorf("decode job payload: %w", err)
	}
	if j.ID == "" {
		return Job{}, fmt.Errorf("job payload missing id")
	}
	return j, nil
}
