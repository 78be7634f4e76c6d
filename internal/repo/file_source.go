package repo

import (
	"context"
	"os"

	"github.com/engagestack/engagement-intel/internal/models"
)

// FileSource loads the dashboard payload from a local JSON file. It is used
// when no backend URL is configured.
type FileSource struct {
	path string
}

// NewFileSource returns a source reading path on every fetch.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name identifies the file in snapshots and logs.
func (s *FileSource) Name() string { return "file:" + s.path }

// Path returns the file being read.
func (s *FileSource) Path() string { return s.path }

// FetchPayload reads and decodes the file. Failures are *models.DataFetchError.
func (s *FileSource) FetchPayload(ctx context.Context) (Payload, error) {
	const op = "read sample data"
	if err := ctx.Err(); err != nil {
		return Payload{}, &models.DataFetchError{Op: op, Err: err}
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Payload{}, &models.DataFetchError{Op: op, Err: err}
	}
	p, err := DecodePayload(data)
	if err != nil {
		return Payload{}, &models.DataFetchError{Op: op, Err: err}
	}
	return p, nil
}
