package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var ErrInvalidKey = errors.New("invalid artifact key")

// ArtifactStore persists generated files (visitor exports) and returns
// where they can be fetched from.
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// ExportKey is the object key for a webinar export: exports/{fileName}.csv.
func ExportKey(fileName string) (string, error) {
	name := path.Base(strings.TrimSpace(fileName))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", ErrInvalidKey
	}
	return path.Join("exports", name+".csv"), nil
}
