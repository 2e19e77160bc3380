// Package filestore keeps the per-purpose artifact areas (uploads, converted
// downloads, compressed and split results, editor files) behind one Store
// contract with a local-disk and a MinIO implementation.
package filestore

import (
	"context"
	"errors"
	"io"
	"time"
)

// Area is one purpose-specific artifact directory.
type Area string

const (
	Uploads    Area = "uploads"
	Downloads  Area = "downloads"
	Compressed Area = "compressed"
	Split      Area = "split"
	Edit       Area = "edit"
)

// Areas lists every area in a stable order.
var Areas = []Area{Uploads, Downloads, Compressed, Split, Edit}

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrExists      = errors.New("artifact already exists")
	ErrInvalidName = errors.New("invalid artifact name")
)

// Info describes a stored artifact.
type Info struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store persists artifacts by area and name. Names are unique per artifact;
// Local refuses to replace one with ErrExists. Implementations are safe for
// concurrent use.
type Store interface {
	Save(ctx context.Context, area Area, name string, r io.Reader) (int64, error)
	Open(ctx context.Context, area Area, name string) (io.ReadCloser, Info, error)
	Remove(ctx context.Context, area Area, name string) error
	Exists(ctx context.Context, area Area, name string) (bool, error)
	List(ctx context.Context, area Area) ([]Info, error)
}

func validArea(a Area) bool {
	for _, x := range Areas {
		if x == a {
			return true
		}
	}
	return false
}
