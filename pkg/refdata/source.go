package refdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Source supplies the raw bytes of a dataset.
type Source interface {
	Name() string
	// Remote sources propagate failures of the core datasets instead of
	// degrading per dataset.
	Remote() bool
	Open(ctx context.Context, d Dataset) ([]byte, error)
}

// LocalSource reads datasets from fixed file names under Dir. It is the
// development source.
type LocalSource struct {
	Dir string
}

func (s LocalSource) Name() string { return "local" }
func (s LocalSource) Remote() bool { return false }

func (s LocalSource) Open(_ context.Context, d Dataset) ([]byte, error) {
	name := d.FileName()
	if name == "" {
		return nil, fmt.Errorf("unknown dataset %q", d)
	}
	return os.ReadFile(filepath.Join(s.Dir, name))
}

// ObjectReader is the part of the object store the blob source needs.
type ObjectReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// BlobSource reads the same file names as object keys.
type BlobSource struct {
	Store ObjectReader
}

func (s BlobSource) Name() string { return "blob" }
func (s BlobSource) Remote() bool { return true }

func (s BlobSource) Open(ctx context.Context, d Dataset) ([]byte, error) {
	name := d.FileName()
	if name == "" {
		return nil, fmt.Errorf("unknown dataset %q", d)
	}
	if s.Store == nil {
		return nil, fmt.Errorf("blob source has no store configured")
	}
	return s.Store.Get(ctx, name)
}
