package flat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.VectorIndexFactory = (*Factory)(nil)

// Factory opens flat indexes under one directory.
type Factory struct {
	dir string
}

// NewFactory creates a factory storing index files in dir.
func NewFactory(dir string) *Factory {
	return &Factory{dir: dir}
}

// Open returns the index of one kind and generation. Nothing is read
// until Load is called.
func (f *Factory) Open(_ context.Context, kind domain.DocumentKind, generation int64, dimensions int) (driven.VectorIndex, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: document kind %q", domain.ErrInvalidInput, kind)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions %d", domain.ErrInvalidInput, dimensions)
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	return NewIndex(f.Path(kind, generation), dimensions), nil
}

// Path returns the file of one kind and generation.
func (f *Factory) Path(kind domain.DocumentKind, generation int64) string {
	return filepath.Join(f.dir, fmt.Sprintf("index-%s-%d.vec", kind, generation))
}
