package codec

import (
	"io"

	"famtree/internal/domain"
)

// Importer reads a tree fragment from an encoded document
type Importer interface {
	Parse(r io.Reader) (*domain.TreeFragment, error)
	Format() string
}

// Exporter writes a tree fragment as an encoded document
type Exporter interface {
	Export(fragment *domain.TreeFragment, w io.Writer) error
	Format() string
}
