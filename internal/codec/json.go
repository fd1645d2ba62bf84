package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"famtree/internal/domain"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse imports a tree from JSON
func (c *JSONCodec) Parse(r io.Reader) (*domain.TreeFragment, error) {
	fragment := domain.NewTreeFragment()
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(fragment); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if fragment.People == nil {
		fragment.People = make([]domain.Person, 0)
	}
	if fragment.Families == nil {
		fragment.Families = make([]domain.Family, 0)
	}

	return fragment, nil
}

// Export exports a tree to JSON
func (c *JSONCodec) Export(fragment *domain.TreeFragment, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(fragment); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
