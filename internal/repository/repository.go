package repository

import (
	"context"

	"famtree/internal/domain"
)

// Metadata keys written by the service
const (
	MetaLastImport = "last_import"
	MetaLastExport = "last_export"
)

// Repository defines the interface for family tree data access.
// Get operations return (nil, nil) when the record does not exist.
type Repository interface {
	// People
	CreatePerson(ctx context.Context, person *domain.Person) error
	UpsertPerson(ctx context.Context, person *domain.Person) error
	GetPerson(ctx context.Context, id string) (*domain.Person, error)
	ListPeople(ctx context.Context, includeLiving bool) ([]domain.Person, error)
	DeletePerson(ctx context.Context, id string) error

	// Families
	CreateFamily(ctx context.Context, family *domain.Family) error
	UpsertFamily(ctx context.Context, family *domain.Family) error
	GetFamily(ctx context.Context, id string) (*domain.Family, error)
	ListFamilies(ctx context.Context) ([]domain.Family, error)
	DeleteFamily(ctx context.Context, id string) error

	// Sources
	UpsertSource(ctx context.Context, source *domain.SourceCitation) error
	GetSource(ctx context.Context, id string) (*domain.SourceCitation, error)
	AttachSource(ctx context.Context, personID, sourceID string) error

	// Bulk operations
	ImportTree(ctx context.Context, fragment *domain.TreeFragment) error
	ClearTree(ctx context.Context) error

	// Metadata
	SetMetadata(ctx context.Context, key, value string) error
	GetMetadata(ctx context.Context, key string) (string, error)

	// Close releases resources
	Close() error
}
