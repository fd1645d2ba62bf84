// Package domain defines the core domain types for the FamTree genealogy service.
//
// This package contains the entities and value objects shared by the GEDCOM
// codec, the storage layer and the HTTP API.
//
// # Core Types
//
// Person represents an individual with names, sex, life events (birth,
// christening, death, burial), a living flag and attached source citations.
//
// Family links up to two parents and an ordered list of children by person ID.
// Families never embed persons.
//
// SourceCitation is a piece of evidence (a record, a URL, a transcription)
// attached to one or more persons.
//
// TreeFragment is a partial tree used for bulk import and export.
//
// # Design Principles
//
// - No database or external dependencies
// - Records reference each other by identifier only
// - Empty strings stand in for absent optional values
package domain
