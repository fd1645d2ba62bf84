// Package repository defines the data access interface for the family tree.
//
// The Repository interface covers people, families, source citations and a
// small key/value metadata store. The sqlite subpackage implements it.
//
// # People and Families
//
// A family references its parents and children by person ID. Children keep
// their insertion order, and a person's citations keep their attachment
// order, so that exports are stable across runs.
//
// # Errors
//
// Get operations return (nil, nil) for missing records. Constraint violations
// such as a duplicate ID, or a family that references an unknown person, are
// returned as wrapped errors.
package repository
