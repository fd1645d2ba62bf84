// Package gedcom implements a GEDCOM 5.5.1 encoder and decoder for FamTree.
//
// The package is pure: Export turns in-memory domain records into GEDCOM text
// and Parse turns GEDCOM text into parsed records plus diagnostics. Neither
// touches storage or the network, and both are safe for concurrent use.
//
// # Export
//
// Export emits a HEAD block with a submitter record, one INDI record per
// eligible person, the FAM records that still have an eligible member, the
// distinct SOUR records cited by eligible people and a closing TRLR. Living
// people are excluded unless ExportOptions.IncludeLiving is set. Lines are
// joined with CRLF.
//
// # Parse
//
// Parse is a single-pass line state machine. It understands INDI (NAME, SEX,
// BIRT, CHR, DEAT, BURI with DATE/PLAC) and FAM (HUSB, WIFE, CHIL, MARR) records
// and ignores everything else. It never fails: lines that do not fit the
// "LEVEL [XREF] TAG [VALUE]" grammar are skipped and reported as warnings.
//
// Parsed records carry the file-local cross-reference tokens. Resolving them to
// persistent identifiers is the caller's job.
//
// # Escaping
//
// Free-text values have newlines folded to spaces and every "@" doubled on
// export. Parse reverses the doubling for free-text values so that a value
// containing "@" survives a round trip.
//
// # Cross-references
//
// GenerateXref derives tokens such as "@I123@" from native identifiers by
// dropping non-alphanumeric characters and truncating to 20 characters. The
// mapping is deterministic and can collide; XrefCollisions reports collisions
// for a set of identifiers.
package gedcom
