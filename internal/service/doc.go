// Package service implements the family tree business logic.
//
// TreeService sits between the HTTP handlers, the CLI and the inbox watcher on
// one side and the repository on the other. It validates people, families and
// citations, and runs imports and exports through the codec and gedcom
// packages.
//
// # GEDCOM Import
//
// ImportGEDCOM never aborts on bad input. Parser warnings are forwarded, every
// imported person gets a fresh ID, and family references are resolved through
// the xref table built while inserting people. Items that fail to insert are
// reported in ImportResult.Errors and the rest of the file is still imported.
//
// # Event System
//
// Writes publish events on the EventBus. The hub relays them to browsers over
// Server-Sent Events.
package service
