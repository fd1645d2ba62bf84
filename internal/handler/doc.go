// Package handler implements the HTTP API for the family tree.
//
// TreeHandler exposes people, families and sources as JSON resources, and
// GEDCOM, JSON and YAML import and export endpoints. Register adds every
// route to a net/http ServeMux using method and path patterns.
//
// # Response Format
//
// Success responses return JSON with status 200 or 201; deletes return 204.
// Error responses return JSON with an {error, details} structure. Service
// errors mentioning "not found" map to 404.
//
// # GEDCOM
//
// POST /api/import/gedcom accepts the document as the raw request body or as
// the "file" field of a multipart form, capped at the configured size.
// GET /api/export/gedcom downloads family-tree.ged; include_living,
// include_sources and submitter query parameters override the configured
// export defaults.
//
// # Middleware
//
// Chain composes Recover, CORS and Logger, which wrap gorilla/handlers.
package handler
