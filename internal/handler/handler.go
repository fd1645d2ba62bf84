package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"famtree/internal/domain"
	"famtree/internal/gedcom"
	"famtree/internal/service"
)

// DefaultMaxImportBytes caps import request bodies unless configured otherwise
const DefaultMaxImportBytes = 32 << 20

// gedcomFilename is the attachment name of GEDCOM downloads
const gedcomFilename = "family-tree.ged"

// TreeHandler handles family tree API requests
type TreeHandler struct {
	svc            *service.TreeService
	exportDefaults gedcom.ExportOptions
	maxImportBytes int64
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(svc *service.TreeService) *TreeHandler {
	return &TreeHandler{
		svc:            svc,
		exportDefaults: gedcom.DefaultExportOptions(),
		maxImportBytes: DefaultMaxImportBytes,
	}
}

// SetExportDefaults sets the GEDCOM options used when a request does not override them
func (h *TreeHandler) SetExportDefaults(opts gedcom.ExportOptions) {
	h.exportDefaults = opts
}

// SetMaxImportBytes sets the largest accepted import body
func (h *TreeHandler) SetMaxImportBytes(n int64) {
	if n > 0 {
		h.maxImportBytes = n
	}
}

// Register adds the API routes to mux
func (h *TreeHandler) Register(mux *http.ServeMux) {
	// People
	mux.HandleFunc("GET /api/people", h.ListPeople)
	mux.HandleFunc("POST /api/people", h.CreatePerson)
	mux.HandleFunc("GET /api/people/{id}", h.GetPerson)
	mux.HandleFunc("DELETE /api/people/{id}", h.DeletePerson)
	mux.HandleFunc("POST /api/people/{id}/sources/{sourceID}", h.AttachSource)

	// Families
	mux.HandleFunc("GET /api/families", h.ListFamilies)
	mux.HandleFunc("POST /api/families", h.CreateFamily)
	mux.HandleFunc("GET /api/families/{id}", h.GetFamily)
	mux.HandleFunc("DELETE /api/families/{id}", h.DeleteFamily)

	// Sources
	mux.HandleFunc("POST /api/sources", h.CreateSource)

	// Import and export
	mux.HandleFunc("POST /api/import/gedcom", h.ImportGEDCOM)
	mux.HandleFunc("POST /api/import/json", h.ImportJSON)
	mux.HandleFunc("POST /api/import/yaml", h.ImportYAML)
	mux.HandleFunc("GET /api/export/gedcom", h.ExportGEDCOM)
	mux.HandleFunc("GET /api/export/json", h.ExportJSON)
	mux.HandleFunc("GET /api/export/yaml", h.ExportYAML)

	// Tree
	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("DELETE /api/tree", h.ClearTree)
	mux.HandleFunc("GET /healthz", h.Health)
}

// Error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ListPeople returns all people. Living people are included unless
// include_living=false.
func (h *TreeHandler) ListPeople(w http.ResponseWriter, r *http.Request) {
	includeLiving, err := boolParam(r, "include_living", true)
	if err != nil {
		h.writeError(w, "Invalid include_living", err.Error(), http.StatusBadRequest)
		return
	}

	people, err := h.svc.ListPeople(r.Context(), includeLiving)
	if err != nil {
		log.Printf("Failed to list people: %v", err)
		h.writeError(w, "Failed to list people", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, people, http.StatusOK)
}

// GetPerson returns a single person
func (h *TreeHandler) GetPerson(w http.ResponseWriter, r *http.Request) {
	person, err := h.svc.GetPerson(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get person", err, http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, person, http.StatusOK)
}

// CreatePerson creates a new person
func (h *TreeHandler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var person domain.Person
	if err := json.NewDecoder(r.Body).Decode(&person); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.svc.CreatePerson(r.Context(), &person); err != nil {
		log.Printf("Failed to create person: %v", err)
		h.writeError(w, "Failed to create person", err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, person, http.StatusCreated)
}

// DeletePerson removes a person
func (h *TreeHandler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePerson(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, "Failed to delete person", err, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AttachSource cites an existing source on a person
func (h *TreeHandler) AttachSource(w http.ResponseWriter, r *http.Request) {
	personID := r.PathValue("id")
	if err := h.svc.AttachSource(r.Context(), personID, r.PathValue("sourceID")); err != nil {
		h.writeServiceError(w, "Failed to attach source", err, http.StatusInternalServerError)
		return
	}

	person, err := h.svc.GetPerson(r.Context(), personID)
	if err != nil {
		h.writeServiceError(w, "Failed to get person", err, http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, person, http.StatusOK)
}

// ListFamilies returns all families
func (h *TreeHandler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := h.svc.ListFamilies(r.Context())
	if err != nil {
		log.Printf("Failed to list families: %v", err)
		h.writeError(w, "Failed to list families", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, families, http.StatusOK)
}

// GetFamily returns a single family
func (h *TreeHandler) GetFamily(w http.ResponseWriter, r *http.Request) {
	family, err := h.svc.GetFamily(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get family", err, http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, family, http.StatusOK)
}

// CreateFamily creates a new family
func (h *TreeHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	var family domain.Family
	if err := json.NewDecoder(r.Body).Decode(&family); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.svc.CreateFamily(r.Context(), &family); err != nil {
		log.Printf("Failed to create family: %v", err)
		h.writeError(w, "Failed to create family", err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, family, http.StatusCreated)
}

// DeleteFamily removes a family
func (h *TreeHandler) DeleteFamily(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteFamily(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, "Failed to delete family", err, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateSource creates a source record
func (h *TreeHandler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var source domain.SourceCitation
	if err := json.NewDecoder(r.Body).Decode(&source); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.svc.CreateSource(r.Context(), &source); err != nil {
		log.Printf("Failed to create source: %v", err)
		h.writeError(w, "Failed to create source", err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, source, http.StatusCreated)
}

// ImportGEDCOM imports a GEDCOM document sent as the raw body or as the
// "file" field of a multipart form
func (h *TreeHandler) ImportGEDCOM(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	result, err := h.svc.ImportGEDCOM(r.Context(), data)
	if err != nil {
		log.Printf("Failed to import GEDCOM: %v", err)
		h.writeError(w, "Failed to import GEDCOM", err.Error(), http.StatusInternalServerError)
		return
	}

	log.Printf("Imported GEDCOM: %d people, %d families, %d errors, %d warnings",
		result.PeopleImported, result.FamiliesImported, len(result.Errors), len(result.Warnings))
	h.writeJSON(w, result, http.StatusOK)
}

// ImportJSON merges a JSON tree document
func (h *TreeHandler) ImportJSON(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	result, err := h.svc.ImportJSON(r.Context(), data)
	if err != nil {
		log.Printf("Failed to import JSON: %v", err)
		h.writeError(w, "Failed to import JSON", err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, result, http.StatusOK)
}

// ImportYAML merges a YAML tree document
func (h *TreeHandler) ImportYAML(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	result, err := h.svc.ImportYAML(r.Context(), data)
	if err != nil {
		log.Printf("Failed to import YAML: %v", err)
		h.writeError(w, "Failed to import YAML", err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, result, http.StatusOK)
}

// readUpload reads a size-capped request body, taking the "file" part of
// multipart forms. It writes the error response itself and reports false on
// failure.
func (h *TreeHandler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImportBytes)

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		data, err = readFormFile(r, h.maxImportBytes)
	} else {
		data, err = io.ReadAll(r.Body)
	}

	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, "Upload too large", fmt.Sprintf("limit is %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		h.writeError(w, "Failed to read upload", err.Error(), http.StatusBadRequest)
		return nil, false
	}

	return data, true
}

func readFormFile(r *http.Request, maxBytes int64) ([]byte, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("missing file field: %w", err)
	}
	defer file.Close()
	return io.ReadAll(file)
}

// ExportGEDCOM downloads the tree as GEDCOM. Query parameters include_living,
// include_sources and submitter override the configured defaults.
func (h *TreeHandler) ExportGEDCOM(w http.ResponseWriter, r *http.Request) {
	opts := h.exportDefaults

	var err error
	if opts.IncludeLiving, err = boolParam(r, "include_living", opts.IncludeLiving); err != nil {
		h.writeError(w, "Invalid include_living", err.Error(), http.StatusBadRequest)
		return
	}
	if opts.IncludeSources, err = boolParam(r, "include_sources", opts.IncludeSources); err != nil {
		h.writeError(w, "Invalid include_sources", err.Error(), http.StatusBadRequest)
		return
	}
	if submitter := strings.TrimSpace(r.URL.Query().Get("submitter")); submitter != "" {
		opts.SubmitterName = submitter
	}

	var buf bytes.Buffer
	if err := h.svc.ExportGEDCOM(r.Context(), opts, &buf); err != nil {
		log.Printf("Failed to export GEDCOM: %v", err)
		h.writeError(w, "Failed to export GEDCOM", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/x-gedcom; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+gedcomFilename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("Failed to write GEDCOM response: %v", err)
	}
}

// ExportJSON downloads the tree as JSON
func (h *TreeHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=family-tree.json")

	if err := h.svc.ExportJSON(r.Context(), w); err != nil {
		log.Printf("Failed to export JSON: %v", err)
		// Can't write error response as we already set headers
		return
	}
}

// ExportYAML downloads the tree as YAML
func (h *TreeHandler) ExportYAML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", "attachment; filename=family-tree.yml")

	if err := h.svc.ExportYAML(r.Context(), w); err != nil {
		log.Printf("Failed to export YAML: %v", err)
		// Can't write error response as we already set headers
		return
	}
}

// Status returns tree counts and last import and export times
func (h *TreeHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context())
	if err != nil {
		log.Printf("Failed to get status: %v", err)
		h.writeError(w, "Failed to get status", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, status, http.StatusOK)
}

// ClearTree removes every person, family and source
func (h *TreeHandler) ClearTree(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearTree(r.Context()); err != nil {
		log.Printf("Failed to clear tree: %v", err)
		h.writeError(w, "Failed to clear tree", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{"status": "cleared"}, http.StatusOK)
}

// Health reports liveness
func (h *TreeHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// boolParam reads an optional boolean query parameter
func boolParam(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseBool(raw)
}

func (h *TreeHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *TreeHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// writeServiceError maps "not found" service errors to 404 and everything
// else to fallback
func (h *TreeHandler) writeServiceError(w http.ResponseWriter, message string, err error, fallback int) {
	if strings.Contains(err.Error(), "not found") {
		h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
		return
	}
	log.Printf("%s: %v", message, err)
	h.writeError(w, message, err.Error(), fallback)
}
