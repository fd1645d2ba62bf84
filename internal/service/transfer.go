package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"famtree/internal/codec"
	"famtree/internal/domain"
	"famtree/internal/gedcom"
	"famtree/internal/repository"
)

// ImportResult reports the outcome of an import. Errors are items that could
// not be stored; warnings are input problems that were worked around.
type ImportResult struct {
	Format           string   `json:"format"`
	PeopleImported   int      `json:"people_imported"`
	FamiliesImported int      `json:"families_imported"`
	Errors           []string `json:"errors"`
	Warnings         []string `json:"warnings"`
}

func newImportResult(format string) *ImportResult {
	return &ImportResult{
		Format:   format,
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}
}

// ImportGEDCOM parses a GEDCOM document and stores its people and families
// under newly generated IDs. It only fails when the context is cancelled.
func (s *TreeService) ImportGEDCOM(ctx context.Context, data []byte) (*ImportResult, error) {
	parsed := gedcom.Parse(string(data))
	conv := codec.Convert(parsed, func(string) string { return s.newID() })

	result := newImportResult("gedcom")
	for _, d := range parsed.Errors {
		result.Errors = append(result.Errors, d.String())
	}
	for _, d := range conv.Warnings {
		result.Warnings = append(result.Warnings, d.String())
	}

	failed := make(map[string]bool)
	for i := range conv.Fragment.People {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		person := &conv.Fragment.People[i]
		if err := s.repo.CreatePerson(ctx, person); err != nil {
			failed[person.ID] = true
			result.Errors = append(result.Errors, fmt.Sprintf("individual %s: %v", conv.Xrefs[person.ID], err))
			continue
		}
		result.PeopleImported++
	}

	for i := range conv.Fragment.Families {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		family := dropFailedMembers(&conv.Fragment.Families[i], failed)
		if len(family.MemberIDs()) == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("family %s has no importable members, skipped", conv.Xrefs[family.ID]))
			continue
		}
		if err := s.repo.CreateFamily(ctx, family); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("family %s: %v", conv.Xrefs[family.ID], err))
			continue
		}
		result.FamiliesImported++
	}

	s.finishImport(ctx, result)
	return result, nil
}

// dropFailedMembers removes references to people that could not be stored
func dropFailedMembers(family *domain.Family, failed map[string]bool) *domain.Family {
	if len(failed) == 0 {
		return family
	}
	if failed[family.HusbandID] {
		family.HusbandID = ""
	}
	if failed[family.WifeID] {
		family.WifeID = ""
	}
	children := family.ChildIDs[:0]
	for _, id := range family.ChildIDs {
		if !failed[id] {
			children = append(children, id)
		}
	}
	family.ChildIDs = children
	return family
}

// ExportGEDCOM writes the whole tree as GEDCOM. Living people and sources are
// filtered according to opts.
func (s *TreeService) ExportGEDCOM(ctx context.Context, opts gedcom.ExportOptions, w io.Writer) error {
	fragment, err := s.loadTree(ctx)
	if err != nil {
		return err
	}

	logCollisions(fragment)

	if err := codec.NewGEDCOMCodec(opts).Export(fragment, w); err != nil {
		return err
	}

	s.recordMetadata(ctx, repository.MetaLastExport)
	return nil
}

// logCollisions reports distinct IDs that would share an xref in the output
func logCollisions(fragment *domain.TreeFragment) {
	groups := []struct {
		kind gedcom.XrefType
		ids  []string
	}{
		{gedcom.XrefIndividual, make([]string, 0, len(fragment.People))},
		{gedcom.XrefFamily, make([]string, 0, len(fragment.Families))},
		{gedcom.XrefSource, nil},
	}
	for _, p := range fragment.People {
		groups[0].ids = append(groups[0].ids, p.ID)
	}
	for _, f := range fragment.Families {
		groups[1].ids = append(groups[1].ids, f.ID)
	}
	for _, src := range fragment.Sources() {
		groups[2].ids = append(groups[2].ids, src.ID)
	}

	for _, g := range groups {
		collisions := gedcom.XrefCollisions(g.kind, g.ids)
		xrefs := make([]string, 0, len(collisions))
		for xref := range collisions {
			xrefs = append(xrefs, xref)
		}
		sort.Strings(xrefs)
		for _, xref := range xrefs {
			log.Printf("GEDCOM export: xref %s is shared by IDs %s", xref, strings.Join(collisions[xref], ", "))
		}
	}
}

// ImportJSON merges a JSON tree document by native ID
func (s *TreeService) ImportJSON(ctx context.Context, data []byte) (*ImportResult, error) {
	return s.importDocument(ctx, codec.NewJSONCodec(), data)
}

// ImportYAML merges a YAML tree document by native ID
func (s *TreeService) ImportYAML(ctx context.Context, data []byte) (*ImportResult, error) {
	return s.importDocument(ctx, codec.NewYAMLCodec(), data)
}

// importDocument stores a whole fragment in one transaction. Unlike GEDCOM
// imports, any invalid item rejects the document.
func (s *TreeService) importDocument(ctx context.Context, importer codec.Importer, data []byte) (*ImportResult, error) {
	fragment, err := importer.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	for i := range fragment.People {
		person := &fragment.People[i]
		s.normalizePerson(person)
		if err := s.validatePerson(person); err != nil {
			return nil, fmt.Errorf("invalid person at index %d: %w", i, err)
		}
	}
	for i := range fragment.Families {
		if err := s.validateFamily(&fragment.Families[i]); err != nil {
			return nil, fmt.Errorf("invalid family at index %d: %w", i, err)
		}
	}

	if err := s.repo.ImportTree(ctx, fragment); err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", importer.Format(), err)
	}

	result := newImportResult(importer.Format())
	result.PeopleImported = len(fragment.People)
	result.FamiliesImported = len(fragment.Families)

	s.finishImport(ctx, result)
	return result, nil
}

// ExportJSON writes the whole tree, living people included, as JSON
func (s *TreeService) ExportJSON(ctx context.Context, w io.Writer) error {
	return s.exportDocument(ctx, codec.NewJSONCodec(), w)
}

// ExportYAML writes the whole tree, living people included, as YAML
func (s *TreeService) ExportYAML(ctx context.Context, w io.Writer) error {
	return s.exportDocument(ctx, codec.NewYAMLCodec(), w)
}

func (s *TreeService) exportDocument(ctx context.Context, exporter codec.Exporter, w io.Writer) error {
	fragment, err := s.loadTree(ctx)
	if err != nil {
		return err
	}
	if err := exporter.Export(fragment, w); err != nil {
		return err
	}
	s.recordMetadata(ctx, repository.MetaLastExport)
	return nil
}

// loadTree reads every person and family into a fragment
func (s *TreeService) loadTree(ctx context.Context) (*domain.TreeFragment, error) {
	people, err := s.repo.ListPeople(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load people: %w", err)
	}
	families, err := s.repo.ListFamilies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load families: %w", err)
	}
	return &domain.TreeFragment{People: people, Families: families}, nil
}

func (s *TreeService) finishImport(ctx context.Context, result *ImportResult) {
	s.recordMetadata(ctx, repository.MetaLastImport)

	s.eventBus.Publish(Event{
		Type:    EventImportCompleted,
		Payload: result,
	})
}

// recordMetadata stores the current time under key. Failures are logged only.
func (s *TreeService) recordMetadata(ctx context.Context, key string) {
	if err := s.repo.SetMetadata(ctx, key, time.Now().UTC().Format(time.RFC3339)); err != nil {
		log.Printf("Failed to record %s: %v", key, err)
	}
}
