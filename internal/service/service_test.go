package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"famtree/internal/domain"
	"famtree/internal/gedcom"
	"famtree/internal/repository/sqlite"
)

// newTestService creates a service over an in-memory repository with
// predictable IDs
func newTestService(t *testing.T) (*TreeService, chan Event) {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	bus := NewEventBus()
	events := make(chan Event, 64)
	bus.Subscribe(events)

	svc := NewTreeService(repo, bus)
	var seq int
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return svc, events
}

// drain returns the event types published so far
func drain(events chan Event) []EventType {
	var types []EventType
	for {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
		default:
			return types
		}
	}
}

func TestTreeServiceValidatePerson(t *testing.T) {
	svc := &TreeService{}

	t.Run("named person passes validation", func(t *testing.T) {
		p := domain.NewPerson("p1", "John", "Smith")
		if err := svc.validatePerson(p); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("empty ID fails validation", func(t *testing.T) {
		p := &domain.Person{FullName: "John Smith"}
		if err := svc.validatePerson(p); err == nil {
			t.Error("expected error for empty ID")
		}
	})

	t.Run("nameless person fails validation", func(t *testing.T) {
		p := &domain.Person{ID: "p1"}
		if err := svc.validatePerson(p); err == nil {
			t.Error("expected error for missing name")
		}
	})

	t.Run("citation without ID fails validation", func(t *testing.T) {
		p := domain.NewPerson("p1", "John", "Smith")
		p.Sources = []domain.SourceCitation{{Name: "Census"}}
		if err := svc.validatePerson(p); err == nil {
			t.Error("expected error for citation without ID")
		}
	})
}

func TestTreeServiceValidateFamily(t *testing.T) {
	svc := &TreeService{}

	tests := []struct {
		name    string
		family  *domain.Family
		wantErr bool
	}{
		{"couple", &domain.Family{ID: "f", HusbandID: "h", WifeID: "w"}, false},
		{"single parent with child", &domain.Family{ID: "f", WifeID: "w", ChildIDs: []string{"c"}}, false},
		{"children only", &domain.Family{ID: "f", ChildIDs: []string{"c"}}, false},
		{"empty ID", &domain.Family{HusbandID: "h"}, true},
		{"no members", &domain.Family{ID: "f"}, true},
		{"same husband and wife", &domain.Family{ID: "f", HusbandID: "x", WifeID: "x"}, true},
		{"parent is own child", &domain.Family{ID: "f", HusbandID: "h", ChildIDs: []string{"h"}}, true},
		{"empty child ID", &domain.Family{ID: "f", HusbandID: "h", ChildIDs: []string{""}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.validateFamily(tt.family)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFamily() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateAndDeletePerson(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()

	p := &domain.Person{GivenName: " Ada ", Surname: "Byron", Sex: "F"}
	if err := svc.CreatePerson(ctx, p); err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}
	if p.ID != "id-1" {
		t.Errorf("expected generated ID id-1, got %s", p.ID)
	}

	got, err := svc.GetPerson(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPerson failed: %v", err)
	}
	if got.FullName != "Ada Byron" || got.Sex != domain.SexFemale {
		t.Errorf("expected normalized person, got %+v", got)
	}

	if err := svc.DeletePerson(ctx, p.ID); err != nil {
		t.Fatalf("DeletePerson failed: %v", err)
	}
	if _, err := svc.GetPerson(ctx, p.ID); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
	if err := svc.DeletePerson(ctx, p.ID); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error deleting twice, got %v", err)
	}

	types := drain(events)
	if len(types) != 2 || types[0] != EventPersonCreated || types[1] != EventPersonDeleted {
		t.Errorf("unexpected events %v", types)
	}
}

func TestCreateFamilyRequiresExistingMembers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	h := domain.NewPerson("h", "Henry", "X")
	if err := svc.CreatePerson(ctx, h); err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}

	err := svc.CreateFamily(ctx, &domain.Family{HusbandID: "h", WifeID: "ghost"})
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("expected error naming missing member, got %v", err)
	}

	fam := &domain.Family{HusbandID: "h"}
	if err := svc.CreateFamily(ctx, fam); err != nil {
		t.Fatalf("CreateFamily failed: %v", err)
	}
	if fam.ChildIDs == nil {
		t.Error("expected ChildIDs to be initialized")
	}
}

func TestAttachSource(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()

	p := domain.NewPerson("p1", "John", "Smith")
	if err := svc.CreatePerson(ctx, p); err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}

	if err := svc.CreateSource(ctx, &domain.SourceCitation{}); err == nil {
		t.Error("expected error for empty source")
	}

	src := &domain.SourceCitation{Name: "1901 Census"}
	if err := svc.CreateSource(ctx, src); err != nil {
		t.Fatalf("CreateSource failed: %v", err)
	}

	if err := svc.AttachSource(ctx, "p1", "missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected source not found, got %v", err)
	}
	if err := svc.AttachSource(ctx, "nobody", src.ID); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected person not found, got %v", err)
	}
	if err := svc.AttachSource(ctx, "p1", src.ID); err != nil {
		t.Fatalf("AttachSource failed: %v", err)
	}

	got, _ := svc.GetPerson(ctx, "p1")
	if len(got.Sources) != 1 || got.Sources[0].Name != "1901 Census" {
		t.Errorf("expected attached citation, got %+v", got.Sources)
	}

	types := drain(events)
	if types[len(types)-1] != EventSourceAttached {
		t.Errorf("expected source_attached last, got %v", types)
	}
}

const sampleGEDCOM = "0 HEAD\r\n" +
	"1 CHAR UTF-8\r\n" +
	"0 @I1@ INDI\r\n" +
	"1 NAME John /Smith/\r\n" +
	"1 SEX M\r\n" +
	"1 BIRT\r\n" +
	"2 DATE 15 JAN 1900\r\n" +
	"2 PLAC Cork\r\n" +
	"0 @I2@ INDI\r\n" +
	"1 NAME Mary /Jones/\r\n" +
	"1 SEX F\r\n" +
	"1 DEAT\r\n" +
	"2 DATE ABT 1980\r\n" +
	"0 @I3@ INDI\r\n" +
	"1 NAME Kid /Smith/\r\n" +
	"0 @F1@ FAM\r\n" +
	"1 HUSB @I1@\r\n" +
	"1 WIFE @I2@\r\n" +
	"1 CHIL @I3@\r\n" +
	"1 CHIL @I404@\r\n" +
	"1 MARR\r\n" +
	"2 DATE 10 SEP 1925\r\n" +
	"garbage line\r\n" +
	"0 TRLR"

func TestImportGEDCOM(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()

	result, err := svc.ImportGEDCOM(ctx, []byte(sampleGEDCOM))
	if err != nil {
		t.Fatalf("ImportGEDCOM failed: %v", err)
	}

	if result.PeopleImported != 3 || result.FamiliesImported != 1 {
		t.Errorf("expected 3 people and 1 family, got %+v", result)
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", result.Warnings)
	}
	if !strings.HasPrefix(result.Warnings[0], "line 23:") {
		t.Errorf("expected skipped line warning first, got %q", result.Warnings[0])
	}
	if !strings.Contains(result.Warnings[1], "@I404@") {
		t.Errorf("expected unresolved child warning, got %q", result.Warnings[1])
	}

	people, err := svc.ListPeople(ctx, true)
	if err != nil {
		t.Fatalf("ListPeople failed: %v", err)
	}
	john := people[0]
	if john.ID != "id-1" || john.FullName != "John Smith" || john.Sex != domain.SexMale {
		t.Errorf("unexpected first person %+v", john)
	}
	if john.Birth == nil || john.Birth.Date != "1900-01-15" || john.Birth.Place != "Cork" {
		t.Errorf("expected ISO birth date, got %+v", john.Birth)
	}
	if people[1].Death == nil || people[1].Death.Date != "ABT 1980" {
		t.Errorf("expected approximate date kept verbatim, got %+v", people[1].Death)
	}
	if john.Living {
		t.Error("imported people must not be flagged living")
	}

	families, err := svc.ListFamilies(ctx)
	if err != nil {
		t.Fatalf("ListFamilies failed: %v", err)
	}
	fam := families[0]
	if fam.HusbandID != "id-1" || fam.WifeID != "id-2" {
		t.Errorf("expected resolved parents, got %+v", fam)
	}
	if len(fam.ChildIDs) != 1 || fam.ChildIDs[0] != "id-3" {
		t.Errorf("expected one resolved child, got %v", fam.ChildIDs)
	}
	if fam.Marriage == nil || fam.Marriage.Date != "1925-09-10" {
		t.Errorf("expected marriage date, got %+v", fam.Marriage)
	}

	status, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.People != 3 || status.Families != 1 || status.LastImport == "" {
		t.Errorf("unexpected status %+v", status)
	}

	types := drain(events)
	if len(types) != 1 || types[0] != EventImportCompleted {
		t.Errorf("expected a single import_completed event, got %v", types)
	}
}

func TestImportGEDCOMRecordsFailures(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Both people get the same ID, so only the first insert succeeds
	ids := []string{"dup", "dup", "fam"}
	svc.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	text := "0 @I1@ INDI\n1 NAME A /One/\n0 @I2@ INDI\n1 NAME B /Two/\n0 @F1@ FAM\n1 CHIL @I2@\n"
	result, err := svc.ImportGEDCOM(ctx, []byte(text))
	if err != nil {
		t.Fatalf("ImportGEDCOM failed: %v", err)
	}

	if result.PeopleImported != 1 {
		t.Errorf("expected 1 person imported, got %d", result.PeopleImported)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "@I2@") {
		t.Errorf("expected error for @I2@, got %v", result.Errors)
	}
	if result.FamiliesImported != 0 {
		t.Errorf("expected family referencing failed person to be skipped, got %d", result.FamiliesImported)
	}
}

func TestImportGEDCOMCancelled(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.ImportGEDCOM(ctx, []byte(sampleGEDCOM)); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestExportGEDCOM(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ImportGEDCOM(ctx, []byte(sampleGEDCOM)); err != nil {
		t.Fatalf("ImportGEDCOM failed: %v", err)
	}
	living := domain.NewPerson("alive", "Still", "Here")
	living.Living = true
	if err := svc.CreatePerson(ctx, living); err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}

	opts := gedcom.DefaultExportOptions()
	opts.Now = func() time.Time { return time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC) }

	var buf bytes.Buffer
	if err := svc.ExportGEDCOM(ctx, opts, &buf); err != nil {
		t.Fatalf("ExportGEDCOM failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"0 @Iid1@ INDI", "2 DATE 15 JAN 1900", "0 @Fid4@ FAM", "1 CHIL @Iid3@", "1 DATE 14 OCT 2026"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected export to contain %q", want)
		}
	}
	if strings.Contains(out, "Still") {
		t.Error("living person must be excluded by default")
	}

	status, _ := svc.Status(ctx)
	if status.LastExport == "" {
		t.Error("expected last export to be recorded")
	}
}

func TestYAMLImportExport(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc := `
people:
  - id: a
    given_name: Ada
    surname: Byron
    sex: female
  - id: b
    given_name: Byron
families:
  - id: f
    wife: a
    children: [b]
`
	result, err := svc.ImportYAML(ctx, []byte(doc))
	if err != nil {
		t.Fatalf("ImportYAML failed: %v", err)
	}
	if result.Format != "yaml" || result.PeopleImported != 2 || result.FamiliesImported != 1 {
		t.Errorf("unexpected result %+v", result)
	}

	var buf bytes.Buffer
	if err := svc.ExportJSON(ctx, &buf); err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"full_name": "Ada Byron"`) {
		t.Errorf("expected exported JSON to contain Ada, got %s", buf.String())
	}

	t.Run("invalid person rejects document", func(t *testing.T) {
		_, err := svc.ImportYAML(ctx, []byte("people:\n  - id: nameless\n"))
		if err == nil {
			t.Fatal("expected validation error")
		}
		if _, err := svc.GetPerson(ctx, "nameless"); err == nil {
			t.Error("rejected document must not be stored")
		}
	})

	t.Run("malformed document", func(t *testing.T) {
		if _, err := svc.ImportJSON(ctx, []byte("{")); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestClearTree(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ImportGEDCOM(ctx, []byte(sampleGEDCOM)); err != nil {
		t.Fatalf("ImportGEDCOM failed: %v", err)
	}
	drain(events)

	if err := svc.ClearTree(ctx); err != nil {
		t.Fatalf("ClearTree failed: %v", err)
	}
	people, _ := svc.ListPeople(ctx, true)
	if len(people) != 0 {
		t.Errorf("expected empty tree, got %d people", len(people))
	}
	if types := drain(events); len(types) != 1 || types[0] != EventTreeCleared {
		t.Errorf("expected tree_cleared event, got %v", types)
	}
}

func TestEventBusSkipsSlowSubscribers(t *testing.T) {
	bus := NewEventBus()
	full := make(chan Event)
	ok := make(chan Event, 1)
	bus.Subscribe(full)
	bus.Subscribe(ok)

	bus.Publish(Event{Type: EventTreeCleared})

	select {
	case ev := <-ok:
		if ev.Type != EventTreeCleared {
			t.Errorf("unexpected event %v", ev.Type)
		}
	default:
		t.Error("expected buffered subscriber to receive the event")
	}
}
