package sqlite

import (
	"context"
	"database/sql"
	"reflect"
	"testing"

	"famtree/internal/domain"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertError fails the test if err is nil
func assertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

// assertEqual fails the test if expected != actual
func assertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

// mustCreatePerson inserts a person or fails the test
func mustCreatePerson(t *testing.T, repo *Repository, id, given, surname string) *domain.Person {
	t.Helper()
	p := domain.NewPerson(id, given, surname)
	assertNoError(t, repo.CreatePerson(context.Background(), p))
	return p
}

// ============================================================================
// Helper Function Tests
// ============================================================================

func TestNullToString(t *testing.T) {
	tests := []struct {
		name     string
		input    sql.NullString
		expected string
	}{
		{"valid string", sql.NullString{String: "test", Valid: true}, "test"},
		{"invalid string", sql.NullString{String: "test", Valid: false}, ""},
		{"empty valid string", sql.NullString{String: "", Valid: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertEqual(t, tt.expected, nullToString(tt.input))
		})
	}
}

func TestStringToNull(t *testing.T) {
	assertEqual(t, sql.NullString{String: "test", Valid: true}, stringToNull("test"))
	assertEqual(t, sql.NullString{}, stringToNull(""))
}

func TestNullToBool(t *testing.T) {
	tests := []struct {
		name     string
		input    sql.NullInt64
		expected bool
	}{
		{"valid non-zero", sql.NullInt64{Int64: 1, Valid: true}, true},
		{"valid zero", sql.NullInt64{Int64: 0, Valid: true}, false},
		{"invalid", sql.NullInt64{Int64: 1, Valid: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertEqual(t, tt.expected, nullToBool(tt.input))
		})
	}
}

func TestEventToNull(t *testing.T) {
	tests := []struct {
		name      string
		input     *domain.Event
		wantValid bool
	}{
		{"nil event", nil, false},
		{"empty event", &domain.Event{}, false},
		{"date only", &domain.Event{Date: "1900-01-01"}, true},
		{"place only", &domain.Event{Place: "Cork"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns, err := eventToNull(tt.input)
			assertNoError(t, err)
			assertEqual(t, tt.wantValid, ns.Valid)

			back, err := nullToEvent(ns)
			assertNoError(t, err)
			if tt.wantValid {
				assertEqual(t, tt.input, back)
			} else if back != nil {
				t.Fatalf("expected nil event, got %+v", back)
			}
		})
	}
}

func TestNullToEventInvalidJSON(t *testing.T) {
	_, err := nullToEvent(sql.NullString{String: "{not json", Valid: true})
	assertError(t, err)
}

// ============================================================================
// People Tests
// ============================================================================

func TestCreateAndGetPerson(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := domain.NewPerson("p1", "John", "Smith")
	p.Sex = domain.SexMale
	p.Birth = &domain.Event{Date: "1900-01-15", Place: "Cork"}
	p.Burial = &domain.Event{Place: "Glasnevin"}
	p.Sources = []domain.SourceCitation{
		{ID: "s2", Name: "Parish register"},
		{ID: "s1", Name: "Census", URL: "http://example.org"},
	}
	assertNoError(t, repo.CreatePerson(ctx, p))

	got, err := repo.GetPerson(ctx, "p1")
	assertNoError(t, err)
	if got == nil {
		t.Fatal("expected person, got nil")
	}

	assertEqual(t, "John", got.GivenName)
	assertEqual(t, "Smith", got.Surname)
	assertEqual(t, "John Smith", got.FullName)
	assertEqual(t, domain.SexMale, got.Sex)
	assertEqual(t, &domain.Event{Date: "1900-01-15", Place: "Cork"}, got.Birth)
	assertEqual(t, &domain.Event{Place: "Glasnevin"}, got.Burial)
	if got.Death != nil || got.Christening != nil {
		t.Errorf("expected absent events to stay nil")
	}
	if len(got.Sources) != 2 || got.Sources[0].ID != "s2" || got.Sources[1].ID != "s1" {
		t.Errorf("expected citations in attachment order, got %+v", got.Sources)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Errorf("expected timestamps to be set")
	}
}

func TestGetPersonNotFound(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetPerson(context.Background(), "missing")
	assertNoError(t, err)
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestCreatePersonDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	mustCreatePerson(t, repo, "p1", "A", "One")

	err := repo.CreatePerson(context.Background(), domain.NewPerson("p1", "B", "Two"))
	assertError(t, err)
}

func TestUpsertPerson(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	original := mustCreatePerson(t, repo, "p1", "A", "One")

	updated := domain.NewPerson("p1", "Alice", "One")
	updated.Death = &domain.Event{Date: "1990-05-05"}
	assertNoError(t, repo.UpsertPerson(ctx, updated))

	got, err := repo.GetPerson(ctx, "p1")
	assertNoError(t, err)
	assertEqual(t, "Alice", got.GivenName)
	assertEqual(t, "1990-05-05", got.Death.Date)
	if got.CreatedAt.Unix() != original.CreatedAt.Unix() {
		t.Errorf("expected created_at to be preserved, got %v want %v", got.CreatedAt, original.CreatedAt)
	}
}

func TestListPeople(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustCreatePerson(t, repo, "c", "Carol", "Three")
	living := domain.NewPerson("a", "Alan", "One")
	living.Living = true
	assertNoError(t, repo.CreatePerson(ctx, living))
	mustCreatePerson(t, repo, "b", "Bea", "Two")
	assertNoError(t, repo.UpsertSource(ctx, &domain.SourceCitation{ID: "s1", Name: "Census"}))
	assertNoError(t, repo.AttachSource(ctx, "b", "s1"))

	t.Run("insertion order with living", func(t *testing.T) {
		people, err := repo.ListPeople(ctx, true)
		assertNoError(t, err)
		var ids []string
		for _, p := range people {
			ids = append(ids, p.ID)
		}
		assertEqual(t, []string{"c", "a", "b"}, ids)
		assertEqual(t, true, people[1].Living)
		assertEqual(t, "s1", people[2].Sources[0].ID)
	})

	t.Run("living excluded", func(t *testing.T) {
		people, err := repo.ListPeople(ctx, false)
		assertNoError(t, err)
		assertEqual(t, 2, len(people))
		for _, p := range people {
			if p.Living {
				t.Errorf("living person %s returned", p.ID)
			}
		}
	})

	t.Run("empty repository", func(t *testing.T) {
		people, err := newTestRepo(t).ListPeople(ctx, true)
		assertNoError(t, err)
		if people == nil || len(people) != 0 {
			t.Errorf("expected empty non-nil slice, got %v", people)
		}
	})
}

func TestDeletePerson(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreatePerson(t, repo, "h", "H", "X")
	mustCreatePerson(t, repo, "w", "W", "X")
	mustCreatePerson(t, repo, "c", "C", "X")

	fam := domain.NewFamily("f1", "h", "w")
	fam.AddChild("c")
	assertNoError(t, repo.CreateFamily(ctx, fam))

	assertNoError(t, repo.DeletePerson(ctx, "h"))
	assertNoError(t, repo.DeletePerson(ctx, "c"))

	got, err := repo.GetPerson(ctx, "h")
	assertNoError(t, err)
	if got != nil {
		t.Fatal("expected deleted person to be gone")
	}

	family, err := repo.GetFamily(ctx, "f1")
	assertNoError(t, err)
	assertEqual(t, "", family.HusbandID)
	assertEqual(t, "w", family.WifeID)
	assertEqual(t, []string{}, family.ChildIDs)
}

// ============================================================================
// Family Tests
// ============================================================================

func TestCreateAndGetFamily(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for _, id := range []string{"h", "w", "c1", "c2", "c3"} {
		mustCreatePerson(t, repo, id, id, "")
	}

	fam := domain.NewFamily("f1", "h", "w")
	fam.Marriage = &domain.Event{Date: "1925-09-10", Place: "St Mary's"}
	fam.AddChild("c3")
	fam.AddChild("c1")
	fam.AddChild("c2")
	assertNoError(t, repo.CreateFamily(ctx, fam))

	got, err := repo.GetFamily(ctx, "f1")
	assertNoError(t, err)
	assertEqual(t, "h", got.HusbandID)
	assertEqual(t, "w", got.WifeID)
	assertEqual(t, []string{"c3", "c1", "c2"}, got.ChildIDs)
	assertEqual(t, &domain.Event{Date: "1925-09-10", Place: "St Mary's"}, got.Marriage)
}

func TestCreateFamilyUnknownMember(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreatePerson(t, repo, "h", "H", "")

	tests := []struct {
		name   string
		family *domain.Family
	}{
		{"unknown wife", domain.NewFamily("f1", "h", "ghost")},
		{"unknown child", &domain.Family{ID: "f2", HusbandID: "h", ChildIDs: []string{"ghost"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, repo.CreateFamily(ctx, tt.family))

			got, err := repo.GetFamily(ctx, tt.family.ID)
			assertNoError(t, err)
			if got != nil {
				t.Fatal("failed create must not leave a partial family")
			}
		})
	}
}

func TestUpsertFamilyReplacesChildren(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		mustCreatePerson(t, repo, id, id, "")
	}

	fam := &domain.Family{ID: "f1", ChildIDs: []string{"a", "b"}}
	assertNoError(t, repo.UpsertFamily(ctx, fam))
	fam = &domain.Family{ID: "f1", HusbandID: "a", ChildIDs: []string{"c", "c"}}
	assertNoError(t, repo.UpsertFamily(ctx, fam))

	got, err := repo.GetFamily(ctx, "f1")
	assertNoError(t, err)
	assertEqual(t, "a", got.HusbandID)
	assertEqual(t, []string{"c", "c"}, got.ChildIDs)
}

func TestListAndDeleteFamilies(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreatePerson(t, repo, "a", "A", "")
	mustCreatePerson(t, repo, "b", "B", "")

	assertNoError(t, repo.CreateFamily(ctx, &domain.Family{ID: "f2", HusbandID: "a", ChildIDs: []string{"b"}}))
	assertNoError(t, repo.CreateFamily(ctx, &domain.Family{ID: "f1", WifeID: "b"}))

	families, err := repo.ListFamilies(ctx)
	assertNoError(t, err)
	assertEqual(t, 2, len(families))
	assertEqual(t, "f2", families[0].ID)
	assertEqual(t, []string{"b"}, families[0].ChildIDs)
	assertEqual(t, []string{}, families[1].ChildIDs)

	assertNoError(t, repo.DeleteFamily(ctx, "f2"))
	families, err = repo.ListFamilies(ctx)
	assertNoError(t, err)
	assertEqual(t, 1, len(families))

	people, err := repo.ListPeople(ctx, true)
	assertNoError(t, err)
	assertEqual(t, 2, len(people))
}

// ============================================================================
// Source Tests
// ============================================================================

func TestSources(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreatePerson(t, repo, "p1", "A", "")

	t.Run("upsert and get", func(t *testing.T) {
		assertNoError(t, repo.UpsertSource(ctx, &domain.SourceCitation{ID: "s1", Name: "Old"}))
		assertNoError(t, repo.UpsertSource(ctx, &domain.SourceCitation{ID: "s1", Name: "Census", Content: "text"}))

		got, err := repo.GetSource(ctx, "s1")
		assertNoError(t, err)
		assertEqual(t, &domain.SourceCitation{ID: "s1", Name: "Census", Content: "text"}, got)
	})

	t.Run("missing source", func(t *testing.T) {
		got, err := repo.GetSource(ctx, "nope")
		assertNoError(t, err)
		if got != nil {
			t.Fatalf("expected nil, got %+v", got)
		}
	})

	t.Run("attach appends and ignores repeats", func(t *testing.T) {
		assertNoError(t, repo.UpsertSource(ctx, &domain.SourceCitation{ID: "s2", Name: "Will"}))
		assertNoError(t, repo.AttachSource(ctx, "p1", "s2"))
		assertNoError(t, repo.AttachSource(ctx, "p1", "s1"))
		assertNoError(t, repo.AttachSource(ctx, "p1", "s2"))

		p, err := repo.GetPerson(ctx, "p1")
		assertNoError(t, err)
		assertEqual(t, 2, len(p.Sources))
		assertEqual(t, "s2", p.Sources[0].ID)
		assertEqual(t, "s1", p.Sources[1].ID)
	})

	t.Run("attach to unknown person", func(t *testing.T) {
		assertError(t, repo.AttachSource(ctx, "ghost", "s1"))
	})
}

// ============================================================================
// Bulk and Metadata Tests
// ============================================================================

func TestImportTree(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreatePerson(t, repo, "a", "Old", "Name")

	fragment := domain.NewTreeFragment()
	fragment.AddPerson(domain.Person{ID: "a", GivenName: "New", FullName: "New Name", Sex: domain.SexFemale})
	fragment.AddPerson(domain.Person{ID: "b", GivenName: "Kid", Sources: []domain.SourceCitation{{ID: "s1"}}})
	fragment.AddFamily(domain.Family{ID: "f1", WifeID: "a", ChildIDs: []string{"b"}})
	assertNoError(t, repo.ImportTree(ctx, fragment))

	a, err := repo.GetPerson(ctx, "a")
	assertNoError(t, err)
	assertEqual(t, "New", a.GivenName)

	b, err := repo.GetPerson(ctx, "b")
	assertNoError(t, err)
	assertEqual(t, "s1", b.Sources[0].ID)

	f, err := repo.GetFamily(ctx, "f1")
	assertNoError(t, err)
	assertEqual(t, []string{"b"}, f.ChildIDs)

	t.Run("failure rolls back", func(t *testing.T) {
		bad := domain.NewTreeFragment()
		bad.AddPerson(domain.Person{ID: "z", GivenName: "Zed"})
		bad.AddFamily(domain.Family{ID: "f9", HusbandID: "ghost"})
		assertError(t, repo.ImportTree(ctx, bad))

		z, err := repo.GetPerson(ctx, "z")
		assertNoError(t, err)
		if z != nil {
			t.Fatal("expected rollback to discard person z")
		}
	})
}

func TestClearTree(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreatePerson(t, repo, "a", "A", "")
	assertNoError(t, repo.CreateFamily(ctx, &domain.Family{ID: "f1", HusbandID: "a"}))
	assertNoError(t, repo.UpsertSource(ctx, &domain.SourceCitation{ID: "s1"}))
	assertNoError(t, repo.SetMetadata(ctx, "last_import", "yesterday"))

	assertNoError(t, repo.ClearTree(ctx))

	people, err := repo.ListPeople(ctx, true)
	assertNoError(t, err)
	assertEqual(t, 0, len(people))
	families, err := repo.ListFamilies(ctx)
	assertNoError(t, err)
	assertEqual(t, 0, len(families))
	src, err := repo.GetSource(ctx, "s1")
	assertNoError(t, err)
	if src != nil {
		t.Error("expected sources to be cleared")
	}

	value, err := repo.GetMetadata(ctx, "last_import")
	assertNoError(t, err)
	assertEqual(t, "yesterday", value)
}

func TestMetadata(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	value, err := repo.GetMetadata(ctx, "missing")
	assertNoError(t, err)
	assertEqual(t, "", value)

	assertNoError(t, repo.SetMetadata(ctx, "k", "v1"))
	assertNoError(t, repo.SetMetadata(ctx, "k", "v2"))

	value, err = repo.GetMetadata(ctx, "k")
	assertNoError(t, err)
	assertEqual(t, "v2", value)
}
