package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"famtree/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullToBool converts sql.NullInt64 to bool (0 = false, non-zero = true)
func nullToBool(ni sql.NullInt64) bool {
	return ni.Valid && ni.Int64 != 0
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// boolToInt converts bool to the 0/1 integer SQLite stores
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ============================================================================
// Event JSON Helpers
// ============================================================================

// eventToNull marshals an event to nullable JSON. Empty events are stored as NULL.
func eventToNull(ev *domain.Event) (sql.NullString, error) {
	if ev.IsZero() {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// nullToEvent unmarshals a nullable JSON column into an event
func nullToEvent(ns sql.NullString) (*domain.Event, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	ev := &domain.Event{}
	if err := json.Unmarshal([]byte(ns.String), ev); err != nil {
		return nil, err
	}
	if ev.IsZero() {
		return nil, nil
	}
	return ev, nil
}

// ============================================================================
// Schema Evolution Guide
// ============================================================================
//
// To add a new column to the people table:
// 1. Add field to personRow struct (below)
// 2. Update scanArgs() - APPEND to end to match column order
// 3. Update personColumns constant - APPEND to end
// 4. Update toDomain() to map new field to domain.Person
// 5. Update personInsertArgs() and the INSERT statement
// 6. Add the column to the schema in sqlite.go migrate()
//
// CRITICAL: Column order must match between personColumns, scanArgs() and
// personInsertArgs(). Same pattern applies to families.

// ============================================================================
// Person Row Scanner
// ============================================================================

// personRow holds all columns from a person query for scanning
type personRow struct {
	ID              string
	GivenName       sql.NullString
	Surname         sql.NullString
	FullName        sql.NullString
	Sex             sql.NullString
	BirthJSON       sql.NullString
	ChristeningJSON sql.NullString
	DeathJSON       sql.NullString
	BurialJSON      sql.NullString
	Living          sql.NullInt64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match personColumns order exactly:
// id, given_name, surname, full_name, sex, birth, christening, death, burial,
// living, created_at, updated_at
func (r *personRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,              // 1
		&r.GivenName,       // 2
		&r.Surname,         // 3
		&r.FullName,        // 4
		&r.Sex,             // 5
		&r.BirthJSON,       // 6
		&r.ChristeningJSON, // 7
		&r.DeathJSON,       // 8
		&r.BurialJSON,      // 9
		&r.Living,          // 10
		&r.CreatedAt,       // 11
		&r.UpdatedAt,       // 12
	}
}

// toDomain converts the scanned row to a domain.Person
func (r *personRow) toDomain() (*domain.Person, error) {
	person := &domain.Person{
		ID:        r.ID,
		GivenName: nullToString(r.GivenName),
		Surname:   nullToString(r.Surname),
		FullName:  nullToString(r.FullName),
		Sex:       domain.ParseSex(nullToString(r.Sex)),
		Living:    nullToBool(r.Living),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	events := []struct {
		name string
		col  sql.NullString
		dst  **domain.Event
	}{
		{"birth", r.BirthJSON, &person.Birth},
		{"christening", r.ChristeningJSON, &person.Christening},
		{"death", r.DeathJSON, &person.Death},
		{"burial", r.BurialJSON, &person.Burial},
	}
	for _, e := range events {
		ev, err := nullToEvent(e.col)
		if err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", e.name, err)
		}
		*e.dst = ev
	}

	return person, nil
}

// personColumns returns the SELECT column list for person queries
const personColumns = `id, given_name, surname, full_name, sex, birth, christening, death, burial,
	living, created_at, updated_at`

// ============================================================================
// Family Row Scanner
// ============================================================================

// familyRow holds all columns from a family query for scanning
type familyRow struct {
	ID           string
	HusbandID    sql.NullString
	WifeID       sql.NullString
	MarriageJSON sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match familyColumns order exactly:
// id, husband_id, wife_id, marriage, created_at, updated_at
func (r *familyRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,           // 1
		&r.HusbandID,    // 2
		&r.WifeID,       // 3
		&r.MarriageJSON, // 4
		&r.CreatedAt,    // 5
		&r.UpdatedAt,    // 6
	}
}

// toDomain converts the scanned row to a domain.Family
func (r *familyRow) toDomain() (*domain.Family, error) {
	family := &domain.Family{
		ID:        r.ID,
		HusbandID: nullToString(r.HusbandID),
		WifeID:    nullToString(r.WifeID),
		ChildIDs:  make([]string, 0),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	marriage, err := nullToEvent(r.MarriageJSON)
	if err != nil {
		return nil, fmt.Errorf("unmarshal marriage: %w", err)
	}
	family.Marriage = marriage

	return family, nil
}

// familyColumns returns the SELECT column list for family queries
const familyColumns = `id, husband_id, wife_id, marriage, created_at, updated_at`

// ============================================================================
// Write Helpers
// ============================================================================

// personInsertArgs prepares arguments for person INSERT/UPSERT
// Returns: id, given_name, surname, full_name, sex, birth, christening, death,
//          burial, living, created_at, updated_at
func personInsertArgs(p *domain.Person) ([]interface{}, error) {
	events := make([]interface{}, 0, 4)
	for _, ev := range []*domain.Event{p.Birth, p.Christening, p.Death, p.Burial} {
		ns, err := eventToNull(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal event: %w", err)
		}
		events = append(events, ns)
	}

	args := []interface{}{
		p.ID,
		stringToNull(p.GivenName),
		stringToNull(p.Surname),
		stringToNull(p.FullName),
		string(domain.ParseSex(string(p.Sex))),
	}
	args = append(args, events...)
	return append(args, boolToInt(p.Living), p.CreatedAt, p.UpdatedAt), nil
}

// familyInsertArgs prepares arguments for family INSERT/UPSERT
// Returns: id, husband_id, wife_id, marriage, created_at, updated_at
func familyInsertArgs(f *domain.Family) ([]interface{}, error) {
	marriage, err := eventToNull(f.Marriage)
	if err != nil {
		return nil, fmt.Errorf("marshal marriage: %w", err)
	}

	return []interface{}{
		f.ID,
		stringToNull(f.HusbandID),
		stringToNull(f.WifeID),
		marriage,
		f.CreatedAt,
		f.UpdatedAt,
	}, nil
}
