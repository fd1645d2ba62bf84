package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"famtree/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite repository. dbPath may be ":memory:".
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS people (
		id TEXT PRIMARY KEY,
		given_name TEXT,
		surname TEXT,
		full_name TEXT,
		sex TEXT NOT NULL DEFAULT 'unknown',
		birth JSON,
		christening JSON,
		death JSON,
		burial JSON,
		living INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS families (
		id TEXT PRIMARY KEY,
		husband_id TEXT,
		wife_id TEXT,
		marriage JSON,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (husband_id) REFERENCES people(id) ON DELETE SET NULL,
		FOREIGN KEY (wife_id) REFERENCES people(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS family_children (
		family_id TEXT NOT NULL,
		person_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (family_id, position),
		FOREIGN KEY (family_id) REFERENCES families(id) ON DELETE CASCADE,
		FOREIGN KEY (person_id) REFERENCES people(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		name TEXT,
		url TEXT,
		content TEXT
	);

	CREATE TABLE IF NOT EXISTS person_sources (
		person_id TEXT NOT NULL,
		source_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (person_id, source_id),
		FOREIGN KEY (person_id) REFERENCES people(id) ON DELETE CASCADE,
		FOREIGN KEY (source_id) REFERENCES sources(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_families_husband ON families(husband_id);
	CREATE INDEX IF NOT EXISTS idx_families_wife ON families(wife_id);
	CREATE INDEX IF NOT EXISTS idx_family_children_person ON family_children(person_id);
	CREATE INDEX IF NOT EXISTS idx_person_sources_source ON person_sources(source_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// withTx runs fn inside a transaction, rolling back on error
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// stamp fills in missing timestamps before a write
func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

// ============================================================================
// People
// ============================================================================

// CreatePerson inserts a new person. It fails if the ID already exists.
func (r *Repository) CreatePerson(ctx context.Context, person *domain.Person) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return writePerson(ctx, tx, person, false)
	})
}

// UpsertPerson inserts or updates a person along with its citations
func (r *Repository) UpsertPerson(ctx context.Context, person *domain.Person) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return writePerson(ctx, tx, person, true)
	})
}

func writePerson(ctx context.Context, q querier, person *domain.Person, upsert bool) error {
	stamp(&person.CreatedAt, &person.UpdatedAt)

	args, err := personInsertArgs(person)
	if err != nil {
		return fmt.Errorf("failed to prepare person %s: %w", person.ID, err)
	}

	query := `
		INSERT INTO people (` + personColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if upsert {
		query += `
		ON CONFLICT(id) DO UPDATE SET
			given_name = excluded.given_name,
			surname = excluded.surname,
			full_name = excluded.full_name,
			sex = excluded.sex,
			birth = excluded.birth,
			christening = excluded.christening,
			death = excluded.death,
			burial = excluded.burial,
			living = excluded.living,
			updated_at = excluded.updated_at`
	}

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert person %s: %w", person.ID, err)
	}

	if err := replacePersonSources(ctx, q, person); err != nil {
		return fmt.Errorf("failed to update citations for %s: %w", person.ID, err)
	}

	return nil
}

func replacePersonSources(ctx context.Context, q querier, person *domain.Person) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM person_sources WHERE person_id = ?`, person.ID); err != nil {
		return err
	}

	for i := range person.Sources {
		src := &person.Sources[i]
		if err := writeSource(ctx, q, src); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO person_sources (person_id, source_id, position)
			VALUES (?, ?, ?)
			ON CONFLICT(person_id, source_id) DO NOTHING
		`, person.ID, src.ID, i); err != nil {
			return err
		}
	}

	return nil
}

// GetPerson retrieves a single person with citations
func (r *Repository) GetPerson(ctx context.Context, id string) (*domain.Person, error) {
	var row personRow
	err := r.db.QueryRowContext(ctx, `
		SELECT `+personColumns+` FROM people WHERE id = ?
	`, id).Scan(row.scanArgs()...)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query person: %w", err)
	}

	person, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("failed to decode person %s: %w", id, err)
	}

	sources, err := r.loadSources(ctx, `WHERE ps.person_id = ?`, id)
	if err != nil {
		return nil, err
	}
	person.Sources = sources[id]

	return person, nil
}

// ListPeople returns people in insertion order. Living people are omitted
// unless includeLiving is set.
func (r *Repository) ListPeople(ctx context.Context, includeLiving bool) ([]domain.Person, error) {
	query := `SELECT ` + personColumns + ` FROM people`
	if !includeLiving {
		query += ` WHERE living = 0`
	}
	query += ` ORDER BY rowid`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query people: %w", err)
	}
	defer rows.Close()

	people := make([]domain.Person, 0)
	for rows.Next() {
		var row personRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		person, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("failed to decode person %s: %w", row.ID, err)
		}
		people = append(people, *person)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating people: %w", err)
	}

	sources, err := r.loadSources(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range people {
		people[i].Sources = sources[people[i].ID]
	}

	return people, nil
}

// loadSources returns citations keyed by person ID in attachment order
func (r *Repository) loadSources(ctx context.Context, where string, args ...any) (map[string][]domain.SourceCitation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ps.person_id, s.id, s.name, s.url, s.content
		FROM person_sources ps
		JOIN sources s ON s.id = ps.source_id
		`+where+`
		ORDER BY ps.person_id, ps.position
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query citations: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.SourceCitation)
	for rows.Next() {
		var (
			personID, id       string
			name, url, content sql.NullString
		)
		if err := rows.Scan(&personID, &id, &name, &url, &content); err != nil {
			return nil, fmt.Errorf("failed to scan citation: %w", err)
		}
		out[personID] = append(out[personID], domain.SourceCitation{
			ID:      id,
			Name:    nullToString(name),
			URL:     nullToString(url),
			Content: nullToString(content),
		})
	}

	return out, rows.Err()
}

// DeletePerson removes a person. Families keep their other members.
func (r *Repository) DeletePerson(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM people WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}
	return nil
}

// ============================================================================
// Families
// ============================================================================

// CreateFamily inserts a new family. It fails if the ID already exists or a
// member is unknown.
func (r *Repository) CreateFamily(ctx context.Context, family *domain.Family) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return writeFamily(ctx, tx, family, false)
	})
}

// UpsertFamily inserts or updates a family and replaces its children
func (r *Repository) UpsertFamily(ctx context.Context, family *domain.Family) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return writeFamily(ctx, tx, family, true)
	})
}

func writeFamily(ctx context.Context, q querier, family *domain.Family, upsert bool) error {
	stamp(&family.CreatedAt, &family.UpdatedAt)

	args, err := familyInsertArgs(family)
	if err != nil {
		return fmt.Errorf("failed to prepare family %s: %w", family.ID, err)
	}

	query := `
		INSERT INTO families (` + familyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)`
	if upsert {
		query += `
		ON CONFLICT(id) DO UPDATE SET
			husband_id = excluded.husband_id,
			wife_id = excluded.wife_id,
			marriage = excluded.marriage,
			updated_at = excluded.updated_at`
	}

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert family %s: %w", family.ID, err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM family_children WHERE family_id = ?`, family.ID); err != nil {
		return fmt.Errorf("failed to clear children of %s: %w", family.ID, err)
	}
	for i, childID := range family.ChildIDs {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO family_children (family_id, person_id, position) VALUES (?, ?, ?)
		`, family.ID, childID, i); err != nil {
			return fmt.Errorf("failed to add child %s to %s: %w", childID, family.ID, err)
		}
	}

	return nil
}

// GetFamily retrieves a single family with children in order
func (r *Repository) GetFamily(ctx context.Context, id string) (*domain.Family, error) {
	var row familyRow
	err := r.db.QueryRowContext(ctx, `
		SELECT `+familyColumns+` FROM families WHERE id = ?
	`, id).Scan(row.scanArgs()...)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query family: %w", err)
	}

	family, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("failed to decode family %s: %w", id, err)
	}

	children, err := r.loadChildren(ctx, `WHERE family_id = ?`, id)
	if err != nil {
		return nil, err
	}
	if ids, ok := children[id]; ok {
		family.ChildIDs = ids
	}

	return family, nil
}

// ListFamilies returns all families in insertion order
func (r *Repository) ListFamilies(ctx context.Context) ([]domain.Family, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+familyColumns+` FROM families ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	families := make([]domain.Family, 0)
	for rows.Next() {
		var row familyRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		family, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("failed to decode family %s: %w", row.ID, err)
		}
		families = append(families, *family)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating families: %w", err)
	}

	children, err := r.loadChildren(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range families {
		if ids, ok := children[families[i].ID]; ok {
			families[i].ChildIDs = ids
		}
	}

	return families, nil
}

// loadChildren returns child IDs keyed by family ID in position order
func (r *Repository) loadChildren(ctx context.Context, where string, args ...any) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT family_id, person_id FROM family_children
		`+where+`
		ORDER BY family_id, position
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var familyID, personID string
		if err := rows.Scan(&familyID, &personID); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		out[familyID] = append(out[familyID], personID)
	}

	return out, rows.Err()
}

// DeleteFamily removes a family. Its members are kept.
func (r *Repository) DeleteFamily(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM families WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete family: %w", err)
	}
	return nil
}

// ============================================================================
// Sources
// ============================================================================

// UpsertSource inserts or updates a source record
func (r *Repository) UpsertSource(ctx context.Context, source *domain.SourceCitation) error {
	if err := writeSource(ctx, r.db, source); err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

func writeSource(ctx context.Context, q querier, source *domain.SourceCitation) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO sources (id, name, url, content) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			content = excluded.content
	`, source.ID, stringToNull(source.Name), stringToNull(source.URL), stringToNull(source.Content))
	return err
}

// GetSource retrieves a single source record
func (r *Repository) GetSource(ctx context.Context, id string) (*domain.SourceCitation, error) {
	var name, url, content sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT name, url, content FROM sources WHERE id = ?
	`, id).Scan(&name, &url, &content)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}

	return &domain.SourceCitation{
		ID:      id,
		Name:    nullToString(name),
		URL:     nullToString(url),
		Content: nullToString(content),
	}, nil
}

// AttachSource cites an existing source on a person, after any existing
// citations. Attaching the same source twice is a no-op.
func (r *Repository) AttachSource(ctx context.Context, personID, sourceID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO person_sources (person_id, source_id, position)
		SELECT ?, ?, COALESCE(MAX(position) + 1, 0) FROM person_sources WHERE person_id = ?
		ON CONFLICT(person_id, source_id) DO NOTHING
	`, personID, sourceID, personID)
	if err != nil {
		return fmt.Errorf("failed to attach source %s to %s: %w", sourceID, personID, err)
	}
	return nil
}

// ============================================================================
// Bulk Operations
// ============================================================================

// ImportTree upserts every person and family of the fragment in one transaction
func (r *Repository) ImportTree(ctx context.Context, fragment *domain.TreeFragment) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for i := range fragment.People {
			if err := writePerson(ctx, tx, &fragment.People[i], true); err != nil {
				return err
			}
		}
		for i := range fragment.Families {
			if err := writeFamily(ctx, tx, &fragment.Families[i], true); err != nil {
				return err
			}
		}
		return nil
	})
}

// ClearTree removes all people, families and sources. Metadata is kept.
func (r *Repository) ClearTree(ctx context.Context) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"family_children", "person_sources", "families", "people", "sources"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// ============================================================================
// Metadata
// ============================================================================

// SetMetadata stores a metadata value
func (r *Repository) SetMetadata(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata %s: %w", key, err)
	}
	return nil
}

// GetMetadata returns a metadata value, or "" when unset
func (r *Repository) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata %s: %w", key, err)
	}
	return value, nil
}
