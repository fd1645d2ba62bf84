package domain

// TreeFragment represents a partial tree for import/export operations
type TreeFragment struct {
	People   []Person `json:"people"`
	Families []Family `json:"families"`
}

// NewTreeFragment creates an empty tree fragment
func NewTreeFragment() *TreeFragment {
	return &TreeFragment{
		People:   make([]Person, 0),
		Families: make([]Family, 0),
	}
}

// AddPerson adds a person to the fragment
func (t *TreeFragment) AddPerson(person Person) {
	t.People = append(t.People, person)
}

// AddFamily adds a family to the fragment
func (t *TreeFragment) AddFamily(family Family) {
	t.Families = append(t.Families, family)
}

// Sources returns the distinct citations attached to the fragment's people,
// in first-seen order
func (t *TreeFragment) Sources() []SourceCitation {
	seen := make(map[string]bool)
	var out []SourceCitation
	for _, p := range t.People {
		for _, src := range p.Sources {
			if seen[src.ID] {
				continue
			}
			seen[src.ID] = true
			out = append(out, src)
		}
	}
	return out
}
