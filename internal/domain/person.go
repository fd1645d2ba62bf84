package domain

import (
	"strings"
	"time"
)

// Sex represents the recorded sex of a person
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

// ParseSex maps free-form input to a Sex. Unrecognised values map to SexUnknown.
func ParseSex(s string) Sex {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male":
		return SexMale
	case "f", "female":
		return SexFemale
	default:
		return SexUnknown
	}
}

// Event is a dated, placed life event. Both fields are optional.
type Event struct {
	Date  string `json:"date,omitempty" yaml:"date,omitempty"`
	Place string `json:"place,omitempty" yaml:"place,omitempty"`
}

// IsZero reports whether the event carries neither a date nor a place
func (e *Event) IsZero() bool {
	return e == nil || (e.Date == "" && e.Place == "")
}

// Person represents an individual in the tree
type Person struct {
	ID          string           `json:"id"`
	GivenName   string           `json:"given_name,omitempty"`
	Surname     string           `json:"surname,omitempty"`
	FullName    string           `json:"full_name"`
	Sex         Sex              `json:"sex"`
	Birth       *Event           `json:"birth,omitempty"`
	Christening *Event           `json:"christening,omitempty"`
	Death       *Event           `json:"death,omitempty"`
	Burial      *Event           `json:"burial,omitempty"`
	Living      bool             `json:"living"`
	Sources     []SourceCitation `json:"sources,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewPerson creates a person with the given name parts. The full name is
// derived from given name and surname.
func NewPerson(id, given, surname string) *Person {
	now := time.Now()
	return &Person{
		ID:        id,
		GivenName: given,
		Surname:   surname,
		FullName:  JoinName(given, surname),
		Sex:       SexUnknown,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DisplayName returns the best available name for display
func (p *Person) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return JoinName(p.GivenName, p.Surname)
}

// AddSource attaches a citation unless one with the same ID is already attached
func (p *Person) AddSource(src SourceCitation) {
	for _, existing := range p.Sources {
		if existing.ID == src.ID {
			return
		}
	}
	p.Sources = append(p.Sources, src)
}

// JoinName joins name parts with single spaces, skipping empty parts
func JoinName(parts ...string) string {
	var nonEmpty []string
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, " ")
}
