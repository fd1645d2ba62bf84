package domain

import "time"

// Family links parents and children by person ID
type Family struct {
	ID        string    `json:"id"`
	HusbandID string    `json:"husband_id,omitempty"`
	WifeID    string    `json:"wife_id,omitempty"`
	Marriage  *Event    `json:"marriage,omitempty"`
	ChildIDs  []string  `json:"child_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewFamily creates a family with the given parents. Either parent may be empty.
func NewFamily(id, husbandID, wifeID string) *Family {
	now := time.Now()
	return &Family{
		ID:        id,
		HusbandID: husbandID,
		WifeID:    wifeID,
		ChildIDs:  make([]string, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddChild appends a child ID. Duplicates are kept; order is significant.
func (f *Family) AddChild(personID string) {
	f.ChildIDs = append(f.ChildIDs, personID)
}

// MemberIDs returns husband, wife and child IDs in that order, skipping empty parents
func (f *Family) MemberIDs() []string {
	ids := make([]string, 0, len(f.ChildIDs)+2)
	if f.HusbandID != "" {
		ids = append(ids, f.HusbandID)
	}
	if f.WifeID != "" {
		ids = append(ids, f.WifeID)
	}
	return append(ids, f.ChildIDs...)
}

// HasMember reports whether the person is a parent or child of the family
func (f *Family) HasMember(personID string) bool {
	for _, id := range f.MemberIDs() {
		if id == personID {
			return true
		}
	}
	return false
}
