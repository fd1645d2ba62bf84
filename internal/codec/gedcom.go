package codec

import (
	"fmt"
	"io"
	"strings"

	"famtree/internal/domain"
	"famtree/internal/gedcom"
)

// GEDCOMCodec adapts the gedcom package to the Importer and Exporter interfaces
type GEDCOMCodec struct {
	opts gedcom.ExportOptions
}

// NewGEDCOMCodec creates a GEDCOM codec that exports with opts
func NewGEDCOMCodec(opts gedcom.ExportOptions) *GEDCOMCodec {
	return &GEDCOMCodec{opts: opts}
}

// Format returns the codec format identifier
func (c *GEDCOMCodec) Format() string {
	return "gedcom"
}

// Parse imports a tree from GEDCOM. Record IDs are the xrefs without their
// delimiters; diagnostics are dropped. Use Convert to keep them.
func (c *GEDCOMCodec) Parse(r io.Reader) (*domain.TreeFragment, error) {
	result, err := gedcom.ParseReader(r)
	if err != nil {
		return nil, err
	}
	return Convert(result, XrefID).Fragment, nil
}

// Export writes the fragment as a GEDCOM document
func (c *GEDCOMCodec) Export(fragment *domain.TreeFragment, w io.Writer) error {
	text := gedcom.Export(fragment.People, fragment.Families, c.opts)
	if _, err := io.WriteString(w, text); err != nil {
		return fmt.Errorf("failed to write GEDCOM: %w", err)
	}
	return nil
}

// XrefID derives a record ID from an xref by dropping the @ delimiters
func XrefID(xref string) string {
	return strings.Trim(xref, "@")
}

// Conversion is a parsed document mapped onto the domain model
type Conversion struct {
	Fragment *domain.TreeFragment
	// IDs maps each accepted INDI xref to the person ID it was given
	IDs map[string]string
	// Xrefs maps every assigned person and family ID back to its xref
	Xrefs map[string]string
	// Warnings covers parser warnings followed by mapping warnings
	Warnings []gedcom.Diagnostic
}

// Convert maps parsed records onto domain people and families. newID assigns
// the ID of each person and family from its xref. A repeated INDI xref keeps
// its first mapping. Family references that match no person are dropped with a
// warning. Exact GEDCOM dates are converted back to ISO form.
func Convert(result *gedcom.ParseResult, newID func(xref string) string) *Conversion {
	conv := &Conversion{
		Fragment: domain.NewTreeFragment(),
		IDs:      make(map[string]string, len(result.People)),
		Xrefs:    make(map[string]string, len(result.People)+len(result.Families)),
		Warnings: append([]gedcom.Diagnostic(nil), result.Warnings...),
	}

	for _, pp := range result.People {
		if _, dup := conv.IDs[pp.Xref]; dup {
			conv.warn("duplicate INDI cross-reference ignored", pp.Xref)
			continue
		}
		person := personFromParsed(pp, newID(pp.Xref))
		conv.IDs[pp.Xref] = person.ID
		conv.Xrefs[person.ID] = pp.Xref
		conv.Fragment.AddPerson(person)
	}

	familyXrefs := make(map[string]bool, len(result.Families))
	for _, pf := range result.Families {
		if familyXrefs[pf.Xref] {
			conv.warn("duplicate FAM cross-reference ignored", pf.Xref)
			continue
		}
		familyXrefs[pf.Xref] = true

		family := domain.Family{
			ID:        newID(pf.Xref),
			HusbandID: conv.resolve(pf.Xref, "HUSB", pf.HusbandXref),
			WifeID:    conv.resolve(pf.Xref, "WIFE", pf.WifeXref),
			Marriage:  isoEvent(pf.Marriage),
			ChildIDs:  make([]string, 0, len(pf.ChildrenXrefs)),
		}
		for _, xref := range pf.ChildrenXrefs {
			if id := conv.resolve(pf.Xref, "CHIL", xref); id != "" {
				family.ChildIDs = append(family.ChildIDs, id)
			}
		}
		conv.Xrefs[family.ID] = pf.Xref
		conv.Fragment.AddFamily(family)
	}

	return conv
}

func (c *Conversion) warn(message, text string) {
	c.Warnings = append(c.Warnings, gedcom.Diagnostic{Message: message, Text: text})
}

// resolve maps a family member xref to a person ID, warning when it is unknown
func (c *Conversion) resolve(familyXref, tag, xref string) string {
	if xref == "" {
		return ""
	}
	id, ok := c.IDs[xref]
	if !ok {
		c.warn(fmt.Sprintf("family %s: %s references unknown individual", familyXref, tag), xref)
		return ""
	}
	return id
}

func personFromParsed(pp gedcom.ParsedPerson, id string) domain.Person {
	person := domain.Person{
		ID:          id,
		GivenName:   pp.GivenName,
		Surname:     pp.Surname,
		FullName:    pp.FullName,
		Sex:         pp.Sex,
		Birth:       isoEvent(pp.Birth),
		Christening: isoEvent(pp.Christening),
		Death:       isoEvent(pp.Death),
		Burial:      isoEvent(pp.Burial),
	}
	if person.Sex == "" {
		person.Sex = domain.SexUnknown
	}
	if person.FullName == "" {
		person.FullName = domain.JoinName(person.GivenName, person.Surname)
	}
	return person
}

// isoEvent copies ev, converting an exact GEDCOM date to ISO form
func isoEvent(ev *domain.Event) *domain.Event {
	if ev == nil {
		return nil
	}
	out := *ev
	if iso, ok := gedcom.ParseDate(ev.Date); ok {
		out.Date = iso
	}
	return &out
}
