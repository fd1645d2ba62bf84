package gedcom

import (
	"strconv"
	"strings"
	"time"

	"famtree/internal/domain"
)

const (
	// ProductName is written to HEAD.SOUR and HEAD.SOUR.NAME
	ProductName = "FamTree"
	// ProductVersion is written to HEAD.SOUR.VERS
	ProductVersion = "1.0"
	// DefaultSubmitterName is used when ExportOptions.SubmitterName is empty
	DefaultSubmitterName = "FamTree User"

	gedcomVersion = "5.5.1"
	gedcomForm    = "LINEAGE-LINKED"
	charset       = "UTF-8"
	submitterXref = "@SUB1@"
	lineSeparator = "\r\n"
)

// ExportOptions controls what Export emits
type ExportOptions struct {
	// IncludeLiving keeps people flagged as living. When false they are
	// dropped entirely, along with families left without an eligible member.
	IncludeLiving bool
	// IncludeSources emits SOUR citations and records
	IncludeSources bool
	// SubmitterName is written to the SUBM record
	SubmitterName string
	// Now supplies the header DATE; defaults to time.Now
	Now func() time.Time
}

// DefaultExportOptions returns the default options: living people excluded,
// sources included, default submitter.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		IncludeLiving:  false,
		IncludeSources: true,
		SubmitterName:  DefaultSubmitterName,
	}
}

// exporter accumulates output lines for a single Export call
type exporter struct {
	opts     ExportOptions
	lines    []string
	eligible map[string]bool
}

// Export serializes people and families into a GEDCOM 5.5.1 document.
// Output is deterministic for identical input except for the header DATE.
func Export(people []domain.Person, families []domain.Family, opts ExportOptions) string {
	if opts.SubmitterName == "" {
		opts.SubmitterName = DefaultSubmitterName
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &exporter{
		opts:     opts,
		lines:    make([]string, 0, 16+len(people)*8+len(families)*5),
		eligible: make(map[string]bool, len(people)),
	}

	e.writeHeader()

	var included []*domain.Person
	for i := range people {
		p := &people[i]
		if p.Living && !opts.IncludeLiving {
			continue
		}
		included = append(included, p)
		e.eligible[p.ID] = true
	}

	for _, p := range included {
		e.writePerson(p)
	}

	for i := range families {
		e.writeFamily(&families[i])
	}

	if opts.IncludeSources {
		e.writeSources(included)
	}

	e.emit(0, "", "TRLR", "")

	return strings.Join(e.lines, lineSeparator)
}

func (e *exporter) emit(level int, xref, tag, value string) {
	var b strings.Builder
	b.WriteString(strconv.Itoa(level))
	if xref != "" {
		b.WriteByte(' ')
		b.WriteString(xref)
	}
	b.WriteByte(' ')
	b.WriteString(tag)
	if value != "" {
		b.WriteByte(' ')
		b.WriteString(value)
	}
	e.lines = append(e.lines, b.String())
}

func (e *exporter) writeHeader() {
	e.emit(0, "", "HEAD", "")
	e.emit(1, "", "SOUR", ProductName)
	e.emit(2, "", "VERS", ProductVersion)
	e.emit(2, "", "NAME", ProductName)
	e.emit(1, "", "DEST", "ANY")
	e.emit(1, "", "DATE", formatTime(e.opts.Now()))
	e.emit(1, "", "GEDC", "")
	e.emit(2, "", "VERS", gedcomVersion)
	e.emit(2, "", "FORM", gedcomForm)
	e.emit(1, "", "CHAR", charset)
	e.emit(1, "", "SUBM", submitterXref)

	e.emit(0, submitterXref, "SUBM", "")
	e.emit(1, "", "NAME", EscapeText(e.opts.SubmitterName))
}

func (e *exporter) writePerson(p *domain.Person) {
	e.emit(0, GenerateXref(XrefIndividual, p.ID), "INDI", "")

	given := givenName(p)
	surname := strings.TrimSpace(p.Surname)
	if given != "" || surname != "" {
		name := strings.TrimSpace(EscapeText(given) + " /" + EscapeText(surname) + "/")
		e.emit(1, "", "NAME", name)
		if given != "" {
			e.emit(2, "", "GIVN", EscapeText(given))
		}
		if surname != "" {
			e.emit(2, "", "SURN", EscapeText(surname))
		}
	}

	switch domain.ParseSex(string(p.Sex)) {
	case domain.SexMale:
		e.emit(1, "", "SEX", "M")
	case domain.SexFemale:
		e.emit(1, "", "SEX", "F")
	}

	e.writeEvent("BIRT", p.Birth)
	e.writeEvent("CHR", p.Christening)
	e.writeEvent("DEAT", p.Death)
	e.writeEvent("BURI", p.Burial)

	if e.opts.IncludeSources {
		for _, src := range p.Sources {
			e.emit(1, "", "SOUR", GenerateXref(XrefSource, src.ID))
		}
	}
}

// givenName falls back to the full name with the surname removed
func givenName(p *domain.Person) string {
	if given := strings.TrimSpace(p.GivenName); given != "" {
		return given
	}
	full := p.FullName
	if p.Surname != "" {
		full = strings.Replace(full, p.Surname, "", 1)
	}
	return strings.Join(strings.Fields(full), " ")
}

func (e *exporter) writeEvent(tag string, ev *domain.Event) {
	if ev.IsZero() {
		return
	}
	e.emit(1, "", tag, "")
	if ev.Date != "" {
		e.emit(2, "", "DATE", FormatDate(ev.Date))
	}
	if ev.Place != "" {
		e.emit(2, "", "PLAC", EscapeText(ev.Place))
	}
}

func (e *exporter) writeFamily(f *domain.Family) {
	husband := f.HusbandID != "" && e.eligible[f.HusbandID]
	wife := f.WifeID != "" && e.eligible[f.WifeID]

	var children []string
	for _, id := range f.ChildIDs {
		if e.eligible[id] {
			children = append(children, id)
		}
	}

	if !husband && !wife && len(children) == 0 {
		return
	}

	e.emit(0, GenerateXref(XrefFamily, f.ID), "FAM", "")
	if husband {
		e.emit(1, "", "HUSB", GenerateXref(XrefIndividual, f.HusbandID))
	}
	if wife {
		e.emit(1, "", "WIFE", GenerateXref(XrefIndividual, f.WifeID))
	}
	for _, id := range children {
		e.emit(1, "", "CHIL", GenerateXref(XrefIndividual, id))
	}
	e.writeEvent("MARR", f.Marriage)
}

func (e *exporter) writeSources(people []*domain.Person) {
	seen := make(map[string]bool)
	for _, p := range people {
		for _, src := range p.Sources {
			if seen[src.ID] {
				continue
			}
			seen[src.ID] = true

			e.emit(0, GenerateXref(XrefSource, src.ID), "SOUR", "")
			if src.Name != "" {
				e.emit(1, "", "TITL", EscapeText(src.Name))
			}
			if src.URL != "" {
				e.emit(1, "", "NOTE", "URL: "+EscapeText(src.URL))
			}
			if src.Content != "" {
				e.emit(1, "", "TEXT", EscapeText(src.Content))
			}
		}
	}
}
