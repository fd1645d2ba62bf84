package gedcom

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"famtree/internal/domain"
)

// ParsedPerson is an INDI record as read from a file. Empty strings mean the
// value was absent.
type ParsedPerson struct {
	Xref        string        `json:"xref"`
	GivenName   string        `json:"given_name,omitempty"`
	Surname     string        `json:"surname,omitempty"`
	FullName    string        `json:"full_name,omitempty"`
	Sex         domain.Sex    `json:"sex,omitempty"`
	Birth       *domain.Event `json:"birth,omitempty"`
	Christening *domain.Event `json:"christening,omitempty"`
	Death       *domain.Event `json:"death,omitempty"`
	Burial      *domain.Event `json:"burial,omitempty"`
}

// ParsedFamily is a FAM record as read from a file. Parent and child
// references are the raw, unresolved tokens.
type ParsedFamily struct {
	Xref          string        `json:"xref"`
	HusbandXref   string        `json:"husband_xref,omitempty"`
	WifeXref      string        `json:"wife_xref,omitempty"`
	ChildrenXrefs []string      `json:"children_xrefs"`
	Marriage      *domain.Event `json:"marriage,omitempty"`
}

// Diagnostic describes a problem found in the input. Line is zero when the
// problem is not tied to a single input line.
type Diagnostic struct {
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
	Text    string `json:"text,omitempty"`
}

func (d Diagnostic) String() string {
	msg := d.Message
	if d.Text != "" {
		msg = fmt.Sprintf("%s: %q", msg, d.Text)
	}
	if d.Line <= 0 {
		return msg
	}
	return fmt.Sprintf("line %d: %s", d.Line, msg)
}

// ParseResult holds everything Parse recovered from a document. Errors is
// reserved for stricter validation and is not populated by the line parser.
type ParseResult struct {
	People   []ParsedPerson `json:"people"`
	Families []ParsedFamily `json:"families"`
	Errors   []Diagnostic   `json:"errors"`
	Warnings []Diagnostic   `json:"warnings"`
}

// recordState is the record currently being built. Exactly one of
// idleState, *personState or *familyState.
type recordState interface {
	isRecordState()
}

type idleState struct{}

type personState struct {
	person *ParsedPerson
	sub    subState
}

type familyState struct {
	family *ParsedFamily
	sub    subState
}

func (idleState) isRecordState()    {}
func (*personState) isRecordState() {}
func (*familyState) isRecordState() {}

// subState is the level-1 structure that level-2 lines attach to. Exactly one
// of noSub, nameSub or eventSub.
type subState interface {
	isSubState()
}

type noSub struct{}

type nameSub struct{}

type eventSub struct {
	kind eventKind
}

func (noSub) isSubState()    {}
func (nameSub) isSubState()  {}
func (eventSub) isSubState() {}

type eventKind int

const (
	eventBirth eventKind = iota
	eventChristening
	eventDeath
	eventBurial
	eventMarriage
)

var personEventTags = map[string]eventKind{
	"BIRT": eventBirth,
	"CHR":  eventChristening,
	"DEAT": eventDeath,
	"BURI": eventBurial,
}

// eventSlot returns the field that holds the given event kind
func (p *ParsedPerson) eventSlot(kind eventKind) **domain.Event {
	switch kind {
	case eventBirth:
		return &p.Birth
	case eventChristening:
		return &p.Christening
	case eventDeath:
		return &p.Death
	case eventBurial:
		return &p.Burial
	default:
		var discard *domain.Event
		return &discard
	}
}

var namePattern = regexp.MustCompile(`^([^/]*)/([^/]*)/(.*)$`)

type parser struct {
	state  recordState
	result *ParseResult
}

// Parse decodes a GEDCOM document. It never fails; malformed input is
// reported through the result's warnings.
func Parse(text string) *ParseResult {
	p := &parser{
		state: idleState{},
		result: &ParseResult{
			People:   make([]ParsedPerson, 0),
			Families: make([]ParsedFamily, 0),
			Errors:   make([]Diagnostic, 0),
			Warnings: make([]Diagnostic, 0),
		},
	}

	for i, raw := range splitLines(text) {
		number := i + 1
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		ln, ok := parseLine(trimmed, number)
		if !ok {
			p.warn(number, "skipped line that is not LEVEL [XREF] TAG [VALUE]", trimmed)
			continue
		}
		p.handle(ln)
	}
	p.finalize()

	return p.result
}

// ParseReader reads r fully and parses it. The only error returned is a read error.
func ParseReader(r io.Reader) (*ParseResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GEDCOM: %w", err)
	}
	return Parse(string(data)), nil
}

func (p *parser) warn(number int, message, text string) {
	p.result.Warnings = append(p.result.Warnings, Diagnostic{Line: number, Message: message, Text: text})
}

func (p *parser) handle(ln line) {
	if ln.level == 0 {
		p.startRecord(ln)
		return
	}

	switch st := p.state.(type) {
	case idleState:
		// HEAD, SUBM, SOUR and other records are not decoded
	case *personState:
		p.handlePerson(st, ln)
	case *familyState:
		p.handleFamily(st, ln)
	}
}

func (p *parser) startRecord(ln line) {
	p.finalize()

	switch ln.tag {
	case "INDI":
		if ln.xref == "" {
			p.warn(ln.number, "INDI record without cross-reference ignored", "")
			return
		}
		p.state = &personState{person: &ParsedPerson{Xref: ln.xref}, sub: noSub{}}
	case "FAM":
		if ln.xref == "" {
			p.warn(ln.number, "FAM record without cross-reference ignored", "")
			return
		}
		p.state = &familyState{
			family: &ParsedFamily{Xref: ln.xref, ChildrenXrefs: make([]string, 0)},
			sub:    noSub{},
		}
	}
}

// finalize appends the open record, if any, and returns to idle
func (p *parser) finalize() {
	switch st := p.state.(type) {
	case *personState:
		p.result.People = append(p.result.People, *st.person)
	case *familyState:
		p.result.Families = append(p.result.Families, *st.family)
	case idleState:
	}
	p.state = idleState{}
}

func (p *parser) handlePerson(st *personState, ln line) {
	switch ln.level {
	case 1:
		st.sub = noSub{}
		switch ln.tag {
		case "NAME":
			applyName(st.person, UnescapeText(ln.value))
			st.sub = nameSub{}
		case "SEX":
			st.person.Sex = parseSexTag(ln.value)
		default:
			if kind, ok := personEventTags[ln.tag]; ok {
				st.sub = eventSub{kind: kind}
			}
		}
	case 2:
		switch sub := st.sub.(type) {
		case eventSub:
			applyEventDetail(st.person.eventSlot(sub.kind), ln)
		case nameSub:
			switch ln.tag {
			case "GIVN":
				st.person.GivenName = strings.TrimSpace(UnescapeText(ln.value))
			case "SURN":
				st.person.Surname = strings.TrimSpace(UnescapeText(ln.value))
			}
		case noSub:
		}
	}
}

func (p *parser) handleFamily(st *familyState, ln line) {
	switch ln.level {
	case 1:
		st.sub = noSub{}
		switch ln.tag {
		case "HUSB", "WIFE", "CHIL":
			token := strings.TrimSpace(ln.value)
			if !IsXref(token) {
				p.warn(ln.number, ln.tag+" value is not a cross-reference", ln.value)
				return
			}
			switch ln.tag {
			case "HUSB":
				st.family.HusbandXref = token
			case "WIFE":
				st.family.WifeXref = token
			case "CHIL":
				st.family.ChildrenXrefs = append(st.family.ChildrenXrefs, token)
			}
		case "MARR":
			st.sub = eventSub{kind: eventMarriage}
		}
	case 2:
		if sub, ok := st.sub.(eventSub); ok && sub.kind == eventMarriage {
			applyEventDetail(&st.family.Marriage, ln)
		}
	}
}

// applyEventDetail writes a DATE or PLAC line onto the event, creating it on
// first use. A repeated line overwrites the earlier value.
func applyEventDetail(slot **domain.Event, ln line) {
	if ln.tag != "DATE" && ln.tag != "PLAC" {
		return
	}
	if *slot == nil {
		*slot = &domain.Event{}
	}
	value := strings.TrimSpace(UnescapeText(ln.value))
	if ln.tag == "DATE" {
		(*slot).Date = value
	} else {
		(*slot).Place = value
	}
}

// applyName decodes "Given /Surname/". Values without the slash pattern become
// the full name with given name and surname left empty.
func applyName(person *ParsedPerson, value string) {
	person.FullName = strings.Join(strings.Fields(strings.ReplaceAll(value, "/", " ")), " ")

	m := namePattern.FindStringSubmatch(value)
	if m == nil {
		person.GivenName = ""
		person.Surname = ""
		return
	}
	person.GivenName = strings.Join(strings.Fields(m[1]), " ")
	person.Surname = strings.TrimSpace(m[2])
}

func parseSexTag(value string) domain.Sex {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "M":
		return domain.SexMale
	case "F":
		return domain.SexFemale
	default:
		return ""
	}
}
