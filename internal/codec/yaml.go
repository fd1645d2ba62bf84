package codec

import (
	"fmt"
	"io"

	"famtree/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export of a tree
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlTree is the on-disk YAML layout
type yamlTree struct {
	People   []yamlPerson `yaml:"people"`
	Families []yamlFamily `yaml:"families"`
}

type yamlPerson struct {
	ID          string                  `yaml:"id"`
	GivenName   string                  `yaml:"given_name,omitempty"`
	Surname     string                  `yaml:"surname,omitempty"`
	FullName    string                  `yaml:"full_name,omitempty"`
	Sex         string                  `yaml:"sex,omitempty"`
	Birth       *domain.Event           `yaml:"birth,omitempty"`
	Christening *domain.Event           `yaml:"christening,omitempty"`
	Death       *domain.Event           `yaml:"death,omitempty"`
	Burial      *domain.Event           `yaml:"burial,omitempty"`
	Living      bool                    `yaml:"living,omitempty"`
	Sources     []domain.SourceCitation `yaml:"sources,omitempty"`
}

type yamlFamily struct {
	ID        string        `yaml:"id"`
	HusbandID string        `yaml:"husband,omitempty"`
	WifeID    string        `yaml:"wife,omitempty"`
	Marriage  *domain.Event `yaml:"marriage,omitempty"`
	Children  []string      `yaml:"children,omitempty"`
}

// Parse imports a tree from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*domain.TreeFragment, error) {
	var yt yamlTree
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&yt); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	fragment := domain.NewTreeFragment()

	for _, yp := range yt.People {
		person := domain.Person{
			ID:          yp.ID,
			GivenName:   yp.GivenName,
			Surname:     yp.Surname,
			FullName:    yp.FullName,
			Sex:         domain.ParseSex(yp.Sex),
			Birth:       yp.Birth,
			Christening: yp.Christening,
			Death:       yp.Death,
			Burial:      yp.Burial,
			Living:      yp.Living,
			Sources:     yp.Sources,
		}
		if person.FullName == "" {
			person.FullName = domain.JoinName(person.GivenName, person.Surname)
		}
		fragment.AddPerson(person)
	}

	for _, yf := range yt.Families {
		family := domain.Family{
			ID:        yf.ID,
			HusbandID: yf.HusbandID,
			WifeID:    yf.WifeID,
			Marriage:  yf.Marriage,
			ChildIDs:  yf.Children,
		}
		if family.ChildIDs == nil {
			family.ChildIDs = make([]string, 0)
		}
		fragment.AddFamily(family)
	}

	return fragment, nil
}

// Export exports a tree to YAML
func (c *YAMLCodec) Export(fragment *domain.TreeFragment, w io.Writer) error {
	yt := yamlTree{
		People:   make([]yamlPerson, 0, len(fragment.People)),
		Families: make([]yamlFamily, 0, len(fragment.Families)),
	}

	for _, p := range fragment.People {
		yt.People = append(yt.People, yamlPerson{
			ID:          p.ID,
			GivenName:   p.GivenName,
			Surname:     p.Surname,
			FullName:    p.FullName,
			Sex:         string(p.Sex),
			Birth:       p.Birth,
			Christening: p.Christening,
			Death:       p.Death,
			Burial:      p.Burial,
			Living:      p.Living,
			Sources:     p.Sources,
		})
	}

	for _, f := range fragment.Families {
		yt.Families = append(yt.Families, yamlFamily{
			ID:        f.ID,
			HusbandID: f.HusbandID,
			WifeID:    f.WifeID,
			Marriage:  f.Marriage,
			Children:  f.ChildIDs,
		})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&yt); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
