package classify

import (
	_ "embed"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
)

//go:embed categories.yaml
var defaultTable []byte

// AuxSpec names a closure handed to the extractors
type AuxSpec struct {
	Name  string          `yaml:"name"`
	Seeds []model.ClassID `yaml:"seeds"`
}

// Spec declares how one category's membership set is built
type Spec struct {
	Code      model.Category  `yaml:"code"`
	Fixed     []model.ClassID `yaml:"fixed,omitempty"`
	Seeds     []model.ClassID `yaml:"seeds,omitempty"`
	Exclude   []model.ClassID `yaml:"exclude,omitempty"`
	Auxiliary []AuxSpec       `yaml:"auxiliary,omitempty"`
}

// Table is the declarative category table
type Table struct {
	Categories []Spec `yaml:"categories"`
}

// DefaultTable returns the built-in table
func DefaultTable() *Table {
	t, err := ParseTable(defaultTable)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTable reads a table from path, or the built-in table when path is empty
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read category table %s", path)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a YAML table
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse category table"), errors.ErrInvalidConfig)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate rejects unknown or repeated codes and empty memberships
func (t *Table) Validate() error {
	seen := make(map[model.Category]bool)
	for _, s := range t.Categories {
		if !s.Code.Valid() {
			return errors.NewInvalidConfig("unknown category code %q", s.Code)
		}
		if seen[s.Code] {
			return errors.NewInvalidConfig("category %s declared twice", s.Code)
		}
		seen[s.Code] = true
		if len(s.Fixed) == 0 && len(s.Seeds) == 0 {
			return errors.NewInvalidConfig("category %s has neither fixed ids nor seeds", s.Code)
		}
		names := make(map[string]bool)
		for _, a := range s.Auxiliary {
			if a.Name == "" || len(a.Seeds) == 0 {
				return errors.NewInvalidConfig("category %s has an auxiliary closure without name or seeds", s.Code)
			}
			if names[a.Name] {
				return errors.NewInvalidConfig("category %s repeats auxiliary closure %q", s.Code, a.Name)
			}
			names[a.Name] = true
		}
	}
	return nil
}

// Spec returns the entry for c
func (t *Table) Spec(c model.Category) (Spec, bool) {
	for _, s := range t.Categories {
		if s.Code == c {
			return s, true
		}
	}
	return Spec{}, false
}
