// Package scenarios holds the fixed case files that constrain the game master to a predictable, solvable plot.
package scenarios

import (
	"bytes"
	_ "embed"
	"log/slog"
	"strings"

	"github.com/myrjola/noir/internal/errors"
	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var defaultCatalogue []byte

// Scenario is a pre-authored plot with a victim, a designated killer and a minimal clue path.
type Scenario struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	// Addendum is appended verbatim to the system instruction.
	Addendum string `yaml:"addendum" json:"-"`
}

// Catalogue is an ordered, read-only collection of scenarios.
type Catalogue struct {
	scenarios []Scenario
	byID      map[string]int
}

// Parse decodes a YAML list of scenarios. Ids must be unique and every scenario needs an addendum.
func Parse(data []byte) (*Catalogue, error) {
	var scenarios []Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenarios); err != nil {
		return nil, errors.Wrap(err, "YAML decode scenarios")
	}

	c := Catalogue{
		scenarios: scenarios,
		byID:      make(map[string]int, len(scenarios)),
	}
	for i, s := range scenarios {
		if s.ID == "" || strings.TrimSpace(s.Addendum) == "" {
			return nil, errors.New("scenario requires id and addendum", slog.Int("index", i))
		}
		if _, ok := c.byID[s.ID]; ok {
			return nil, errors.New("duplicate scenario id", slog.String("id", s.ID))
		}
		c.byID[s.ID] = i
	}
	return &c, nil
}

// Default returns the catalogue embedded in the binary.
func Default() (*Catalogue, error) {
	return Parse(defaultCatalogue)
}

// Lookup returns the scenario with id. The empty id never matches and means free-form case generation.
func (c *Catalogue) Lookup(id string) (Scenario, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Scenario{}, false
	}
	return c.scenarios[i], true
}

// All returns the scenarios in catalogue order.
func (c *Catalogue) All() []Scenario {
	out := make([]Scenario, len(c.scenarios))
	copy(out, c.scenarios)
	return out
}
