// Package catalog lists the church events contributions are recorded for.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
)

//go:embed events.yaml
var defaultYAML []byte

// Event describes one recurring church event.
type Event struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Icon  string `yaml:"icon" json:"icon"`
	Color string `yaml:"color" json:"color"`
	Date  string `yaml:"date" json:"date"`
}

// ShortName is the first word of the name, used by compact charts.
func (e Event) ShortName() string {
	name, _, _ := strings.Cut(e.Name, " ")
	return name
}

// YearRange bounds the years a partition may use, inclusive.
type YearRange struct {
	First int `yaml:"first" json:"first"`
	Last  int `yaml:"last" json:"last"`
}

// Contains reports whether y lies in the range.
func (r YearRange) Contains(y int) bool { return y >= r.First && y <= r.Last }

// Years lists every year of the range in ascending order.
func (r YearRange) Years() []int {
	out := make([]int, 0, r.Last-r.First+1)
	for y := r.First; y <= r.Last; y++ {
		out = append(out, y)
	}
	return out
}

// Catalog is the ordered set of known events.
type Catalog struct {
	Range  YearRange `yaml:"years" json:"years"`
	Events []Event   `yaml:"events" json:"events"`

	byID map[string]int
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded events: %v", err))
	}
	return c
}

// Parse reads a catalog from YAML and validates it.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(c.Events) == 0 {
		return nil, fmt.Errorf("catalog has no events")
	}
	if c.Range.First <= 0 || c.Range.Last < c.Range.First {
		return nil, fmt.Errorf("invalid year range %d-%d", c.Range.First, c.Range.Last)
	}
	c.byID = make(map[string]int, len(c.Events))
	for i, e := range c.Events {
		if e.ID == "" || e.Name == "" {
			return nil, fmt.Errorf("event %d: id and name are required", i)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate event id %q", e.ID)
		}
		c.byID[e.ID] = i
	}
	return &c, nil
}

// Lookup finds an event by id.
func (c *Catalog) Lookup(id string) (Event, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Event{}, false
	}
	return c.Events[i], true
}

// First is the event selected when none is given.
func (c *Catalog) First() Event { return c.Events[0] }

// Validate checks that p names a known event inside the year range.
func (c *Catalog) Validate(p domain.Partition) (Event, error) {
	e, ok := c.Lookup(p.EventID)
	if !ok {
		return Event{}, fmt.Errorf("%w: unknown event %q", domain.ErrNotFound, p.EventID)
	}
	if !c.Range.Contains(p.Year) {
		return Event{}, fmt.Errorf("%w: year %d outside %d-%d", domain.ErrInvalidInput, p.Year, c.Range.First, c.Range.Last)
	}
	return e, nil
}

// Partitions returns the partition of every event for one year.
func (c *Catalog) Partitions(year int) []domain.Partition {
	out := make([]domain.Partition, len(c.Events))
	for i, e := range c.Events {
		out[i] = domain.Partition{EventID: e.ID, Year: year}
	}
	return out
}
