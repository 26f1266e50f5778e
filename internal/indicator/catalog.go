package indicator

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Discipline selects how values are mapped to colour.
type Discipline string

const (
	// Sequential maps magnitude low to high onto a warm gradient.
	Sequential Discipline = "sequential"
	// Semantic maps quantile rank onto a good/bad gradient.
	Semantic Discipline = "semantic"
)

// Valid reports whether d is a known discipline.
func (d Discipline) Valid() bool {
	return d == Sequential || d == Semantic
}

// Metric describes one colourable indicator sub-metric.
type Metric struct {
	Indicator      string     `yaml:"indicator" json:"indicator"`
	SubMetric      string     `yaml:"sub_metric" json:"sub_metric"`
	Label          string     `yaml:"label" json:"label"`
	Unit           string     `yaml:"unit,omitempty" json:"unit,omitempty"`
	Discipline     Discipline `yaml:"discipline" json:"discipline"`
	HigherIsBetter bool       `yaml:"higher_is_better" json:"higher_is_better"`
	// CountLike marks indicators where zero means "no data" for ranking.
	CountLike bool  `yaml:"count_like" json:"count_like"`
	Years     []int `yaml:"years,omitempty" json:"years,omitempty"`
}

// Catalog is the set of metrics known to the dashboard.
type Catalog struct {
	Metrics []Metric `yaml:"metrics" json:"metrics"`

	index map[string]int
}

// ParseCatalog decodes a YAML catalog. Metrics without a discipline default
// to sequential.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "catalog: parse")
	}
	for i := range c.Metrics {
		m := &c.Metrics[i]
		if m.Indicator == "" {
			return nil, eris.Errorf("catalog: metric %d has no indicator", i)
		}
		if m.Discipline == "" {
			m.Discipline = Sequential
		}
		if !m.Discipline.Valid() {
			return nil, eris.Errorf("catalog: metric %s/%s has unknown discipline %q", m.Indicator, m.SubMetric, m.Discipline)
		}
	}
	c.reindex()
	return &c, nil
}

// LoadCatalog reads a YAML catalog from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return ParseCatalog(data)
}

func (c *Catalog) reindex() {
	c.index = make(map[string]int, len(c.Metrics))
	for i, m := range c.Metrics {
		c.index[m.Indicator+"\x00"+m.SubMetric] = i
	}
}

// Lookup finds the metric for an indicator and sub-metric.
func (c *Catalog) Lookup(indicator, subMetric string) (Metric, bool) {
	if c == nil {
		return Metric{}, false
	}
	if c.index == nil {
		c.reindex()
	}
	i, ok := c.index[indicator+"\x00"+subMetric]
	if !ok {
		return Metric{}, false
	}
	return c.Metrics[i], true
}

// MetricFor returns the catalog metric for key, or a sequential default when
// the key is not catalogued.
func (c *Catalog) MetricFor(key Key) Metric {
	if m, ok := c.Lookup(key.Indicator, key.SubMetric); ok {
		return m
	}
	return Metric{
		Indicator:  key.Indicator,
		SubMetric:  key.SubMetric,
		Label:      key.Indicator,
		Discipline: Sequential,
	}
}

const defaultCatalogYAML = `
metrics:
  - indicator: foreigners
    sub_metric: share
    label: Foreign population share
    unit: "%"
    discipline: sequential
  - indicator: foreigners
    sub_metric: total
    label: Foreign population
    discipline: sequential
    count_like: true
  - indicator: crime
    sub_metric: cases_per_100k
    label: Recorded offences per 100k inhabitants
    discipline: sequential
  - indicator: crime
    sub_metric: clearance_rate
    label: Clearance rate
    unit: "%"
    discipline: semantic
    higher_is_better: true
  - indicator: crime
    sub_metric: cases
    label: Recorded offences
    discipline: sequential
    count_like: true
  - indicator: social_atlas
    sub_metric: unemployment_rate
    label: Unemployment rate
    unit: "%"
    discipline: semantic
    higher_is_better: false
  - indicator: social_atlas
    sub_metric: median_income
    label: Median household income
    unit: EUR
    discipline: semantic
    higher_is_better: true
  - indicator: social_atlas
    sub_metric: child_poverty_rate
    label: Child poverty rate
    unit: "%"
    discipline: semantic
    higher_is_better: false
`

// DefaultCatalog returns the built-in catalog used when no catalog file is
// configured.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog([]byte(defaultCatalogYAML))
	if err != nil {
		panic(err) // built-in YAML is static
	}
	return c
}
