package dataprocessing

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"

	"pangandash/pkg/contracts/domain"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Column names the dashboard overview reads directly.
const (
	ColumnKemandirian = "Kemandirian (%)"
	ColumnTahun       = "Tahun"
)

// TableSchema is the static configuration of one table kind.
type TableSchema struct {
	Kind          domain.TableKind          `yaml:"kind" json:"kind"`
	Title         string                    `yaml:"title" json:"title"`
	FilterColumns []string                  `yaml:"filter_columns" json:"filter_columns"`
	Columns       []domain.ColumnSpec       `yaml:"columns" json:"columns"`
	Groups        []domain.AggregationGroup `yaml:"groups" json:"groups"`
}

// Catalog holds the schemas of every table kind.
type Catalog struct {
	Tables []TableSchema `yaml:"tables" json:"tables"`
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the embedded catalog. It panics if the embedded
// file is invalid, which the package tests guard against.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		c, err := ParseCatalog(embeddedCatalog)
		if err != nil {
			panic(fmt.Sprintf("embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Schema returns the schema for kind.
func (c *Catalog) Schema(kind domain.TableKind) (TableSchema, bool) {
	for _, s := range c.Tables {
		if s.Kind == kind {
			return s, true
		}
	}
	return TableSchema{}, false
}

func (c *Catalog) validate() error {
	seen := make(map[domain.TableKind]bool)
	for _, s := range c.Tables {
		if _, err := domain.ParseTableKind(string(s.Kind)); err != nil {
			return err
		}
		if seen[s.Kind] {
			return fmt.Errorf("table %q declared twice", s.Kind)
		}
		seen[s.Kind] = true

		for _, col := range s.Columns {
			if col.Name == "" {
				return fmt.Errorf("table %q: column without name", s.Kind)
			}
			for k := range col.Synonyms {
				if k != strings.ToLower(k) {
					return fmt.Errorf("table %q column %q: synonym key %q must be lower case", s.Kind, col.Name, k)
				}
			}
		}
		for _, g := range s.Groups {
			if err := validateGroup(g); err != nil {
				return fmt.Errorf("table %q: %w", s.Kind, err)
			}
		}
	}
	for _, k := range domain.AllTableKinds() {
		if !seen[k] {
			return fmt.Errorf("table %q missing from catalog", k)
		}
	}
	return nil
}

func validateGroup(g domain.AggregationGroup) error {
	if g.Name == "" {
		return fmt.Errorf("group without name")
	}
	if len(g.Columns) == 0 {
		return fmt.Errorf("group %q has no columns", g.Name)
	}
	switch g.Op {
	case domain.OpSum, domain.OpMean, domain.OpMax, domain.OpCountBy, domain.OpCoordinates:
	case domain.OpTopN:
		if g.N < 0 {
			return fmt.Errorf("group %q: negative n", g.Name)
		}
	case domain.OpSumBy:
		if g.GroupBy == "" {
			return fmt.Errorf("group %q: sum_by needs group_by", g.Name)
		}
	default:
		return fmt.Errorf("group %q: unknown op %q", g.Name, g.Op)
	}
	return nil
}
