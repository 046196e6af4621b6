package divisions

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/Dosada05/tournament-divisions/models"
	"gopkg.in/yaml.v3"
)

// MaxRuleFileSize caps rule table files read from disk.
const MaxRuleFileSize = 1 << 20

var ErrInvalidRuleTable = errors.New("invalid rule table")

// ConfigError describes a malformed rule table. It is a deployment defect,
// not a per-competitor problem, so classification stops on it.
type ConfigError struct {
	Category string
	Gender   models.Gender
	Problem  string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Category == "":
		return fmt.Sprintf("rule table: %s", e.Problem)
	case e.Gender == "":
		return fmt.Sprintf("rule table: category %q: %s", e.Category, e.Problem)
	default:
		return fmt.Sprintf("rule table: category %q, gender %s: %s", e.Category, e.Gender, e.Problem)
	}
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidRuleTable
}

func configErr(category string, gender models.Gender, format string, args ...any) error {
	return &ConfigError{Category: category, Gender: gender, Problem: fmt.Sprintf(format, args...)}
}

// ValidateRuleTable checks the structural invariants of a rule table:
// disjoint age ranges and, per category and gender, contiguous
// non-overlapping bands ending in exactly one open top band.
func ValidateRuleTable(table models.RuleTable) error {
	if len(table.Categories) == 0 {
		return configErr("", "", "no categories defined")
	}

	seen := make(map[string]bool, len(table.Categories))
	for i, c := range table.Categories {
		if c.Name == "" {
			return configErr("", "", "category #%d has no name", i+1)
		}
		if seen[c.Name] {
			return configErr(c.Name, "", "duplicate category name")
		}
		seen[c.Name] = true

		if c.MinAge < 0 || c.MinAge > c.MaxAge {
			return configErr(c.Name, "", "invalid age range [%d, %d]", c.MinAge, c.MaxAge)
		}
		for _, prev := range table.Categories[:i] {
			if c.MinAge <= prev.MaxAge && prev.MinAge <= c.MaxAge {
				return configErr(c.Name, "", "age range [%d, %d] overlaps category %q [%d, %d]",
					c.MinAge, c.MaxAge, prev.Name, prev.MinAge, prev.MaxAge)
			}
		}

		if err := validateCategoryBands(c); err != nil {
			return err
		}
	}
	return nil
}

func validateCategoryBands(c models.Category) error {
	switch c.Criterion {
	case models.CriterionHeight:
		if len(c.WeightLimits) > 0 {
			return configErr(c.Name, "", "height category must not declare weight limits")
		}
		if len(c.HeightBands) == 0 {
			return configErr(c.Name, "", "no height bands declared")
		}
		for g, bands := range c.HeightBands {
			if !g.Valid() {
				return configErr(c.Name, g, "unknown gender")
			}
			if err := validateHeightBands(c.Name, g, bands); err != nil {
				return err
			}
		}
	case models.CriterionWeight:
		if len(c.HeightBands) > 0 {
			return configErr(c.Name, "", "weight category must not declare height bands")
		}
		if len(c.WeightLimits) == 0 {
			return configErr(c.Name, "", "no weight limits declared")
		}
		for g, limits := range c.WeightLimits {
			if !g.Valid() {
				return configErr(c.Name, g, "unknown gender")
			}
			if err := validateWeightLimits(c.Name, g, limits); err != nil {
				return err
			}
		}
	default:
		return configErr(c.Name, "", "unknown criterion %q", c.Criterion)
	}
	return nil
}

func validateHeightBands(category string, g models.Gender, bands []models.HeightBand) error {
	if len(bands) == 0 {
		return configErr(category, g, "empty band list")
	}
	labels := make(map[string]bool, len(bands))
	for i, b := range bands {
		if b.Label == "" {
			return configErr(category, g, "band #%d has no label", i+1)
		}
		if labels[b.Label] {
			return configErr(category, g, "duplicate band label %q", b.Label)
		}
		labels[b.Label] = true

		if i == 0 {
			if b.Lower != 0 {
				return configErr(category, g, "first band %q must start at 0, got %v", b.Label, b.Lower)
			}
		} else if prev := bands[i-1]; prev.Upper == nil || *prev.Upper != b.Lower {
			return configErr(category, g, "band %q is not contiguous with %q", b.Label, prev.Label)
		}

		last := i == len(bands)-1
		switch {
		case b.Upper == nil && !last:
			return configErr(category, g, "open band %q must be the last band", b.Label)
		case b.Upper == nil:
		case last:
			return configErr(category, g, "missing open-ended top band")
		case *b.Upper <= b.Lower:
			return configErr(category, g, "band %q has upper bound %v not above lower bound %v", b.Label, *b.Upper, b.Lower)
		}
	}
	return nil
}

func validateWeightLimits(category string, g models.Gender, limits []float64) error {
	if len(limits) == 0 {
		return configErr(category, g, "empty limit list")
	}
	prev := 0.0
	for i, l := range limits {
		last := i == len(limits)-1
		switch {
		case l == 0 || math.IsNaN(l) || math.IsInf(l, 0):
			return configErr(category, g, "invalid weight limit %v", l)
		case l > 0 && !last:
			return configErr(category, g, "open limit +%v must be the last limit", l)
		case l < 0 && last:
			return configErr(category, g, "missing open-ended top band")
		case l > 0:
			if i == 0 || l != prev {
				return configErr(category, g, "open limit +%v must repeat the previous limit %v", l, prev)
			}
		case -l <= prev:
			return configErr(category, g, "limit %v does not increase over %v", l, -prev)
		}
		prev = math.Abs(l)
	}
	return nil
}

// ParseRuleTable decodes a YAML rule table and validates it.
func ParseRuleTable(data []byte) (models.RuleTable, error) {
	var table models.RuleTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return models.RuleTable{}, fmt.Errorf("%w: decode yaml: %w", ErrInvalidRuleTable, err)
	}
	if err := ValidateRuleTable(table); err != nil {
		return models.RuleTable{}, err
	}
	return table, nil
}

// LoadRuleTable reads and validates a YAML rule table file.
func LoadRuleTable(path string) (models.RuleTable, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.RuleTable{}, fmt.Errorf("stat rule table %s: %w", path, err)
	}
	if info.Size() > MaxRuleFileSize {
		return models.RuleTable{}, fmt.Errorf("%w: file %s exceeds %d bytes", ErrInvalidRuleTable, path, MaxRuleFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.RuleTable{}, fmt.Errorf("read rule table %s: %w", path, err)
	}
	table, err := ParseRuleTable(data)
	if err != nil {
		return models.RuleTable{}, fmt.Errorf("rule table %s: %w", path, err)
	}
	return table, nil
}

//go:embed default_rules.yaml
var defaultRulesYAML []byte

var (
	defaultTableOnce sync.Once
	defaultTable     models.RuleTable
)

// DefaultRuleTable returns the built-in rule table. The embedded table is
// part of the binary, so a malformed one panics.
func DefaultRuleTable() models.RuleTable {
	defaultTableOnce.Do(func() {
		t, err := ParseRuleTable(defaultRulesYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded default rule table: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}
