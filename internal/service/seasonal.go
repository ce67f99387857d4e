package service

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed data/seasonal.yaml
var seasonalYAML []byte

// SeasonalEntry suggests keeping a quantity of a food in stock during a month.
type SeasonalEntry struct {
	Food     string  `yaml:"food"`
	Quantity float64 `yaml:"quantity"`
	Unit     string  `yaml:"unit"`
}

// SeasonalTable maps calendar months to their seasonal entries.
type SeasonalTable map[time.Month][]SeasonalEntry

// For returns the entries of t's month.
func (s SeasonalTable) For(t time.Time) []SeasonalEntry {
	return s[t.Month()]
}

// LoadSeasonalTable parses a YAML document keyed by lower-case English month names.
func LoadSeasonalTable(data []byte) (SeasonalTable, error) {
	var raw map[string][]SeasonalEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse seasonal table: %w", err)
	}

	months := make(map[string]time.Month, 12)
	for m := time.January; m <= time.December; m++ {
		months[strings.ToLower(m.String())] = m
	}

	table := make(SeasonalTable, len(raw))
	for key, entries := range raw {
		month, ok := months[strings.ToLower(key)]
		if !ok {
			return nil, fmt.Errorf("parse seasonal table: unknown month %q", key)
		}
		for _, e := range entries {
			if e.Food == "" || e.Quantity <= 0 {
				return nil, fmt.Errorf("parse seasonal table: invalid entry in %s", key)
			}
		}
		table[month] = entries
	}
	return table, nil
}

// DefaultSeasonalTable returns the embedded table.
func DefaultSeasonalTable() (SeasonalTable, error) {
	return LoadSeasonalTable(seasonalYAML)
}
