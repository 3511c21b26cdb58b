package replace

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/ajitpratap0/colreplace/pkg/config"
	"github.com/ajitpratap0/colreplace/pkg/json"
	"github.com/ajitpratap0/colreplace/pkg/pattern"
)

// Params are the user parameters of one replace step.
type Params struct {
	// ToReplace is the search text or regular expression.
	ToReplace string `json:"to_replace" yaml:"to_replace" mapstructure:"to_replace"`
	// ReplaceWith is the substitution template.
	ReplaceWith string `json:"replace_with" yaml:"replace_with" mapstructure:"replace_with"`
	// MatchCase makes matching case-sensitive.
	MatchCase bool `json:"match_case" yaml:"match_case" mapstructure:"match_case"`
	// MatchEntire requires the search to match a whole value.
	MatchEntire bool `json:"match_entire" yaml:"match_entire" mapstructure:"match_entire"`
	// Regex treats ToReplace as a regular expression.
	Regex bool `json:"regex" yaml:"regex" mapstructure:"regex"`
	// Colnames lists the columns to rewrite, in order. Duplicates are allowed.
	Colnames []string `json:"colnames" yaml:"colnames" mapstructure:"colnames"`
}

// IsNoop reports whether rendering p leaves every table untouched: no
// columns are selected, or the search is empty and may match anywhere.
func (p Params) IsNoop() bool {
	return len(p.Colnames) == 0 || (p.ToReplace == "" && !p.MatchEntire)
}

// Options converts p into pattern options.
func (p Params) Options() pattern.Options {
	return pattern.Options{
		Search:      p.ToReplace,
		Regex:       p.Regex,
		MatchCase:   p.MatchCase,
		MatchEntire: p.MatchEntire,
		Replacement: p.ReplaceWith,
	}
}

// MigrateParams upgrades raw parameters to the current version and returns a
// new map; raw is not modified.
//
// Version 0 stored colnames as one comma-joined string ("A,B"). Version 1
// stores a list. Empty names are dropped and order is kept. Current
// parameters pass through unchanged, so migrating twice is the same as once.
func MigrateParams(raw map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	if joined, ok := raw["colnames"].(string); ok {
		names := make([]interface{}, 0, strings.Count(joined, ",")+1)
		for _, name := range strings.Split(joined, ",") {
			if name != "" {
				names = append(names, name)
			}
		}
		out["colnames"] = names
	}

	return out
}

// DecodeParams migrates raw and decodes it into Params.
func DecodeParams(raw map[string]interface{}) (Params, error) {
	var p Params
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &p,
		TagName: "mapstructure",
	})
	if err != nil {
		return Params{}, err
	}
	if err := dec.Decode(MigrateParams(raw)); err != nil {
		return Params{}, fmt.Errorf("invalid replace parameters: %w", err)
	}
	return p, nil
}

// ParseParams decodes JSON parameters of any version.
func ParseParams(data []byte) (Params, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Params{}, fmt.Errorf("failed to parse replace parameters: %w", err)
	}
	return DecodeParams(raw)
}

// LoadParams reads parameters of any version from a YAML or JSON file.
// ${VAR} references in the file are expanded from the environment.
func LoadParams(path string) (Params, error) {
	var raw map[string]interface{}
	if err := config.Load(path, &raw); err != nil {
		return Params{}, err
	}
	return DecodeParams(raw)
}
