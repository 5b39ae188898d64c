package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wilyrpc/wily/internal/dtab"
	"github.com/wilyrpc/wily/internal/nametree"
	"github.com/wilyrpc/wily/internal/path"
)

// baseDtabFile is the on-disk shape of the static base DTab seed: an
// ordered list of prefix -> single-destination rewrite rules, applied at
// process start. Anything beyond a plain rewrite (weighted unions,
// negation, alternation) is composed programmatically via dtab.SetBase,
// not expressed in this file.
type baseDtabFile struct {
	Rules []struct {
		Prefix string `yaml:"prefix"`
		Dest   string `yaml:"dest"`
	} `yaml:"rules"`
}

// LoadBaseDTab reads a YAML rewrite-rule file and returns the Dtab it
// describes. An empty path is not an error: it yields dtab.Empty, so a
// deployment with no base DTab seed needs no special-casing at the
// call site.
func LoadBaseDTab(filePath string) (dtab.Dtab, error) {
	if filePath == "" {
		return dtab.Empty, nil
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return dtab.Empty, fmt.Errorf("wily: reading base dtab file %q: %w", filePath, err)
	}

	var parsed baseDtabFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return dtab.Empty, fmt.Errorf("wily: parsing base dtab file %q: %w", filePath, err)
	}

	rules := make([]dtab.Rule, 0, len(parsed.Rules))
	for _, r := range parsed.Rules {
		rules = append(rules, dtab.Rule{
			Prefix: path.Parse(r.Prefix),
			Tree:   nametree.Leaf(path.Parse(r.Dest)),
		})
	}
	return dtab.New(rules...), nil
}
