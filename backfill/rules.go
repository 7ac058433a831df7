package backfill

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule assigns an LGA to addresses matching its predicate: a conjunction of
// the equality tests that are set (state, locality) plus a guard that the
// address has no LGA yet. Overwrite drops the guard; the ACT rule needs it
// because the ACT genuinely has no local government areas, so any LGA the
// spatial join did assign there is wrong and must be replaced.
type Rule struct {
	State     string `yaml:"state,omitempty"`
	Locality  string `yaml:"locality,omitempty"`
	Overwrite bool   `yaml:"overwrite,omitempty"`
	LGAPID    string `yaml:"lga_pid"`
	LGAName   string `yaml:"lga_name"`
}

// Matches reports whether the rule applies to the address in its current
// state, null guard included.
func (r Rule) Matches(a *Address) bool {
	if r.State != "" && a.State != r.State {
		return false
	}
	if r.Locality != "" && a.LocalityPID != r.Locality {
		return false
	}
	if !r.Overwrite && a.LGAPID != nil {
		return false
	}
	return true
}

func (r Rule) Validate() error {
	if r.State == "" && r.Locality == "" {
		return fmt.Errorf("rule %s has no predicate, set state and/or locality", r.LGAPID)
	}
	if r.LGAPID == "" || r.LGAName == "" {
		return fmt.Errorf("rule for state=%q locality=%q must set both lga_pid and lga_name", r.State, r.Locality)
	}
	return nil
}

func (r Rule) String() string {
	if r.Locality != "" {
		return fmt.Sprintf("locality=%s -> %s", r.Locality, r.LGAPID)
	}
	return fmt.Sprintf("state=%s -> %s", r.State, r.LGAPID)
}

// RuleSet is an ordered rule collection, versioned per release. Order is
// canonical: when predicates overlap only the first matching rule applies.
type RuleSet struct {
	Vintage string `yaml:"vintage"`
	Rules   []Rule `yaml:"rules"`
}

func (rs RuleSet) Validate() error {
	if len(rs.Rules) == 0 {
		return fmt.Errorf("rule set %s contains no rules", rs.Vintage)
	}
	for _, rule := range rs.Rules {
		if err := rule.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// LoadRuleSet reads a rule set from a YAML file so new release vintages can
// ship rule changes without code changes.
func LoadRuleSet(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("failed to read rule file: %w", err)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("failed to parse rule file %s: %w", path, err)
	}

	if err := rs.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

// DefaultRuleSet returns the rules shipped with this release: the synthetic
// LGAs for unincorporated territory plus corrections for localities the
// boundary join misses (offshore islands, enclaves, border ambiguity).
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Vintage: "202505",
		Rules: []Rule{
			{State: "ACT", Overwrite: true, LGAPID: "lgaact9999991", LGAName: "Unincorporated ACT"},
			{Locality: "locc15e0d2d6f2a", LGAPID: "lgaot9999991", LGAName: "Unincorporated OT (Norfolk Island)"},
			{Locality: "loced195c315de9", LGAPID: "lgaot9999992", LGAName: "Unincorporated OT (Jervis Bay)"},
			{Locality: "250190776", LGAPID: "lgasa9999991", LGAName: "Unincorporated SA (Thistle Island)"},
			{Locality: "loc0f7a581b85b7", LGAPID: "lgacbffb11990f2", LGAName: "Hobart City"},
			{Locality: "loccf8be9dcdacd", LGAPID: "lgaa8d127fa14e7", LGAName: "Ceduna"},
			{Locality: "loc552bd3aef1b8", LGAPID: "lga7872e04f6637", LGAName: "Tenterfield"},
		},
	}
}
