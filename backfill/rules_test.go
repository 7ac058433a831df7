package backfill

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRuleSet(t *testing.T) {
	rs := DefaultRuleSet()
	require.NoError(t, rs.Validate())
	require.Len(t, rs.Rules, 7)

	// The ACT rule leads and is the only unconditional one.
	assert.Equal(t, "ACT", rs.Rules[0].State)
	assert.True(t, rs.Rules[0].Overwrite)
	for _, rule := range rs.Rules[1:] {
		assert.NotEmpty(t, rule.Locality)
		assert.False(t, rule.Overwrite)
	}
}

func TestLoadRuleSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `vintage: "202508"
rules:
  - state: ACT
    overwrite: true
    lga_pid: lgaact9999991
    lga_name: Unincorporated ACT
  - locality: loc0f7a581b85b7
    lga_pid: lgacbffb11990f2
    lga_name: Hobart City
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rs, err := LoadRuleSet(path)
	require.NoError(t, err)

	assert.Equal(t, "202508", rs.Vintage)
	require.Len(t, rs.Rules, 2)
	assert.Equal(t, "ACT", rs.Rules[0].State)
	assert.True(t, rs.Rules[0].Overwrite)
	assert.Equal(t, "loc0f7a581b85b7", rs.Rules[1].Locality)
	assert.False(t, rs.Rules[1].Overwrite)
	assert.Equal(t, "Hobart City", rs.Rules[1].LGAName)
}

func TestLoadRuleSetRejectsIncompleteRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `vintage: "202508"
rules:
  - locality: loc0f7a581b85b7
    lga_pid: lgacbffb11990f2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadRuleSet(path)
	assert.Error(t, err)
}

func TestLoadRuleSetMissingFile(t *testing.T) {
	_, err := LoadRuleSet(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRuleValidate(t *testing.T) {
	assert.Error(t, Rule{LGAPID: "lgax", LGAName: "X"}.Validate(), "predicate required")
	assert.Error(t, Rule{State: "ACT", LGAPID: "lgax"}.Validate(), "lga_name required")
	assert.NoError(t, Rule{State: "ACT", LGAPID: "lgax", LGAName: "X"}.Validate())
}

func TestRuleMatches(t *testing.T) {
	hobart := Rule{Locality: "loc0f7a581b85b7", LGAPID: "lgacbffb11990f2", LGAName: "Hobart City"}

	unassigned := addr("GA1", "loc0f7a581b85b7", "TAS")
	assert.True(t, hobart.Matches(unassigned))

	other := addr("GA2", "locother", "TAS")
	assert.False(t, hobart.Matches(other))

	assigned := addr("GA3", "loc0f7a581b85b7", "TAS")
	assigned.LGAPID = strPtr("lgaFOO")
	assigned.LGAName = strPtr("Foo")
	assert.False(t, hobart.Matches(assigned), "null guard must hold")

	act := Rule{State: "ACT", Overwrite: true, LGAPID: "lgaact9999991", LGAName: "Unincorporated ACT"}
	assert.True(t, act.Matches(assigned.withState("ACT")), "overwrite rule ignores the guard")
}

// withState copies an address with a different state, test helper only.
func (a *Address) withState(state string) *Address {
	copied := *a
	copied.State = state
	return &copied
}
