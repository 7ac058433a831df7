package backfill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func addr(gnafPID, localityPID, state string) *Address {
	return &Address{GnafPID: gnafPID, LocalityPID: localityPID, State: state}
}

func TestApplyACTOverwritesExistingAssignment(t *testing.T) {
	// The ACT rule has no null guard: the ACT has no LGAs, so whatever the
	// spatial join assigned there is wrong and gets replaced.
	a := addr("GAACT1", "locabc", "ACT")
	a.LGAPID = strPtr("lgaFOO")
	a.LGAName = strPtr("Foo")

	results, err := Apply(DefaultRuleSet(), []*Address{a})
	require.NoError(t, err)

	require.NotNil(t, a.LGAPID)
	assert.Equal(t, "lgaact9999991", *a.LGAPID)
	assert.Equal(t, "Unincorporated ACT", *a.LGAName)
	assert.Equal(t, int64(1), results[0].Updated)
}

func TestApplyNullGuardFillsUnassigned(t *testing.T) {
	a := addr("GATAS1", "loc0f7a581b85b7", "TAS")

	_, err := Apply(DefaultRuleSet(), []*Address{a})
	require.NoError(t, err)

	require.NotNil(t, a.LGAPID)
	assert.Equal(t, "lgacbffb11990f2", *a.LGAPID)
	assert.Equal(t, "Hobart City", *a.LGAName)
}

func TestApplyNullGuardSkipsAssigned(t *testing.T) {
	// Same locality as the Hobart rule but already tagged: the guard holds
	// and the existing assignment wins. Contrasts with the ACT case.
	a := addr("GATAS2", "loc0f7a581b85b7", "TAS")
	a.LGAPID = strPtr("lgaFOO")
	a.LGAName = strPtr("Foo")

	_, err := Apply(DefaultRuleSet(), []*Address{a})
	require.NoError(t, err)

	assert.Equal(t, "lgaFOO", *a.LGAPID)
	assert.Equal(t, "Foo", *a.LGAName)
}

func TestApplyLeavesNonMatchesUntouched(t *testing.T) {
	assigned := addr("GANSW1", "locother", "NSW")
	assigned.LGAPID = strPtr("lgaNSW123")
	assigned.LGAName = strPtr("Sydney")
	unassigned := addr("GANSW2", "locother", "NSW")

	_, err := Apply(DefaultRuleSet(), []*Address{assigned, unassigned})
	require.NoError(t, err)

	assert.Equal(t, "lgaNSW123", *assigned.LGAPID)
	assert.Nil(t, unassigned.LGAPID)
	assert.Nil(t, unassigned.LGAName)
}

func TestApplyScenarioThreeRecords(t *testing.T) {
	act := addr("GA1", "locact", "ACT")
	jervisBay := addr("GA2", "loced195c315de9", "OT")
	unmatched := addr("GA3", "locXYZ", "OT")

	_, err := Apply(DefaultRuleSet(), []*Address{act, jervisBay, unmatched})
	require.NoError(t, err)

	assert.Equal(t, "lgaact9999991", *act.LGAPID)
	assert.Equal(t, "Unincorporated ACT", *act.LGAName)
	assert.Equal(t, "lgaot9999992", *jervisBay.LGAPID)
	assert.Equal(t, "Unincorporated OT (Jervis Bay)", *jervisBay.LGAName)
	assert.Nil(t, unmatched.LGAPID)
	assert.Nil(t, unmatched.LGAName)
}

func TestApplyIsIdempotent(t *testing.T) {
	addresses := []*Address{
		addr("GA1", "locact", "ACT"),
		addr("GA2", "loccf8be9dcdacd", "SA"),
		addr("GA3", "locXYZ", "QLD"),
	}

	_, err := Apply(DefaultRuleSet(), addresses)
	require.NoError(t, err)

	var snapshot []Address
	for _, a := range addresses {
		snapshot = append(snapshot, *a)
	}

	results, err := Apply(DefaultRuleSet(), addresses)
	require.NoError(t, err)

	for i, a := range addresses {
		assert.Equal(t, snapshot[i].LGAPID == nil, a.LGAPID == nil)
		if a.LGAPID != nil {
			assert.Equal(t, *snapshot[i].LGAPID, *a.LGAPID)
			assert.Equal(t, *snapshot[i].LGAName, *a.LGAName)
		}
	}

	// Second pass: guarded rules match nothing, the ACT rule reassigns the
	// identical value.
	assert.Equal(t, int64(1), results[0].Updated)
	for _, result := range results[1:] {
		assert.Equal(t, int64(0), result.Updated)
	}
}

func TestApplyPreservesLGAPairInvariant(t *testing.T) {
	addresses := []*Address{
		addr("GA1", "locact", "ACT"),
		addr("GA2", "loc552bd3aef1b8", "NSW"),
		addr("GA3", "locXYZ", "WA"),
	}
	addresses[2].LGAPID = strPtr("lgawa123")
	addresses[2].LGAName = strPtr("Perth")

	_, err := Apply(DefaultRuleSet(), addresses)
	require.NoError(t, err)

	for _, a := range addresses {
		assert.True(t, a.Consistent(), "address %s has partially assigned LGA fields", a.GnafPID)
	}
}

func TestApplyRejectsPartiallyAssignedInput(t *testing.T) {
	// A row with lga_pid set but lga_name null is corrupt before any rule
	// runs; Apply must refuse the whole pass rather than paper over it.
	good := addr("GA1", "loc0f7a581b85b7", "TAS")
	bad := addr("GA2", "locXYZ", "WA")
	bad.LGAPID = strPtr("lgawa123")

	_, err := Apply(DefaultRuleSet(), []*Address{good, bad})

	var integrityErr *IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	assert.Equal(t, int64(1), integrityErr.Rows)
}

func TestApplyFlagsMissingLocality(t *testing.T) {
	// Only NSW addresses in the set: every locality scoped rule targeting
	// another locality is a no-op, flagged but not an error.
	addresses := []*Address{addr("GA1", "loc552bd3aef1b8", "NSW")}

	results, err := Apply(DefaultRuleSet(), addresses)
	require.NoError(t, err)

	for _, result := range results {
		if result.Rule.Locality == "loc552bd3aef1b8" || result.Rule.Locality == "" {
			assert.False(t, result.MissingLocality)
		} else {
			assert.True(t, result.MissingLocality, "rule %v should be flagged", result.Rule)
		}
	}
}

func TestApplyFirstMatchWins(t *testing.T) {
	rules := RuleSet{
		Vintage: "test",
		Rules: []Rule{
			{State: "NSW", Overwrite: true, LGAPID: "lgafirst", LGAName: "First"},
			{Locality: "locX", Overwrite: true, LGAPID: "lgasecond", LGAName: "Second"},
		},
	}

	a := addr("GA1", "locX", "NSW")
	results, err := Apply(rules, []*Address{a})
	require.NoError(t, err)

	assert.Equal(t, "lgafirst", *a.LGAPID)
	assert.Equal(t, int64(1), results[0].Updated)
	assert.Equal(t, int64(0), results[1].Updated)
}

func TestApplyRejectsInvalidRuleSet(t *testing.T) {
	rules := RuleSet{Vintage: "test", Rules: []Rule{{LGAPID: "lgax", LGAName: "X"}}}

	_, err := Apply(rules, []*Address{addr("GA1", "locX", "NSW")})
	assert.Error(t, err)
}
