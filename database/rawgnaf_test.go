package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawGnafTablesCoverDistributionFiles(t *testing.T) {
	tables := map[string]bool{}
	for _, table := range RawGnafTables() {
		tables[table] = true
	}

	// Every table a state or authority code PSV file maps to must exist,
	// otherwise the COPY stage silently drops that file.
	expected := []string{
		"address_detail",
		"address_default_geocode",
		"address_alias",
		"address_site",
		"address_site_geocode",
		"address_mesh_block_2016",
		"address_mesh_block_2021",
		"mb_2016",
		"mb_2021",
		"locality",
		"locality_alias",
		"locality_neighbour",
		"locality_point",
		"primary_secondary",
		"state",
		"street_locality",
		"street_locality_alias",
		"street_locality_point",
		"flat_type_aut",
		"level_type_aut",
		"street_type_aut",
		"geocode_type_aut",
	}
	for _, table := range expected {
		assert.True(t, tables[table], "missing table %s", table)
	}
}

func TestRawGnafTablesSortedAndDistinct(t *testing.T) {
	tables := RawGnafTables()
	require.NotEmpty(t, tables)

	for i := 1; i < len(tables); i++ {
		assert.Less(t, tables[i-1], tables[i])
	}
}

func TestRawGnafTableDefinitions(t *testing.T) {
	for table, columns := range dataTableDDL {
		assert.NotEmpty(t, strings.TrimSpace(columns), "table %s has no columns", table)
		assert.False(t, strings.HasSuffix(table, "_aut"), "authority table %s in the data table map", table)
	}
	for _, table := range authorityTables {
		assert.True(t, strings.HasSuffix(table, "_aut"), "data table %s in the authority list", table)
	}
}
