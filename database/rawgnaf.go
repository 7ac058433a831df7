package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// authorityTables are the GNAF lookup tables. They all share one layout
// (code, name, description), the PSV extract ships one file per table.
var authorityTables = []string{
	"address_alias_type_aut",
	"address_change_type_aut",
	"address_type_aut",
	"flat_type_aut",
	"geocode_reliability_aut",
	"geocode_type_aut",
	"geocoded_level_type_aut",
	"level_type_aut",
	"locality_alias_type_aut",
	"locality_class_aut",
	"mb_match_code_aut",
	"ps_join_type_aut",
	"street_class_aut",
	"street_locality_alias_type_aut",
	"street_suffix_aut",
	"street_type_aut",
}

// dataTableDDL holds the per-state GNAF data tables, keyed by table name.
// Column layouts follow the GNAF product description; the PSV files are
// loaded into these verbatim with COPY.
var dataTableDDL = map[string]string{
	"address_alias": `
		address_alias_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		principal_pid text NOT NULL,
		alias_pid text NOT NULL,
		alias_type_code text NOT NULL,
		alias_comment text`,
	"address_default_geocode": `
		address_default_geocode_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		address_detail_pid text NOT NULL,
		geocode_type_code text NOT NULL,
		longitude numeric(11,8),
		latitude numeric(10,8)`,
	"address_detail": `
		address_detail_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_last_modified date,
		date_retired date,
		building_name text,
		lot_number_prefix text,
		lot_number text,
		lot_number_suffix text,
		flat_type_code text,
		flat_number_prefix text,
		flat_number integer,
		flat_number_suffix text,
		level_type_code text,
		level_number_prefix text,
		level_number integer,
		level_number_suffix text,
		number_first_prefix text,
		number_first integer,
		number_first_suffix text,
		number_last_prefix text,
		number_last integer,
		number_last_suffix text,
		street_locality_pid text,
		location_description text,
		locality_pid text NOT NULL,
		alias_principal character(1),
		postcode text,
		private_street text,
		legal_parcel_id text,
		confidence smallint,
		address_site_pid text,
		level_geocoded_code smallint,
		property_pid text,
		gnaf_property_pid text,
		primary_secondary text`,
	"address_mesh_block_2016": `
		address_mesh_block_2016_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		address_detail_pid text NOT NULL,
		mb_match_code text,
		mb_2016_pid text NOT NULL`,
	"address_mesh_block_2021": `
		address_mesh_block_2021_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		address_detail_pid text NOT NULL,
		mb_match_code text,
		mb_2021_pid text NOT NULL`,
	"address_site": `
		address_site_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		address_type text,
		address_site_name text`,
	"address_site_geocode": `
		address_site_geocode_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		address_site_pid text,
		geocode_site_name text,
		geocode_site_description text,
		geocode_type_code text,
		reliability_code smallint,
		boundary_extent numeric(7,1),
		planimetric_accuracy numeric(12,1),
		elevation numeric(7,1),
		longitude numeric(11,8),
		latitude numeric(10,8)`,
	"locality": `
		locality_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		locality_name text NOT NULL,
		primary_postcode text,
		locality_class_code character(1),
		state_pid text NOT NULL,
		gnaf_locality_pid text,
		gnaf_reliability_code smallint`,
	"locality_alias": `
		locality_alias_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		locality_pid text NOT NULL,
		name text NOT NULL,
		postcode text,
		alias_type_code text NOT NULL,
		state_pid text`,
	"locality_neighbour": `
		locality_neighbour_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		locality_pid text NOT NULL,
		neighbour_locality_pid text NOT NULL`,
	"locality_point": `
		locality_point_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		locality_pid text NOT NULL,
		planimetric_accuracy numeric(12,1),
		longitude numeric(11,8),
		latitude numeric(10,8)`,
	"mb_2016": `
		mb_2016_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		mb_2016_code text NOT NULL`,
	"mb_2021": `
		mb_2021_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		mb_2021_code text NOT NULL`,
	"primary_secondary": `
		primary_secondary_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		primary_pid text NOT NULL,
		secondary_pid text NOT NULL,
		ps_join_type_code smallint,
		ps_join_comment text`,
	"state": `
		state_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		state_name text NOT NULL,
		state_abbreviation text NOT NULL`,
	"street_locality": `
		street_locality_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		street_class_code character(1),
		street_name text NOT NULL,
		street_type_code text,
		street_suffix_code text,
		locality_pid text NOT NULL,
		gnaf_street_pid text,
		gnaf_street_confidence smallint,
		gnaf_reliability_code smallint`,
	"street_locality_alias": `
		street_locality_alias_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		street_locality_pid text NOT NULL,
		street_name text NOT NULL,
		street_type_code text,
		street_suffix_code text,
		alias_type_code text NOT NULL`,
	"street_locality_point": `
		street_locality_point_pid text NOT NULL PRIMARY KEY,
		date_created date,
		date_retired date,
		street_locality_pid text NOT NULL,
		boundary_extent numeric(7,1),
		planimetric_accuracy numeric(12,1),
		longitude numeric(11,8),
		latitude numeric(10,8)`,
}

// RawGnafTables lists every table of the raw GNAF schema, sorted. The
// loader uses it to match PSV files against tables that actually exist.
func RawGnafTables() []string {
	names := make([]string, 0, len(authorityTables)+len(dataTableDDL))
	names = append(names, authorityTables...)
	for name := range dataTableDDL {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// createRawGnafTables recreates the raw schema tables the PSV extract is
// copied into.
func createRawGnafTables(pool *pgxpool.Pool, schema string) error {
	for _, table := range authorityTables {
		query := fmt.Sprintf(`
			DROP TABLE IF EXISTS %[1]s.%[2]s CASCADE;

			CREATE TABLE %[1]s.%[2]s (
				code text NOT NULL PRIMARY KEY,
				name text NOT NULL,
				description text
			);
		`, schema, table)

		if _, err := pool.Exec(context.Background(), query); err != nil {
			return fmt.Errorf("failed to create %s.%s: %w", schema, table, err)
		}
	}

	for table, columns := range dataTableDDL {
		query := fmt.Sprintf(`
			DROP TABLE IF EXISTS %[1]s.%[2]s CASCADE;

			CREATE TABLE %[1]s.%[2]s (%[3]s);
		`, schema, table, columns)

		if _, err := pool.Exec(context.Background(), query); err != nil {
			return fmt.Errorf("failed to create %s.%s: %w", schema, table, err)
		}
	}

	return nil
}
