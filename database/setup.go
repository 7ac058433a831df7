package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/minus34/gnaf-loader/settings"
)

var (
	TableAddressPrincipals = "address_principals"
	TableAddressBdys       = "address_principal_admin_boundaries"
	TableLgaBdys           = "local_government_areas"
)

// CreateAll prepares the database for a release load: PostGIS, one schema
// per pipeline stage and the flattened output tables. Existing tables for
// the same vintage are dropped and recreated.
func CreateAll(config settings.Config) error {
	pool, err := GetDBPool("gnaf", config.Database)
	if err != nil {
		return err
	}

	if err := createExtensions(pool); err != nil {
		return fmt.Errorf("failed to add PostGIS extension, check Postgres user privileges or PostGIS install: %w", err)
	}

	for _, schema := range []string{
		config.RawGnafSchema(),
		config.RawAdminBdysSchema(),
		config.AdminBdysSchema(),
		config.GnafSchema(),
	} {
		if err := createSchema(pool, schema); err != nil {
			return err
		}
		log.Infof("Created schema %s", schema)
	}

	if err := createRawGnafTables(pool, config.RawGnafSchema()); err != nil {
		return err
	}
	log.Infof("Created %d raw GNAF tables in %s", len(RawGnafTables()), config.RawGnafSchema())

	if err := createAddressPrincipals(pool, config.GnafSchema()); err != nil {
		return err
	}
	if err := createLgaBdys(pool, config.AdminBdysSchema()); err != nil {
		return err
	}
	if err := createAddressBdys(pool, config.GnafSchema()); err != nil {
		return err
	}

	log.Infof("Created output tables for vintage %s", config.Vintage)
	return nil
}

func createExtensions(pool *pgxpool.Pool) error {
	_, err := pool.Exec(context.Background(),
		"SET search_path = public, pg_catalog; CREATE EXTENSION IF NOT EXISTS postgis")
	return err
}

func createSchema(pool *pgxpool.Pool, schema string) error {
	if schema == "public" {
		return nil
	}
	_, err := pool.Exec(context.Background(), fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema))
	return err
}

// createAddressPrincipals creates the flattened principal address table,
// one row per geocoded address. GNAF geometries are GDA94 (SRID 4283).
func createAddressPrincipals(pool *pgxpool.Pool, schema string) error {
	query := fmt.Sprintf(`
		DROP TABLE IF EXISTS %[1]s.%[2]s CASCADE;

		CREATE TABLE %[1]s.%[2]s (
			gid serial NOT NULL,
			gnaf_pid text NOT NULL PRIMARY KEY,
			address text,
			locality_pid text NOT NULL,
			locality_name text NOT NULL,
			postcode text,
			state text NOT NULL,
			geom geometry(Point, 4283)
		);

		CREATE INDEX %[2]s_geom_idx ON %[1]s.%[2]s USING gist (geom);
		CREATE INDEX %[2]s_locality_pid_idx ON %[1]s.%[2]s USING btree (locality_pid);
	`, schema, TableAddressPrincipals)

	_, err := pool.Exec(context.Background(), query)
	return err
}

func createLgaBdys(pool *pgxpool.Pool, schema string) error {
	query := fmt.Sprintf(`
		DROP TABLE IF EXISTS %[1]s.%[2]s CASCADE;

		CREATE TABLE %[1]s.%[2]s (
			gid serial NOT NULL,
			lga_pid text NOT NULL PRIMARY KEY,
			lga_name text NOT NULL,
			state text NOT NULL,
			geom geometry(MultiPolygon, 4283)
		);

		CREATE INDEX %[2]s_geom_idx ON %[1]s.%[2]s USING gist (geom);
	`, schema, TableLgaBdys)

	_, err := pool.Exec(context.Background(), query)
	return err
}

// createAddressBdys creates the boundary tagged address table populated by
// the bdytag and backfill stages. The lga fields stay null for addresses
// outside every LGA polygon until the backfill pass runs, and a small
// residue of true nulls (offshore points and leases) remains after it.
func createAddressBdys(pool *pgxpool.Pool, schema string) error {
	query := fmt.Sprintf(`
		DROP TABLE IF EXISTS %[1]s.%[2]s CASCADE;

		CREATE TABLE %[1]s.%[2]s (
			gid serial NOT NULL,
			gnaf_pid text NOT NULL,
			locality_pid text NOT NULL,
			locality_name text NOT NULL,
			postcode text,
			state text NOT NULL,
			lga_pid text,
			lga_name text
		);
	`, schema, TableAddressBdys)

	_, err := pool.Exec(context.Background(), query)
	return err
}
