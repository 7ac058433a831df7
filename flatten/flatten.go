// Package flatten builds the reference address table from the raw GNAF
// tables: one geocoded row per live principal address, ready for boundary
// tagging.
package flatten

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/minus34/gnaf-loader/database"
	"github.com/minus34/gnaf-loader/settings"
)

// Run rebuilds <gnaf schema>.address_principals from the raw schema.
func Run(ctx context.Context, config settings.Config) error {
	pool, err := database.GetDBPool("gnaf", config.Database)
	if err != nil {
		return err
	}

	raw := config.RawGnafSchema()
	gnaf := config.GnafSchema()

	if err := indexRawTables(ctx, pool, raw); err != nil {
		return err
	}
	if err := populatePrincipals(ctx, pool, raw, gnaf); err != nil {
		return err
	}

	_, err = pool.Exec(ctx, fmt.Sprintf("ANALYZE %s.%s", gnaf, database.TableAddressPrincipals))
	return err
}

// indexRawTables adds the join indexes the flatten needs. The raw tables
// are created bare so the COPY load stays fast.
func indexRawTables(ctx context.Context, pool *pgxpool.Pool, raw string) error {
	query := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS address_detail_locality_pid_idx ON %[1]s.address_detail USING btree (locality_pid);
		CREATE INDEX IF NOT EXISTS address_detail_street_locality_pid_idx ON %[1]s.address_detail USING btree (street_locality_pid);
		CREATE INDEX IF NOT EXISTS address_default_geocode_address_detail_pid_idx ON %[1]s.address_default_geocode USING btree (address_detail_pid);
		CREATE INDEX IF NOT EXISTS address_alias_alias_pid_idx ON %[1]s.address_alias USING btree (alias_pid);
		ANALYZE %[1]s.address_detail;
	`, raw)

	if _, err := pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to index raw GNAF tables: %w", err)
	}

	log.Info("Indexed raw GNAF tables")
	return nil
}

// populatePrincipals flattens raw address detail, street, locality, state
// and default geocode into one row per principal address. Retired rows and
// alias addresses are excluded.
func populatePrincipals(ctx context.Context, pool *pgxpool.Pool, raw, gnaf string) error {
	query := fmt.Sprintf(`
		TRUNCATE TABLE %[2]s.%[3]s;

		INSERT INTO %[2]s.%[3]s (gnaf_pid, address, locality_pid, locality_name, postcode, state, geom)
		SELECT ad.address_detail_pid,
		       trim(concat_ws(' ',
		           ad.building_name,
		           CASE WHEN ad.flat_number IS NOT NULL THEN ad.flat_number::text || '/' ELSE NULL END,
		           CASE WHEN ad.number_last IS NOT NULL
		                THEN ad.number_first::text || '-' || ad.number_last::text
		                ELSE ad.number_first::text END,
		           str.street_name,
		           str.street_type_code)),
		       loc.locality_pid,
		       loc.locality_name,
		       ad.postcode,
		       st.state_abbreviation,
		       ST_SetSRID(ST_MakePoint(geo.longitude, geo.latitude), 4283)
		FROM %[1]s.address_detail AS ad
		INNER JOIN %[1]s.address_default_geocode AS geo ON ad.address_detail_pid = geo.address_detail_pid
		INNER JOIN %[1]s.locality AS loc ON ad.locality_pid = loc.locality_pid
		INNER JOIN %[1]s.state AS st ON loc.state_pid = st.state_pid
		LEFT OUTER JOIN %[1]s.street_locality AS str ON ad.street_locality_pid = str.street_locality_pid
		WHERE ad.date_retired IS NULL
		  AND geo.date_retired IS NULL
		  AND NOT EXISTS (
		      SELECT 1 FROM %[1]s.address_alias AS aa
		      WHERE aa.alias_pid = ad.address_detail_pid AND aa.date_retired IS NULL
		  );
	`, raw, gnaf, database.TableAddressPrincipals)

	ct, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to populate %s.%s: %w", gnaf, database.TableAddressPrincipals, err)
	}

	log.Infof("Populated %d principal addresses", ct.RowsAffected())
	return nil
}
