// Package bdytag tags principal addresses with the LGA boundary polygon
// containing them. Addresses outside every polygon keep null LGA fields and
// are handled later by the backfill rule set.
package bdytag

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/minus34/gnaf-loader/database"
	"github.com/minus34/gnaf-loader/settings"
)

// Tag runs the point-in-polygon join between principal addresses and LGA
// boundaries and rebuilds the boundary tagged address table from the result.
func Tag(ctx context.Context, config settings.Config) error {
	pool, err := database.GetDBPool("gnaf", config.Database)
	if err != nil {
		return err
	}

	gnaf := config.GnafSchema()
	bdys := config.AdminBdysSchema()

	if err := createTagTable(ctx, pool, gnaf, bdys); err != nil {
		return err
	}
	if err := removeCrossBorderTags(ctx, pool, gnaf); err != nil {
		return err
	}
	if err := mergeTags(ctx, pool, gnaf); err != nil {
		return err
	}
	if err := logDuplicateTags(ctx, pool, gnaf); err != nil {
		return err
	}

	_, err = pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s.temp_lga_tags", gnaf))
	return err
}

func createTagTable(ctx context.Context, pool *pgxpool.Pool, gnaf, bdys string) error {
	query := fmt.Sprintf(`
		DROP TABLE IF EXISTS %[1]s.temp_lga_tags;

		CREATE TABLE %[1]s.temp_lga_tags AS
		SELECT pnts.gnaf_pid,
		       pnts.state AS gnaf_state,
		       bdys.state AS bdy_state,
		       bdys.lga_pid AS bdy_pid,
		       bdys.lga_name AS bdy_name
		FROM %[1]s.%[3]s AS pnts
		INNER JOIN %[2]s.%[4]s AS bdys ON ST_Contains(bdys.geom, pnts.geom);
	`, gnaf, bdys, database.TableAddressPrincipals, database.TableLgaBdys)

	if _, err := pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to tag addresses with LGA boundaries: %w", err)
	}

	log.Info("Tagged principal addresses with LGA boundary IDs")
	return nil
}

// removeCrossBorderTags drops matches where an address point sits just
// inside a neighbouring state's boundary polygon. OT addresses are exempt,
// the external territories have no boundaries of their own.
func removeCrossBorderTags(ctx context.Context, pool *pgxpool.Pool, gnaf string) error {
	query := fmt.Sprintf(`
		DELETE FROM %[1]s.temp_lga_tags WHERE gnaf_state <> bdy_state AND gnaf_state <> 'OT';
		CREATE INDEX temp_lga_tags_gnaf_pid_idx ON %[1]s.temp_lga_tags USING btree (gnaf_pid);
		ANALYZE %[1]s.temp_lga_tags;
	`, gnaf)

	if _, err := pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to remove cross border tags: %w", err)
	}

	log.Info("Removed invalid cross border matches")
	return nil
}

func mergeTags(ctx context.Context, pool *pgxpool.Pool, gnaf string) error {
	query := fmt.Sprintf(`
		TRUNCATE TABLE %[1]s.%[2]s;

		INSERT INTO %[1]s.%[2]s (gnaf_pid, locality_pid, locality_name, postcode, state, lga_pid, lga_name)
		SELECT pnts.gnaf_pid,
		       pnts.locality_pid,
		       pnts.locality_name,
		       pnts.postcode,
		       pnts.state,
		       tags.bdy_pid,
		       tags.bdy_name
		FROM %[1]s.%[3]s AS pnts
		LEFT OUTER JOIN %[1]s.temp_lga_tags AS tags ON pnts.gnaf_pid = tags.gnaf_pid;

		CREATE INDEX IF NOT EXISTS %[2]s_gnaf_pid_idx ON %[1]s.%[2]s USING btree (gnaf_pid);
		ANALYZE %[1]s.%[2]s;
	`, gnaf, database.TableAddressBdys, database.TableAddressPrincipals)

	if _, err := pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to merge boundary tags: %w", err)
	}

	log.Info("Boundary tags added to output table")
	return nil
}

// logDuplicateTags lists addresses tagged by more than one boundary. This
// happens where two polygons overlap by a sliver and can be ignored when
// the count is small.
func logDuplicateTags(ctx context.Context, pool *pgxpool.Pool, gnaf string) error {
	query := fmt.Sprintf(`
		SELECT gnaf_pid
		FROM (SELECT count(*) AS cnt, gnaf_pid FROM %s.%s GROUP BY gnaf_pid) AS sqt
		WHERE cnt > 1`, gnaf, database.TableAddressBdys)

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate tags: %w", err)
	}
	defer rows.Close()

	var duplicates []string
	for rows.Next() {
		var gnafPID string
		if err := rows.Scan(&gnafPID); err != nil {
			return err
		}
		duplicates = append(duplicates, gnafPID)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(duplicates) > 0 {
		log.Warnf("Found %d boundary tag duplicates", len(duplicates))
		for _, gnafPID := range duplicates {
			log.Warnf("\t%s", gnafPID)
		}
	} else {
		log.Info("No boundary tag duplicates")
	}

	return nil
}
