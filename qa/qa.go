// Package qa builds per state row count tables for each output schema and,
// when the previous release is still in the database, a comparison of row
// counts between the two releases.
package qa

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/minus34/gnaf-loader/database"
	"github.com/minus34/gnaf-loader/settings"
)

// Run refreshes the qa tables for the gnaf and admin_bdys schemas.
func Run(ctx context.Context, config settings.Config) error {
	pool, err := database.GetDBPool("gnaf", config.Database)
	if err != nil {
		return err
	}

	schemas := []struct {
		name     string
		previous string
	}{
		{config.GnafSchema(), config.PreviousGnafSchema()},
		{config.AdminBdysSchema(), config.PreviousAdminBdysSchema()},
	}

	for _, schema := range schemas {
		if err := countRows(ctx, pool, schema.name); err != nil {
			return err
		}
		if err := compareWithPrevious(ctx, pool, schema.name, schema.previous); err != nil {
			return err
		}
		log.Infof("Got row counts for %s schema", schema.name)
	}

	return nil
}

func countRows(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	query := fmt.Sprintf(`
		DROP TABLE IF EXISTS %[1]s.qa;
		CREATE TABLE %[1]s.qa (
			table_name text,
			aus integer, act integer, nsw integer, nt integer, ot integer,
			qld integer, sa integer, tas integer, vic integer, wa integer
		);`, schema)

	if _, err := pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create qa table in %s: %w", schema, err)
	}

	tables, err := tableNames(ctx, pool, schema)
	if err != nil {
		return err
	}

	for _, table := range tables {
		if err := countTable(ctx, pool, schema, table); err != nil {
			log.Warnf("Couldn't get row count for %s.%s: %v", schema, table, err)
		}
	}

	_, err = pool.Exec(ctx, fmt.Sprintf("ANALYZE %s.qa", schema))
	return err
}

func tableNames(ctx context.Context, pool *pgxpool.Pool, schema string) ([]string, error) {
	query := `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_name NOT IN ('qa', 'qa_comparison')
		ORDER BY table_name`

	rows, err := pool.Query(ctx, query, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables in %s: %w", schema, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, rows.Err()
}

// countTable counts rows by state. Tables without a state column get an
// Australia-wide count only.
func countTable(ctx context.Context, pool *pgxpool.Pool, schema, table string) error {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s.qa
		SELECT '%[2]s', SUM(aus), SUM(act), SUM(nsw), SUM(nt), SUM(ot),
		       SUM(qld), SUM(sa), SUM(tas), SUM(vic), SUM(wa)
		FROM (
			SELECT 1 AS aus,
			       CASE WHEN state = 'ACT' THEN 1 ELSE 0 END AS act,
			       CASE WHEN state = 'NSW' THEN 1 ELSE 0 END AS nsw,
			       CASE WHEN state = 'NT' THEN 1 ELSE 0 END AS nt,
			       CASE WHEN state = 'OT' THEN 1 ELSE 0 END AS ot,
			       CASE WHEN state = 'QLD' THEN 1 ELSE 0 END AS qld,
			       CASE WHEN state = 'SA' THEN 1 ELSE 0 END AS sa,
			       CASE WHEN state = 'TAS' THEN 1 ELSE 0 END AS tas,
			       CASE WHEN state = 'VIC' THEN 1 ELSE 0 END AS vic,
			       CASE WHEN state = 'WA' THEN 1 ELSE 0 END AS wa
			FROM %[1]s.%[2]s
		) AS sqt`, schema, table)

	if _, err := pool.Exec(ctx, query); err == nil {
		return nil
	}

	// no state column on this table
	query = fmt.Sprintf(`INSERT INTO %[1]s.qa (table_name, aus) SELECT '%[2]s', count(*) FROM %[1]s.%[2]s`,
		schema, table)
	_, err := pool.Exec(ctx, query)
	return err
}

func compareWithPrevious(ctx context.Context, pool *pgxpool.Pool, schema, previous string) error {
	if previous == "" {
		return nil
	}

	var exists bool
	err := pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)", previous).
		Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		log.Warnf("Previous schema (%s) doesn't exist - row count comparison not done", previous)
		return nil
	}

	query := fmt.Sprintf(`
		DROP TABLE IF EXISTS %[1]s.qa_comparison;
		CREATE TABLE %[1]s.qa_comparison (
			table_name text,
			difference integer,
			new_count integer,
			old_count integer
		);

		INSERT INTO %[1]s.qa_comparison
		SELECT new.table_name,
		       new.aus - old.aus AS difference,
		       new.aus AS new_count,
		       old.aus AS old_count
		FROM %[1]s.qa AS new
		INNER JOIN %[2]s.qa AS old ON new.table_name = old.table_name;

		ANALYZE %[1]s.qa_comparison;`, schema, previous)

	if _, err := pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to build qa comparison for %s: %w", schema, err)
	}

	rows, err := pool.Query(ctx,
		fmt.Sprintf("SELECT table_name, difference, new_count, old_count FROM %s.qa_comparison ORDER BY table_name", schema))
	if err != nil {
		return err
	}
	defer rows.Close()

	log.Info("\t------------------------------------------------------------------------")
	log.Infof("\t|%-39s|%10s|%9s|%9s|", "table_name", "difference", "new_count", "old_count")
	log.Info("\t------------------------------------------------------------------------")

	for rows.Next() {
		var table string
		var difference, newCount, oldCount int64
		if err := rows.Scan(&table, &difference, &newCount, &oldCount); err != nil {
			return err
		}
		log.Infof("\t|%-39s|%10d|%9d|%9d|", table, difference, newCount, oldCount)
	}

	log.Info("\t------------------------------------------------------------------------")
	return rows.Err()
}
