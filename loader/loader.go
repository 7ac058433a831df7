package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/minus34/gnaf-loader/database"
	"github.com/minus34/gnaf-loader/settings"
)

// copyTask maps one PSV file to its raw table.
type copyTask struct {
	Path  string
	Table string
}

// LoadAll streams the raw GNAF PSV extract into the raw schema with the
// COPY protocol, several files in flight at once, then analyses the loaded
// tables so row counts are available for QA.
func LoadAll(ctx context.Context, config settings.Config) error {
	pool, err := database.GetDBPool("gnaf", config.Database)
	if err != nil {
		return err
	}

	tasks, err := discover(config.GnafDirectory, config.States)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no raw GNAF PSV files found in %s, check your GNAF_DATA_DIR path", config.GnafDirectory)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed []string

	workers := int(config.Database.MaxConnections)
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	for _, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}

		go func(task copyTask) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := copyFile(ctx, pool, config.RawGnafSchema(), task); err != nil {
				log.Errorf("Failed to load %s: %v", task.Path, err)
				mu.Lock()
				failed = append(failed, task.Path)
				mu.Unlock()
				return
			}
			log.Infof("Loaded %s", filepath.Base(task.Path))
		}(task)
	}

	wg.Wait()

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d PSV files failed to load", len(failed), len(tasks))
	}

	if err := analyseTables(ctx, pool, config.RawGnafSchema()); err != nil {
		return err
	}

	log.Infof("Loaded %d PSV files into %s", len(tasks), config.RawGnafSchema())
	return nil
}

// discover walks the extract directory for the authority code files plus
// one file set per requested state. Files that don't map onto a raw GNAF
// table are skipped with a warning rather than failing the COPY later.
func discover(dir string, states []string) ([]copyTask, error) {
	prefixes := []string{"authority_code"}
	for _, state := range states {
		prefixes = append(prefixes, strings.ToLower(state))
	}

	knownTables := make(map[string]bool)
	for _, table := range database.RawGnafTables() {
		knownTables[table] = true
	}

	var tasks []copyTask
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := strings.ToLower(d.Name())
		if !strings.HasSuffix(name, ".psv") {
			return nil
		}

		for _, prefix := range prefixes {
			if strings.HasPrefix(name, prefix+"_") {
				table := tableForFile(name, prefix)
				if !knownTables[table] {
					log.Warnf("Skipping %s: no raw GNAF table %q", d.Name(), table)
					break
				}
				tasks = append(tasks, copyTask{Path: path, Table: table})
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	return tasks, nil
}

// tableForFile derives the raw table name from a PSV file name, e.g.
// "nsw_address_detail_psv.psv" with prefix "nsw" becomes "address_detail".
func tableForFile(name, prefix string) string {
	name = strings.ToLower(name)
	name = strings.TrimPrefix(name, prefix+"_")
	name = strings.TrimSuffix(name, ".psv")
	name = strings.TrimSuffix(name, "_psv")
	return name
}

func copyFile(ctx context.Context, pool *pgxpool.Pool, schema string, task copyTask) error {
	f, err := os.Open(task.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	query := fmt.Sprintf(`COPY %s.%s FROM STDIN WITH (FORMAT csv, HEADER true, DELIMITER '|')`,
		schema, task.Table)

	_, err = conn.Conn().PgConn().CopyFrom(ctx, f, query)
	return err
}

// analyseTables analyses every raw table that still has no stats, so the QA
// stage sees real row counts.
func analyseTables(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	query := `
		SELECT nspname || '.' || relname
		FROM pg_class c
		LEFT JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE nspname = $1 AND relkind = 'r' AND reltuples = 0`

	rows, err := pool.Query(ctx, query, schema)
	if err != nil {
		return fmt.Errorf("failed to list unanalysed tables: %w", err)
	}

	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			rows.Close()
			return err
		}
		tables = append(tables, table)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, table := range tables {
		if _, err := pool.Exec(ctx, "ANALYZE "+table); err != nil {
			return fmt.Errorf("failed to analyse %s: %w", table, err)
		}
	}

	log.Infof("Analysed %d tables", len(tables))
	return nil
}
