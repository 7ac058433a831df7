package backfill

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/minus34/gnaf-loader/database"
)

// Address is one boundary tagged address row. The LGA pair is either both
// nil (outside every LGA polygon) or both set; the applier preserves that
// invariant and touches no other field.
type Address struct {
	GnafPID     string
	LocalityPID string
	State       string
	LGAPID      *string
	LGAName     *string
}

// Consistent reports whether the LGA fields are both null or both set.
func (a *Address) Consistent() bool {
	return (a.LGAPID == nil) == (a.LGAName == nil)
}

// RuleResult is the outcome of one rule application.
type RuleResult struct {
	Rule    Rule
	Updated int64
	// MissingLocality is set when a locality scoped rule matched nothing
	// because its locality pid has no addresses at all. Kept as a no-op for
	// compatibility with the legacy fix scripts, surfaced as a warning.
	MissingLocality bool
}

// Apply runs the rule set over the addresses in declaration order, mutating
// LGA fields in place. An address is assigned by at most one rule per pass.
// Applying the same rule set twice is a no-op the second time: the null
// guard no longer holds for assigned rows and the overwrite rules reassign
// identical values.
func Apply(rules RuleSet, addresses []*Address) ([]RuleResult, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	localities := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		localities[a.LocalityPID] = true
	}

	assigned := make(map[*Address]bool)
	results := make([]RuleResult, 0, len(rules.Rules))

	for _, rule := range rules.Rules {
		result := RuleResult{Rule: rule}

		for _, a := range addresses {
			if assigned[a] || !rule.Matches(a) {
				continue
			}
			pid := rule.LGAPID
			name := rule.LGAName
			a.LGAPID = &pid
			a.LGAName = &name
			assigned[a] = true
			result.Updated++
		}

		if result.Updated == 0 && rule.Locality != "" && !localities[rule.Locality] {
			result.MissingLocality = true
			log.Warnf("Backfill: %v", &ValidationError{LocalityPID: rule.Locality})
		}

		results = append(results, result)
	}

	var broken int64
	for _, a := range addresses {
		if !a.Consistent() {
			broken++
		}
	}
	if broken > 0 {
		return nil, &IntegrityError{Rows: broken}
	}

	return results, nil
}

// DB is the transaction source the database applier needs, satisfied by
// *pgxpool.Pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Run applies the rule set to the boundary tagged address table in a single
// transaction: one bulk UPDATE per rule in declaration order, then an
// integrity check before commit. Any failure, including an integrity
// violation, rolls the whole pass back so the table is never left half
// backfilled. Rows claimed by an earlier rule are excluded from later
// UPDATEs so only the first matching rule applies, same as Apply.
func Run(ctx context.Context, db DB, schema string, rules RuleSet) ([]RuleResult, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `CREATE TEMPORARY TABLE backfill_claimed (gid integer PRIMARY KEY) ON COMMIT DROP`)
	if err != nil {
		return nil, fmt.Errorf("failed to create claimed row table: %w", err)
	}

	results := make([]RuleResult, 0, len(rules.Rules))
	for _, rule := range rules.Rules {
		result, err := applyRule(ctx, tx, schema, rule)
		if err != nil {
			return nil, err
		}
		if result.MissingLocality {
			log.Warnf("Backfill: %v", &ValidationError{LocalityPID: rule.Locality})
		}
		results = append(results, result)
	}

	if err := checkIntegrity(ctx, tx, schema); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit backfill: %w", err)
	}

	return results, nil
}

func applyRule(ctx context.Context, tx pgx.Tx, schema string, rule Rule) (RuleResult, error) {
	result := RuleResult{Rule: rule}

	conditions := []string{}
	args := []any{rule.LGAPID, rule.LGAName}

	if rule.State != "" {
		args = append(args, rule.State)
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)))
	}
	if rule.Locality != "" {
		args = append(args, rule.Locality)
		conditions = append(conditions, fmt.Sprintf("locality_pid = $%d", len(args)))
	}
	if !rule.Overwrite {
		conditions = append(conditions, "lga_pid IS NULL")
	}

	// The CTE records updated rows so later rules can't re-touch them; the
	// returned row count is the count inserted, which equals the count
	// updated.
	query := fmt.Sprintf(`
		WITH updated AS (
			UPDATE %s.%s AS addr
			SET lga_pid = $1, lga_name = $2
			WHERE %s
			  AND NOT EXISTS (SELECT 1 FROM backfill_claimed AS c WHERE c.gid = addr.gid)
			RETURNING addr.gid
		)
		INSERT INTO backfill_claimed SELECT gid FROM updated`,
		schema, database.TableAddressBdys, strings.Join(conditions, " AND "))

	ct, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return result, fmt.Errorf("failed to apply rule %v: %w", rule, err)
	}
	result.Updated = ct.RowsAffected()

	// A zero row count on a guarded rule is normal on a rerun; only a
	// locality absent from the dataset is worth flagging.
	if result.Updated == 0 && rule.Locality != "" {
		query = fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s.%s WHERE locality_pid = $1)`,
			schema, database.TableAddressBdys)

		var exists bool
		if err := tx.QueryRow(ctx, query, rule.Locality).Scan(&exists); err != nil {
			return result, fmt.Errorf("failed to check locality %s: %w", rule.Locality, err)
		}
		result.MissingLocality = !exists
	}

	return result, nil
}

func checkIntegrity(ctx context.Context, tx pgx.Tx, schema string) error {
	query := fmt.Sprintf(`SELECT count(*) FROM %s.%s WHERE (lga_pid IS NULL) <> (lga_name IS NULL)`,
		schema, database.TableAddressBdys)

	var broken int64
	if err := tx.QueryRow(ctx, query).Scan(&broken); err != nil {
		return fmt.Errorf("integrity check failed to run: %w", err)
	}
	if broken > 0 {
		return &IntegrityError{Rows: broken}
	}
	return nil
}

// AuditSummary is the tail of the audit scan: total rows and the residue
// still carrying null LGA fields. The residue is a valid terminal state
// (offshore points and leases), not a backfill gap.
type AuditSummary struct {
	Total      int64
	Unassigned int64
}

// AuditRow is one row of the read only post-backfill scan.
type AuditRow struct {
	GnafPID      string
	LocalityPID  string
	LocalityName string
	Postcode     *string
	State        string
	LGAPID       *string
	LGAName      *string
}

// AuditScan streams every boundary tagged address through fn for manual
// audit. It never mutates; it is the verification side channel of the
// backfill, not part of it.
func AuditScan(ctx context.Context, pool *pgxpool.Pool, schema string, fn func(AuditRow) error) (AuditSummary, error) {
	var summary AuditSummary

	query := fmt.Sprintf(`
		SELECT gnaf_pid, locality_pid, locality_name, postcode, state, lga_pid, lga_name
		FROM %s.%s
		ORDER BY gnaf_pid`, schema, database.TableAddressBdys)

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return summary, fmt.Errorf("audit scan failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row AuditRow
		if err := rows.Scan(&row.GnafPID, &row.LocalityPID, &row.LocalityName,
			&row.Postcode, &row.State, &row.LGAPID, &row.LGAName); err != nil {
			return summary, fmt.Errorf("audit scan failed: %w", err)
		}

		summary.Total++
		if row.LGAPID == nil {
			summary.Unassigned++
		}

		if fn != nil {
			if err := fn(row); err != nil {
				return summary, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("audit scan failed: %w", err)
	}

	return summary, nil
}
