package backfill

import "fmt"

// ValidationError reports a rule whose locality pid has no addresses in the
// dataset. The legacy pipeline silently skipped these, so the applier logs
// a warning and keeps going rather than failing the pass.
type ValidationError struct {
	LocalityPID string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rule references locality %q which has no addresses in the dataset", e.LocalityPID)
}

// IntegrityError reports addresses left with one of the two LGA fields set
// and the other null. The pair must always be assigned together, so this is
// fatal and rolls back the whole backfill pass.
type IntegrityError struct {
	Rows int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%d addresses have partially assigned LGA fields after backfill", e.Rows)
}
