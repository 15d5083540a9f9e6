package tx

import (
	"context"
	"fmt"

	"github.com/Konsultn-Engineering/daokit/database"
)

// Batch is a maximal run of adjacent units with equal batch keys.
type Batch struct {
	Key   string
	Units []*Unit
}

// Batches splits units into batches in a single left-to-right pass. A unit
// joins the pending batch iff its key equals the previous unit's key.
func Batches(units []*Unit) []Batch {
	var batches []Batch
	for _, u := range units {
		key := u.stmt.BatchKey()
		if n := len(batches); n > 0 && batches[n-1].Key == key {
			batches[n-1].Units = append(batches[n-1].Units, u)
			continue
		}
		batches = append(batches, Batch{Key: key, Units: []*Unit{u}})
	}
	return batches
}

// execute runs the batch as one call and fans the row counts out to its
// units in submission order.
func (b Batch) execute(ctx context.Context, dbtx database.Tx) error {
	if len(b.Units) == 1 {
		u := b.Units[0]
		n, err := u.stmt.Exec(ctx, dbtx)
		if err != nil {
			return err
		}
		return u.record(n)
	}

	argSets := make([][]any, len(b.Units))
	for i, u := range b.Units {
		argSets[i] = u.stmt.Args()
	}
	counts, err := dbtx.ExecBatch(ctx, b.Key, argSets)
	if err != nil {
		return err
	}
	if len(counts) != len(b.Units) {
		return fmt.Errorf("batch returned %d row counts for %d statements", len(counts), len(b.Units))
	}
	for i, u := range b.Units {
		if err := u.record(counts[i]); err != nil {
			return err
		}
	}
	return nil
}
