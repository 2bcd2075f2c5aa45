package eventlog

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// TxnIDEnv is the environment variable through which the hook wrapper
// supplies the grouping id for all ref updates in one git command. When
// unset, a fresh id is synthesized per invocation.
const TxnIDEnv = "SPRIG_TXN_ID"

// AllocateTransactionID returns the transaction id for this invocation:
// the host-supplied grouping id if present, otherwise a fresh UUIDv7.
func AllocateTransactionID() string {
	if id := os.Getenv(TxnIDEnv); id != "" {
		return id
	}
	return uuid.Must(uuid.NewV7()).String()
}

// Append durably stores all events of one transaction. The write lock is
// held only for the duration of this call; the bounded busy timeout turns
// contention into an explicit StorageError rather than silent data loss.
//
// Returns the assigned id range [first, last]. An empty transaction is a
// no-op and returns (0, 0).
func (s *Store) Append(ctx context.Context, txn Transaction) (first, last EventID, err error) {
	if len(txn.Events) == 0 {
		return 0, 0, nil
	}
	if txn.ID == "" {
		return 0, 0, &StorageError{Op: "append", Err: fmt.Errorf("transaction has no id")}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, &StorageError{Op: "append", Err: err}
	}
	defer tx.Rollback() // No-op if committed

	for _, event := range txn.Events {
		row, err := marshalEvent(event)
		if err != nil {
			return 0, 0, &StorageError{Op: "append", Err: err}
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO events (txn_id, kind, time, commit_id, old_commit_id, new_commit_id, ref_name)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			txn.ID,
			row.kind,
			row.time,
			row.commitID,
			row.oldID,
			row.newID,
			row.refName,
		)
		if err != nil {
			return 0, 0, &StorageError{Op: "append", Err: err}
		}

		id, err := result.LastInsertId()
		if err != nil {
			return 0, 0, &StorageError{Op: "append", Err: err}
		}
		if first == 0 {
			first = EventID(id)
		}
		last = EventID(id)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, &StorageError{Op: "append", Err: err}
	}

	return first, last, nil
}

// eventRow is the column form of one event.
type eventRow struct {
	kind     string
	time     int64
	commitID string
	oldID    string
	newID    string
	refName  string
}

// marshalEvent flattens an event variant into its column form. The switch
// is exhaustive over the closed variant set.
func marshalEvent(event Event) (eventRow, error) {
	row := eventRow{kind: event.Kind(), time: event.When().Unix()}

	switch e := event.(type) {
	case CommitCreated:
		row.commitID = string(e.Commit)
	case CommitRewritten:
		row.oldID = string(e.Old)
		row.newID = string(e.New)
	case RefUpdated:
		row.refName = e.Ref
		row.oldID = string(e.Old)
		row.newID = string(e.New)
	case CommitHidden:
		row.commitID = string(e.Commit)
	case CommitUnhidden:
		row.commitID = string(e.Commit)
	default:
		return eventRow{}, fmt.Errorf("unhandled event variant %T", event)
	}

	return row, nil
}
