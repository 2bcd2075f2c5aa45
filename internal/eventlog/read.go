package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/sprigdev/sprig/internal/gitrepo"
)

// EventsSince returns all events with id strictly greater than after,
// ascending by id. EventsSince(0) returns the full log. Incremental
// consumers (e.g. an undo cursor) pass their high-water mark.
func (s *Store) EventsSince(ctx context.Context, after EventID) ([]Stored, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, txn_id, kind, time, commit_id, old_commit_id, new_commit_id, ref_name
		FROM events
		WHERE id > ?
		ORDER BY id ASC
	`, int64(after))
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	defer rows.Close()

	var events []Stored
	for rows.Next() {
		var (
			id                              int64
			txnID, kind                     string
			unix                            int64
			commitID, oldID, newID, refName string
		)
		if err := rows.Scan(&id, &txnID, &kind, &unix, &commitID, &oldID, &newID, &refName); err != nil {
			return nil, &StorageError{Op: "read", Err: err}
		}

		event, err := unmarshalEvent(kind, unix, commitID, oldID, newID, refName)
		if err != nil {
			return nil, &StorageError{Op: "read", Err: err}
		}
		events = append(events, Stored{ID: EventID(id), TxnID: txnID, Event: event})
	}

	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}

	return events, nil
}

// LatestEventID returns the log's high-water mark, 0 for an empty log.
func (s *Store) LatestEventID(ctx context.Context) (EventID, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM events`).Scan(&id)
	if err != nil {
		return 0, &StorageError{Op: "read", Err: err}
	}
	return EventID(id), nil
}

// unmarshalEvent rebuilds an event variant from its column form. The
// switch is exhaustive over the stored kinds; an unknown kind is a
// corrupt or future-format log.
func unmarshalEvent(kind string, unix int64, commitID, oldID, newID, refName string) (Event, error) {
	at := time.Unix(unix, 0).UTC()

	switch kind {
	case KindCommit:
		return CommitCreated{Commit: gitrepo.CommitID(commitID), Time: at}, nil
	case KindRewrite:
		return CommitRewritten{Old: gitrepo.CommitID(oldID), New: gitrepo.CommitID(newID), Time: at}, nil
	case KindRefUpdate:
		return RefUpdated{Ref: refName, Old: gitrepo.CommitID(oldID), New: gitrepo.CommitID(newID), Time: at}, nil
	case KindHide:
		return CommitHidden{Commit: gitrepo.CommitID(commitID), Time: at}, nil
	case KindUnhide:
		return CommitUnhidden{Commit: gitrepo.CommitID(commitID), Time: at}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}
