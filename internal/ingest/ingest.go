// Package ingest translates hook invocations into canonical events. It is
// the sole parser of the host's hook argument/stdin formats; everything it
// stores goes through the event log in one transaction per invocation.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sprigdev/sprig/internal/eventlog"
	"github.com/sprigdev/sprig/internal/gitrepo"
)

// PinRefPrefix is the namespace for GC pin refs. Updates under it are this
// tool's own writes and never produce events.
const PinRefPrefix = "refs/sprig/"

// Ingestor handles one hook invocation: parse the payload, append the
// resulting transaction, exit. It keeps no state across invocations.
type Ingestor struct {
	Repo gitrepo.Repository
	Log  *eventlog.Store

	// Now stamps events; defaults to time.Now. Tests inject a fixed
	// clock.
	Now func() time.Time
}

func (in *Ingestor) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

// append stores events under a fresh (or host-supplied) transaction id.
func (in *Ingestor) append(ctx context.Context, events []eventlog.Event) error {
	if len(events) == 0 {
		return nil
	}
	txn := eventlog.Transaction{ID: eventlog.AllocateTransactionID(), Events: events}
	_, _, err := in.Log.Append(ctx, txn)
	return err
}

// PostCommit records the new HEAD commit after `git commit`.
func (in *Ingestor) PostCommit(ctx context.Context) error {
	head, _, err := in.Repo.Head()
	if err != nil {
		return fmt.Errorf("post-commit: %w", err)
	}
	if head.IsZero() {
		return fmt.Errorf("post-commit: no HEAD commit")
	}
	return in.append(ctx, []eventlog.Event{
		eventlog.CommitCreated{Commit: head, Time: in.now()},
	})
}

// PostRewrite records one rewrite event per (old, new) pair on payload,
// one line each: "<old> <new> [extra]". A line with only an old id means
// the commit was dropped entirely. kind is the host's rewrite kind
// ("amend" or "rebase"); all kinds are recorded the same way.
func (in *Ingestor) PostRewrite(ctx context.Context, kind string, payload io.Reader) error {
	var events []eventlog.Event
	at := in.now()

	scanner := bufio.NewScanner(payload)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		old := gitrepo.NormalizeID(fields[0])
		if old.IsZero() {
			continue
		}
		var newID gitrepo.CommitID
		if len(fields) > 1 {
			newID = gitrepo.NormalizeID(fields[1])
		}
		events = append(events, eventlog.CommitRewritten{Old: old, New: newID, Time: at})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("post-rewrite (%s): read payload: %w", kind, err)
	}

	return in.append(ctx, events)
}

// PostCheckout records a HEAD move. Switching branch name at the same
// commit id is not an event; neither is a file checkout (flag "0").
func (in *Ingestor) PostCheckout(ctx context.Context, oldRaw, newRaw, flag string) error {
	if flag == "0" {
		return nil
	}
	old := gitrepo.NormalizeID(oldRaw)
	newID := gitrepo.NormalizeID(newRaw)
	if old == newID {
		return nil
	}
	return in.append(ctx, []eventlog.Event{
		eventlog.RefUpdated{Ref: "HEAD", Old: old, New: newID, Time: in.now()},
	})
}

// ReferenceTransaction records one RefUpdated per changed ref, batched
// into a single transaction. Payload lines: "<old> <new> <refname>".
// No-op updates and this tool's own pin refs are dropped. Only the
// "committed" state is recorded; "prepared" and "aborted" produce
// nothing. Returns the number of stored events.
func (in *Ingestor) ReferenceTransaction(ctx context.Context, state string, payload io.Reader) (int, error) {
	if state != "committed" {
		return 0, nil
	}

	var events []eventlog.Event
	at := in.now()

	scanner := bufio.NewScanner(payload)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		old := gitrepo.NormalizeID(fields[0])
		newID := gitrepo.NormalizeID(fields[1])
		refName := fields[2]

		if old == newID {
			continue
		}
		if strings.HasPrefix(refName, PinRefPrefix) {
			continue
		}
		events = append(events, eventlog.RefUpdated{Ref: refName, Old: old, New: newID, Time: at})
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("reference-transaction: read payload: %w", err)
	}

	if err := in.append(ctx, events); err != nil {
		return 0, err
	}
	return len(events), nil
}
