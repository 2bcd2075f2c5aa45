package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/sprigdev/sprig/internal/eventlog"
	"github.com/sprigdev/sprig/internal/gitrepo"
)

// PreAutoGC pins every commit the event log still refers to so garbage
// collection cannot reclaim in-progress history out from under the log.
// Pins are auxiliary refs under refs/sprig/, one per commit.
//
// This path fails soft by contract: the caller reports the error as a
// warning and lets collection proceed. Returns the number of pinned
// commits.
func (in *Ingestor) PreAutoGC(ctx context.Context) (int, error) {
	events, err := in.Log.EventsSince(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("pre-auto-gc: %w", err)
	}

	keep := referencedCommits(events)

	ids := make([]gitrepo.CommitID, 0, len(keep))
	for id := range keep {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pinned := 0
	for _, id := range ids {
		// A commit already collected or otherwise gone cannot be pinned;
		// skipping it is the only option left.
		if _, err := in.Repo.Commit(id); err != nil {
			continue
		}
		if err := in.Repo.UpdateRef(PinRefPrefix+string(id), id); err != nil {
			return pinned, fmt.Errorf("pre-auto-gc: %w", err)
		}
		pinned++
	}
	return pinned, nil
}

// referencedCommits collects every commit id any event mentions. The
// switch is exhaustive over the closed event set.
func referencedCommits(events []eventlog.Stored) map[gitrepo.CommitID]bool {
	keep := make(map[gitrepo.CommitID]bool)
	add := func(id gitrepo.CommitID) {
		if !id.IsZero() {
			keep[id] = true
		}
	}
	for _, stored := range events {
		switch e := stored.Event.(type) {
		case eventlog.CommitCreated:
			add(e.Commit)
		case eventlog.CommitRewritten:
			add(e.Old)
			add(e.New)
		case eventlog.RefUpdated:
			add(e.Old)
			add(e.New)
		case eventlog.CommitHidden:
			add(e.Commit)
		case eventlog.CommitUnhidden:
			add(e.Commit)
		}
	}
	return keep
}
