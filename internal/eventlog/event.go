// Package eventlog provides the durable, append-only record of observed
// repository state changes. Uses SQLite with WAL mode; every append is one
// transaction, visible to readers in full or not at all.
package eventlog

import (
	"time"

	"github.com/sprigdev/sprig/internal/gitrepo"
)

// EventID identifies one stored event. IDs are strictly increasing in
// append order and never reused.
type EventID int64

// Event is the closed set of repository state changes the log records.
// Consumers switch exhaustively over the concrete types; adding a variant
// must update every switch (the default branch fails loudly).
type Event interface {
	// Kind returns the stable storage tag for this variant.
	Kind() string

	// When returns the time the change was observed.
	When() time.Time

	// eventMarker restricts implementations to this package.
	eventMarker()
}

// Storage tags for event variants. These are part of the on-disk format.
const (
	KindCommit    = "commit"
	KindRewrite   = "rewrite"
	KindRefUpdate = "ref-update"
	KindHide      = "hide"
	KindUnhide    = "unhide"
)

// CommitCreated records that a new commit became HEAD via `git commit`.
type CommitCreated struct {
	Commit gitrepo.CommitID
	Time   time.Time
}

// CommitRewritten records that Old was superseded by New (amend, rebase).
// An empty New means the commit was dropped entirely.
type CommitRewritten struct {
	Old  gitrepo.CommitID
	New  gitrepo.CommitID
	Time time.Time
}

// RefUpdated records one ref moving from Old to New. Either side may be
// empty (ref created or deleted). Ref is "HEAD" for checkouts.
type RefUpdated struct {
	Ref  string
	Old  gitrepo.CommitID
	New  gitrepo.CommitID
	Time time.Time
}

// CommitHidden records an explicit user request to hide a commit.
type CommitHidden struct {
	Commit gitrepo.CommitID
	Time   time.Time
}

// CommitUnhidden records an explicit user request to unhide a commit.
type CommitUnhidden struct {
	Commit gitrepo.CommitID
	Time   time.Time
}

func (e CommitCreated) Kind() string   { return KindCommit }
func (e CommitRewritten) Kind() string { return KindRewrite }
func (e RefUpdated) Kind() string      { return KindRefUpdate }
func (e CommitHidden) Kind() string    { return KindHide }
func (e CommitUnhidden) Kind() string  { return KindUnhide }

func (e CommitCreated) When() time.Time   { return e.Time }
func (e CommitRewritten) When() time.Time { return e.Time }
func (e RefUpdated) When() time.Time      { return e.Time }
func (e CommitHidden) When() time.Time    { return e.Time }
func (e CommitUnhidden) When() time.Time  { return e.Time }

func (CommitCreated) eventMarker()   {}
func (CommitRewritten) eventMarker() {}
func (RefUpdated) eventMarker()      {}
func (CommitHidden) eventMarker()    {}
func (CommitUnhidden) eventMarker()  {}

// Stored is one event as read back from the log, with its assigned id and
// the transaction it arrived in.
type Stored struct {
	ID    EventID
	TxnID string
	Event Event
}

// Transaction is the set of events produced by one logical repository
// operation. All of its events become visible to readers together.
type Transaction struct {
	ID     string
	Events []Event
}
