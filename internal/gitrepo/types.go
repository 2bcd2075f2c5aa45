// Package gitrepo provides read access to the host git repository:
// refs, branches, HEAD, and commit objects. It is the only package that
// understands the on-disk git directory layout; everything above it deals
// in CommitIDs.
package gitrepo

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CommitID is the opaque content-hash identity of a commit, owned by the
// repository. The empty string means "no commit" (e.g. an unborn HEAD, or
// the absent side of a ref update).
type CommitID string

// ZeroID is the all-zero id git uses to mean "no commit" in hook payloads.
const ZeroID = "0000000000000000000000000000000000000000"

// shortIDLen is the fixed length of rendered short ids.
const shortIDLen = 8

// IsZero reports whether the id is empty or the git all-zero id.
func (id CommitID) IsZero() bool {
	return id == "" || string(id) == ZeroID
}

// Short returns the fixed-length hex prefix used in rendered output.
func (id CommitID) Short() string {
	s := string(id)
	if len(s) > shortIDLen {
		return s[:shortIDLen]
	}
	return s
}

// NormalizeID converts a hook-supplied id into a CommitID, mapping the
// all-zero id to the empty id.
func NormalizeID(raw string) CommitID {
	raw = strings.TrimSpace(raw)
	if raw == ZeroID {
		return ""
	}
	return CommitID(raw)
}

// Commit is a read-only snapshot of one commit object.
type Commit struct {
	ID      CommitID
	Parents []CommitID
	// Summary is the first line of the commit message.
	Summary string
	// Time is the committer timestamp, used only for deterministic
	// sibling ordering.
	Time time.Time
}

// Branch is one branch ref with its target.
type Branch struct {
	// Name is the short branch name, e.g. "master" or "origin/master"
	// for remote-tracking branches.
	Name     string
	Target   CommitID
	IsRemote bool
}

// Repository is the adapter contract the core consumes. Implementations:
// GitDir (production, reads the git directory) and testutil.Repo (in-memory).
type Repository interface {
	// Head returns the current HEAD commit id (empty if unborn) and the
	// short name of the checked-out branch (empty if detached).
	Head() (CommitID, string, error)

	// Resolve maps a ref name, full hash, or unambiguous hash prefix to a
	// commit id. Returns a NotFoundError if nothing matches.
	Resolve(name string) (CommitID, error)

	// Branches enumerates local and remote-tracking branches.
	Branches() ([]Branch, error)

	// Commit reads one commit object. Returns a NotFoundError if the
	// object does not exist.
	Commit(id CommitID) (*Commit, error)

	// UpdateRef points ref name at id, creating it if needed. Used only
	// for GC pin refs under refs/sprig/.
	UpdateRef(name string, id CommitID) error

	// DeleteRef removes a ref, ignoring refs that do not exist.
	DeleteRef(name string) error
}

// NotFoundError reports a missing object or unresolvable name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found in repository: %s", e.Name)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
