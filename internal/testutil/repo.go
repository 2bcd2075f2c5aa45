// Package testutil provides the in-memory repository and deterministic
// clock the scenario and unit tests build on.
package testutil

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sprigdev/sprig/internal/gitrepo"
)

// Repo is an in-memory gitrepo.Repository. Tests construct history
// directly (AddCommit, SetBranch, SetHead) instead of shelling out to
// git, which keeps scenarios fast and byte-deterministic.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex, matching the read paths of the production implementation.
type Repo struct {
	mu       sync.Mutex
	commits  map[gitrepo.CommitID]gitrepo.Commit
	branches map[string]gitrepo.Branch
	refs     map[string]gitrepo.CommitID
	head     gitrepo.CommitID
	headRef  string
}

// NewRepo creates an empty repository with an unborn HEAD.
func NewRepo() *Repo {
	return &Repo{
		commits:  make(map[gitrepo.CommitID]gitrepo.Commit),
		branches: make(map[string]gitrepo.Branch),
		refs:     make(map[string]gitrepo.CommitID),
	}
}

// AddCommit registers a commit object. It does not move HEAD or any
// branch; scenarios sequence those moves explicitly.
func (r *Repo) AddCommit(id gitrepo.CommitID, parents []gitrepo.CommitID, summary string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits[id] = gitrepo.Commit{ID: id, Parents: parents, Summary: summary, Time: at}
}

// RemoveCommit deletes a commit object, simulating garbage collection.
func (r *Repo) RemoveCommit(id gitrepo.CommitID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.commits, id)
}

// SetBranch points a branch at a commit, creating it if needed. Remote
// names use the "origin/x" form, as Branches reports them.
func (r *Repo) SetBranch(name string, target gitrepo.CommitID, remote bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branches[name] = gitrepo.Branch{Name: name, Target: target, IsRemote: remote}
}

// DeleteBranch removes a branch if present.
func (r *Repo) DeleteBranch(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.branches, name)
}

// SetHead checks out a local branch. The branch must exist.
func (r *Repo) SetHead(branch string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.branches[branch]
	if !ok {
		panic(fmt.Sprintf("testutil: SetHead on unknown branch %q", branch))
	}
	r.head = b.Target
	r.headRef = branch
}

// DetachHead points HEAD directly at a commit.
func (r *Repo) DetachHead(id gitrepo.CommitID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = id
	r.headRef = ""
}

// Ref returns the target of an auxiliary ref written via UpdateRef, and
// whether it exists. Tests use it to observe GC pins.
func (r *Repo) Ref(name string) (gitrepo.CommitID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.refs[name]
	return id, ok
}

// Head implements gitrepo.Repository.
func (r *Repo) Head() (gitrepo.CommitID, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// A checked-out branch tracks its target even after the branch moved.
	if r.headRef != "" {
		if b, ok := r.branches[r.headRef]; ok {
			return b.Target, r.headRef, nil
		}
	}
	return r.head, r.headRef, nil
}

// Resolve implements gitrepo.Repository. It accepts HEAD, branch names,
// full ids, and unambiguous id prefixes of at least four characters.
func (r *Repo) Resolve(name string) (gitrepo.CommitID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "HEAD" {
		if r.headRef != "" {
			if b, ok := r.branches[r.headRef]; ok {
				return b.Target, nil
			}
		}
		if !r.head.IsZero() {
			return r.head, nil
		}
		return "", &gitrepo.NotFoundError{Name: name}
	}
	if b, ok := r.branches[name]; ok {
		return b.Target, nil
	}
	if _, ok := r.commits[gitrepo.CommitID(name)]; ok {
		return gitrepo.CommitID(name), nil
	}
	if len(name) >= 4 {
		var match gitrepo.CommitID
		for id := range r.commits {
			if strings.HasPrefix(string(id), name) {
				if match != "" {
					return "", fmt.Errorf("ambiguous commit prefix: %s", name)
				}
				match = id
			}
		}
		if match != "" {
			return match, nil
		}
	}
	return "", &gitrepo.NotFoundError{Name: name}
}

// Branches implements gitrepo.Repository. Output is sorted by name for
// determinism.
func (r *Repo) Branches() ([]gitrepo.Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]gitrepo.Branch, 0, len(r.branches))
	for _, b := range r.branches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Commit implements gitrepo.Repository.
func (r *Repo) Commit(id gitrepo.CommitID) (*gitrepo.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.commits[id]
	if !ok {
		return nil, &gitrepo.NotFoundError{Name: string(id)}
	}
	out := c
	return &out, nil
}

// UpdateRef implements gitrepo.Repository.
func (r *Repo) UpdateRef(name string, id gitrepo.CommitID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[name] = id
	return nil
}

// DeleteRef implements gitrepo.Repository.
func (r *Repo) DeleteRef(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.refs, name)
	return nil
}
