package gitrepo

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// GitDir reads a git repository directly from its git directory. It covers
// the surface this tool needs: refs (loose and packed), HEAD, and loose
// commit objects. Recent in-progress commits are loose; a commit that has
// been packed away is outside the window the smartlog renders and surfaces
// as a NotFoundError.
type GitDir struct {
	dir string
}

// Discover walks upward from start looking for a .git directory.
func Discover(start string) (*GitDir, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return nil, fmt.Errorf("discover repository: %w", err)
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return &GitDir{dir: gitDir}, nil
		}
		if filepath.Dir(dir) == dir {
			return nil, fmt.Errorf("discover repository: no git directory above %s", start)
		}
	}
}

// Open opens an explicit git directory.
func Open(gitDir string) (*GitDir, error) {
	info, err := os.Stat(gitDir)
	if err != nil {
		return nil, fmt.Errorf("open git directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open git directory: %s is not a directory", gitDir)
	}
	return &GitDir{dir: gitDir}, nil
}

// Dir returns the git directory path.
func (g *GitDir) Dir() string {
	return g.dir
}

// StateDir returns the repo-private directory for this tool's durable state.
func (g *GitDir) StateDir() string {
	return filepath.Join(g.dir, "sprig")
}

// Head returns the current HEAD commit id and checked-out branch name.
// An unborn HEAD (symbolic ref to a branch that does not exist yet)
// returns an empty id, not an error.
func (g *GitDir) Head() (CommitID, string, error) {
	raw, err := os.ReadFile(filepath.Join(g.dir, "HEAD"))
	if err != nil {
		return "", "", fmt.Errorf("read HEAD: %w", err)
	}
	line := strings.TrimSpace(string(raw))

	if target, ok := strings.CutPrefix(line, "ref: "); ok {
		branch := strings.TrimPrefix(target, "refs/heads/")
		id, err := g.readRef(target)
		if err != nil {
			if IsNotFound(err) {
				return "", branch, nil
			}
			return "", "", err
		}
		return id, branch, nil
	}

	if !isHex(line) {
		return "", "", fmt.Errorf("read HEAD: malformed content %q", line)
	}
	return CommitID(line), "", nil
}

// Resolve maps a branch name, full ref name, full hash, or unambiguous
// loose-object hash prefix to a commit id.
func (g *GitDir) Resolve(name string) (CommitID, error) {
	if name == "HEAD" {
		id, _, err := g.Head()
		if err != nil {
			return "", err
		}
		if id.IsZero() {
			return "", &NotFoundError{Name: name}
		}
		return id, nil
	}

	for _, candidate := range []string{name, "refs/heads/" + name, "refs/remotes/" + name, "refs/tags/" + name} {
		if !strings.HasPrefix(candidate, "refs/") {
			continue
		}
		if id, err := g.readRef(candidate); err == nil {
			return id, nil
		} else if !IsNotFound(err) {
			return "", err
		}
	}

	if isHex(name) && len(name) == 40 {
		return CommitID(name), nil
	}
	if isHex(name) && len(name) >= 4 {
		return g.expandPrefix(name)
	}
	return "", &NotFoundError{Name: name}
}

// Branches enumerates refs/heads and refs/remotes, loose and packed.
// Remote HEAD symrefs (e.g. origin/HEAD) are skipped.
func (g *GitDir) Branches() ([]Branch, error) {
	seen := make(map[string]bool)
	var branches []Branch

	add := func(refName string, id CommitID) {
		var b Branch
		switch {
		case strings.HasPrefix(refName, "refs/heads/"):
			b = Branch{Name: strings.TrimPrefix(refName, "refs/heads/"), Target: id}
		case strings.HasPrefix(refName, "refs/remotes/"):
			name := strings.TrimPrefix(refName, "refs/remotes/")
			if strings.HasSuffix(name, "/HEAD") {
				return
			}
			b = Branch{Name: name, Target: id, IsRemote: true}
		default:
			return
		}
		if seen[b.Name] {
			return
		}
		seen[b.Name] = true
		branches = append(branches, b)
	}

	for _, prefix := range []string{"refs/heads", "refs/remotes"} {
		root := filepath.Join(g.dir, filepath.FromSlash(prefix))
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return err
			}
			rel, err := filepath.Rel(g.dir, path)
			if err != nil {
				return err
			}
			refName := filepath.ToSlash(rel)
			id, err := g.readRef(refName)
			if err != nil {
				// A ref that vanished mid-walk or a symref we cannot
				// follow should not fail the whole enumeration.
				return nil
			}
			add(refName, id)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", prefix, err)
		}
	}

	packed, err := g.packedRefs()
	if err != nil {
		return nil, err
	}
	for refName, id := range packed {
		add(refName, id)
	}

	return branches, nil
}

// Commit reads and parses one loose commit object.
func (g *GitDir) Commit(id CommitID) (*Commit, error) {
	if id.IsZero() || !isHex(string(id)) || len(id) < 4 {
		return nil, &NotFoundError{Name: string(id)}
	}
	path := filepath.Join(g.dir, "objects", string(id)[:2], string(id)[2:])
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Name: string(id)}
		}
		return nil, fmt.Errorf("open object %s: %w", id, err)
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("inflate object %s: %w", id, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", id, err)
	}

	return parseCommitObject(id, raw)
}

// UpdateRef writes a loose ref pointing at id.
func (g *GitDir) UpdateRef(name string, id CommitID) error {
	path := filepath.Join(g.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("update ref %s: %w", name, err)
	}
	if err := os.WriteFile(path, []byte(string(id)+"\n"), 0o644); err != nil {
		return fmt.Errorf("update ref %s: %w", name, err)
	}
	return nil
}

// DeleteRef removes a loose ref. Packed refs are left alone; a pin ref is
// always loose because this tool wrote it.
func (g *GitDir) DeleteRef(name string) error {
	path := filepath.Join(g.dir, filepath.FromSlash(name))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete ref %s: %w", name, err)
	}
	return nil
}

// readRef resolves a full ref name through loose refs, symrefs, and
// packed-refs.
func (g *GitDir) readRef(refName string) (CommitID, error) {
	raw, err := os.ReadFile(filepath.Join(g.dir, filepath.FromSlash(refName)))
	if err == nil {
		line := strings.TrimSpace(string(raw))
		if target, ok := strings.CutPrefix(line, "ref: "); ok {
			return g.readRef(target)
		}
		if !isHex(line) {
			return "", fmt.Errorf("ref %s: malformed content %q", refName, line)
		}
		return CommitID(line), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("read ref %s: %w", refName, err)
	}

	packed, perr := g.packedRefs()
	if perr != nil {
		return "", perr
	}
	if id, ok := packed[refName]; ok {
		return id, nil
	}
	return "", &NotFoundError{Name: refName}
}

// packedRefs parses .git/packed-refs. Peeled lines (^...) are skipped.
func (g *GitDir) packedRefs() (map[string]CommitID, error) {
	refs := make(map[string]CommitID)
	raw, err := os.ReadFile(filepath.Join(g.dir, "packed-refs"))
	if err != nil {
		if os.IsNotExist(err) {
			return refs, nil
		}
		return nil, fmt.Errorf("read packed-refs: %w", err)
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 || !isHex(fields[0]) {
			continue
		}
		refs[fields[1]] = CommitID(fields[0])
	}
	return refs, nil
}

// expandPrefix finds the single loose object matching a hash prefix.
func (g *GitDir) expandPrefix(prefix string) (CommitID, error) {
	fanout := filepath.Join(g.dir, "objects", prefix[:2])
	entries, err := os.ReadDir(fanout)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &NotFoundError{Name: prefix}
		}
		return "", fmt.Errorf("expand %s: %w", prefix, err)
	}
	var match CommitID
	for _, e := range entries {
		full := prefix[:2] + e.Name()
		if !strings.HasPrefix(full, prefix) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("ambiguous commit prefix %s", prefix)
		}
		match = CommitID(full)
	}
	if match == "" {
		return "", &NotFoundError{Name: prefix}
	}
	return match, nil
}

// parseCommitObject parses an inflated loose object of type commit.
func parseCommitObject(id CommitID, raw []byte) (*Commit, error) {
	nul := bytes.IndexByte(raw, 0)
	if nul == -1 {
		return nil, fmt.Errorf("object %s: missing header terminator", id)
	}
	header := string(raw[:nul])
	if !strings.HasPrefix(header, "commit ") {
		return nil, fmt.Errorf("object %s: not a commit (%s)", id, header)
	}
	body := string(raw[nul+1:])

	commit := &Commit{ID: id}
	headers, message, _ := strings.Cut(body, "\n\n")
	for _, line := range strings.Split(headers, "\n") {
		key, value, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		switch key {
		case "parent":
			commit.Parents = append(commit.Parents, CommitID(value))
		case "committer":
			commit.Time = parseIdentTime(value)
		}
	}
	commit.Summary, _, _ = strings.Cut(message, "\n")
	return commit, nil
}

// parseIdentTime extracts the unix timestamp from an author/committer line
// ("Name <email> 1234567890 +0000"). A malformed line yields the zero time;
// ordering then falls back to commit id.
func parseIdentTime(ident string) time.Time {
	fields := strings.Fields(ident)
	if len(fields) < 2 {
		return time.Time{}
	}
	// Timestamp is the second-to-last field (the last is the timezone).
	unix, err := strconv.ParseInt(fields[len(fields)-2], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
