package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/term"
)

// debounce coalesces the burst of filesystem events one git command
// produces into a single re-render.
const debounce = 100 * time.Millisecond

// watchSmartlog re-renders on every repository change until the context
// is cancelled. Each render produces the same bytes the one-shot command
// would; on a terminal the screen is cleared between renders.
func watchSmartlog(ctx context.Context, opts *SmartlogOptions, e *env, out io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot watch repository", err)
	}
	defer watcher.Close()

	// HEAD and packed-refs live in the git dir itself; loose refs under
	// refs/. fsnotify does not recurse, so watch each level that exists.
	gitDir := e.repo.Dir()
	for _, dir := range []string{
		gitDir,
		filepath.Join(gitDir, "refs"),
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "remotes"),
		e.repo.StateDir(),
	} {
		if _, err := os.Stat(dir); err == nil {
			if err := watcher.Add(dir); err != nil {
				return WrapExitError(ExitCommandError, "cannot watch repository", err)
			}
		}
	}

	clearScreen := false
	if f, ok := out.(*os.File); ok {
		clearScreen = term.IsTerminal(int(f.Fd()))
	}

	redraw := func() error {
		text, err := renderOnce(ctx, opts, e)
		if err != nil {
			return err
		}
		if clearScreen {
			io.WriteString(out, "\x1b[2J\x1b[H")
		}
		io.WriteString(out, text)
		return nil
	}

	if err := redraw(); err != nil {
		return err
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			pending = time.After(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			warnf(os.Stderr, "watch: %v", err)
		case <-pending:
			pending = nil
			if err := redraw(); err != nil {
				return err
			}
		}
	}
}
