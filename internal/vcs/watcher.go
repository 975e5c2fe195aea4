// Package vcs tracks the git branch of the work directory so mode changes
// and permission prompts can be correlated with where the agent is working.
package vcs

import (
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/gatecode-ai/gatecode/internal/event"
)

// BranchWatcher publishes a vcs.branch event whenever the checked-out branch
// of the work directory changes. It watches the repository's git dir for
// writes to HEAD.
type BranchWatcher struct {
	fsw     *fsnotify.Watcher
	workDir string

	mu      sync.RWMutex
	branch  string
	started bool

	stop chan struct{}
	done chan struct{}
}

// NewBranchWatcher sets up a watcher for workDir. It returns (nil, nil) when
// the directory is not inside a git repository.
func NewBranchWatcher(workDir string) (*BranchWatcher, error) {
	gitDir := resolveGitDir(workDir)
	if gitDir == "" {
		log.Debug().Str("workDir", workDir).Msg("not a git repository, branch watcher off")
		return nil, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the git dir rather than HEAD itself; git replaces HEAD by
	// rename, which drops a watch on the file.
	if err := fsw.Add(gitDir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &BranchWatcher{
		fsw:     fsw,
		workDir: workDir,
		branch:  CurrentBranch(workDir),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	log.Info().Str("branch", w.branch).Msg("branch watcher started")
	return w, nil
}

// Start begins processing filesystem events. Safe to call once.
func (w *BranchWatcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.loop()
}

func (w *BranchWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 && strings.HasSuffix(ev.Name, "HEAD") {
				w.refresh()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("branch watcher error")
		}
	}
}

// refresh re-reads the branch and publishes when it moved.
func (w *BranchWatcher) refresh() {
	current := CurrentBranch(w.workDir)

	w.mu.Lock()
	previous := w.branch
	changed := current != previous
	if changed {
		w.branch = current
	}
	w.mu.Unlock()

	if !changed {
		return
	}

	log.Info().Str("from", previous).Str("to", current).Msg("branch changed")
	event.PublishSync(event.Event{
		Type: event.BranchChanged,
		Data: event.BranchChangedData{Branch: current},
	})
}

// Branch returns the branch seen most recently.
func (w *BranchWatcher) Branch() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.branch
}

// Stop shuts the watcher down and waits for the loop to exit.
func (w *BranchWatcher) Stop() error {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}

	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if started {
		<-w.done
	}
	return w.fsw.Close()
}

// resolveGitDir locates the git dir for workDir, following worktree
// indirection. Empty when workDir is not in a repository.
func resolveGitDir(workDir string) string {
	out, err := gitOutput(workDir, "rev-parse", "--git-dir")
	if err != nil {
		return ""
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(workDir, out)
	}
	return out
}

// CurrentBranch returns the checked-out branch of workDir, or "" outside a
// repository.
func CurrentBranch(workDir string) string {
	out, err := gitOutput(workDir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return ""
	}
	return out
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
