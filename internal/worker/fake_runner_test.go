package worker

import (
	"sync"

	"github.com/swarmctl/swarm/internal/git"
)

// fakeRunner is a minimal in-memory stand-in for git.Runner, covering only
// what worktree.Controller's CreateWorkspace/ApplyChanges/DestroyWorkspace
// call in the Worker's test flow. It embeds the interface so any
// unexercised method panics loudly rather than silently no-op'ing.
type fakeRunner struct {
	git.Runner

	mu         sync.Mutex
	branches   map[string]bool
	hasChanges bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		branches:   map[string]bool{"main": true},
		hasChanges: true,
	}
}

func (f *fakeRunner) CurrentBranch() (string, error) { return "main", nil }

func (f *fakeRunner) BranchExists(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.branches[name], nil
}

func (f *fakeRunner) DeleteBranch(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.branches, name)
	return nil
}

func (f *fakeRunner) HasCommits() bool { return true }

func (f *fakeRunner) PullRebase() error { return nil }
func (f *fakeRunner) PullFFOnly() error { return nil }

func (f *fakeRunner) WorktreeAddNewBranch(path, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branches[branch] = true
	return nil
}

func (f *fakeRunner) WorktreeRemoveOptionalForce(path string, force bool) error { return nil }

func (f *fakeRunner) HasChanges() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasChanges, nil
}

func (f *fakeRunner) Add(paths ...string) error          { return nil }
func (f *fakeRunner) Commit(message string) error        { return nil }
func (f *fakeRunner) Run(args ...string) (string, error) { return "", nil }
