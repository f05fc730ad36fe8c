package worktree

import (
	"fmt"
	"sync"

	"github.com/swarmctl/swarm/internal/git"
)

// fakeRunner is an in-memory stand-in for git.Runner. It embeds the
// interface so tests only need to override the methods they exercise; any
// unset method panics on a nil-interface call if actually invoked, which
// surfaces missing test setup immediately rather than silently no-op'ing.
type fakeRunner struct {
	git.Runner

	mu sync.Mutex

	currentBranch string
	branches      map[string]bool
	worktrees     map[string]string // path -> branch
	hasChanges    bool
	hasCommitsV   bool
	conflicted    []string
	stash         []string

	mergeFunc  func(branch string) error
	stashPushN int
	stashPopN  int

	tags map[string]bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		currentBranch: "main",
		branches:      map[string]bool{"main": true},
		worktrees:     map[string]string{},
		hasCommitsV:   true,
	}
}

func (f *fakeRunner) CurrentBranch() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentBranch, nil
}

func (f *fakeRunner) BranchExists(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.branches[name], nil
}

func (f *fakeRunner) CreateBranch(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branches[name] = true
	return nil
}

func (f *fakeRunner) DeleteBranch(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.branches, name)
	return nil
}

func (f *fakeRunner) CheckoutBranch(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.branches[name] {
		return fmt.Errorf("branch %s does not exist", name)
	}
	f.currentBranch = name
	return nil
}

func (f *fakeRunner) SymbolicRef(name string) (string, error) {
	return "", fmt.Errorf("no remote configured")
}

func (f *fakeRunner) HasCommits() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasCommitsV
}

func (f *fakeRunner) PullRebase() error { return nil }
func (f *fakeRunner) PullFFOnly() error { return nil }

func (f *fakeRunner) WorktreeAddNewBranch(path, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branches[branch] = true
	f.worktrees[path] = branch
	return nil
}

func (f *fakeRunner) WorktreeRemoveOptionalForce(path string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.worktrees, path)
	return nil
}

func (f *fakeRunner) HasChanges() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasChanges, nil
}

func (f *fakeRunner) StashPush(marker string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stash = append(f.stash, marker)
	f.stashPushN++
	return nil
}

func (f *fakeRunner) StashPop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.stash) == 0 {
		return fmt.Errorf("no stash to pop")
	}
	f.stash = f.stash[:len(f.stash)-1]
	f.stashPopN++
	return nil
}

func (f *fakeRunner) StashList() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("%d stash(es)", len(f.stash)), nil
}

func (f *fakeRunner) ConflictedFiles() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conflicted, nil
}

func (f *fakeRunner) Merge(branch string) error {
	if f.mergeFunc != nil {
		return f.mergeFunc(branch)
	}
	return nil
}

func (f *fakeRunner) MergeAbort() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflicted = nil
	return nil
}

func (f *fakeRunner) ResetHard(ref string) error { return nil }

func (f *fakeRunner) Add(paths ...string) error { return nil }
func (f *fakeRunner) Commit(message string) error { return nil }
func (f *fakeRunner) Run(args ...string) (string, error) { return "deadbeef", nil }

func (f *fakeRunner) Tag(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tags == nil {
		f.tags = make(map[string]bool)
	}
	f.tags[name] = true
	return nil
}

func (f *fakeRunner) DeleteTag(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tags, name)
	return nil
}

func (f *fakeRunner) TagExists(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tags[name], nil
}
