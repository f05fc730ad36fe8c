package worktree

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchOrphans watches the worktree directory for a worker's directory
// disappearing out-of-band (an operator manually removing it, or `git
// worktree prune` racing a merge) and forgets that workspace so a later
// MergeWorkspace call fails fast with "no workspace registered" instead of
// operating on a directory that's already gone. It runs until ctx is
// cancelled; callers start it in its own goroutine alongside Initialize.
func (c *Controller) WatchOrphans(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(c.worktreeDir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Remove == 0 {
				continue
			}
			workerID := filepath.Base(event.Name)
			if workerID == "" || workerID == "." {
				continue
			}
			if _, ok := c.Workspace(workerID); ok {
				log.Printf("worktree: %s disappeared out-of-band, forgetting workspace", event.Name)
				c.forgetWorkspace(workerID)
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("worktree: watch error: %v", watchErr)
		}
	}
}

