package coordinator

import (
	"path/filepath"
	"strings"

	"github.com/swarmctl/swarm/pkg/models"
)

// staticConfigFiles are root-level files a build tool reads as a whole, so
// two tasks declaring the same one can't safely run in parallel even though
// their worktrees are otherwise isolated: both would edit their own copy and
// one worker's merge would clobber the other's change.
var staticConfigFiles = []string{
	"go.mod", "go.sum", "package.json", "package-lock.json", "yarn.lock",
	"pnpm-lock.yaml", "Cargo.toml", "Cargo.lock", "requirements.txt",
	"pyproject.toml", "Gemfile", "Gemfile.lock",
}

// isStaticConfigFile reports whether path names a recognized whole-file
// config a build tool reads in one piece.
func isStaticConfigFile(path string) bool {
	base := filepath.Base(path)
	for _, f := range staticConfigFiles {
		if base == f {
			return true
		}
	}
	return false
}

// collisionSet tracks the declared files of tasks already dispatched within
// the current wave, so a wave can serialize two tasks that would otherwise
// race on the same static-config file instead of dispatching both at once.
type collisionSet struct {
	files map[string]string // file path -> task ID that claimed it
}

func newCollisionSet() *collisionSet {
	return &collisionSet{files: make(map[string]string)}
}

// conflicts reports the task ID already holding a static-config file task
// also declares, or "" if task can be dispatched without serializing.
func (s *collisionSet) conflicts(task *models.Task) string {
	for _, f := range task.Files {
		if !isStaticConfigFile(f) {
			continue
		}
		key := strings.ToLower(filepath.Base(f))
		if holder, ok := s.files[key]; ok && holder != task.ID {
			return holder
		}
	}
	return ""
}

// claim records task's static-config files as held for the rest of the wave.
func (s *collisionSet) claim(task *models.Task) {
	for _, f := range task.Files {
		if isStaticConfigFile(f) {
			s.files[strings.ToLower(filepath.Base(f))] = task.ID
		}
	}
}

// release frees task's claims once it has completed, letting a still-waiting
// task in the same wave take its turn.
func (s *collisionSet) release(task *models.Task) {
	for _, f := range task.Files {
		key := strings.ToLower(filepath.Base(f))
		if s.files[key] == task.ID {
			delete(s.files, key)
		}
	}
}
