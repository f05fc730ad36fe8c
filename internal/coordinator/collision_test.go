package coordinator

import (
	"testing"

	"github.com/swarmctl/swarm/pkg/models"
)

func TestIsStaticConfigFile(t *testing.T) {
	cases := map[string]bool{
		"go.mod":                  true,
		"internal/foo/go.mod":     true,
		"package.json":            true,
		"web/app/package.json":    true,
		"internal/coordinator.go": false,
		"README.md":               false,
	}
	for path, want := range cases {
		if got := isStaticConfigFile(path); got != want {
			t.Errorf("isStaticConfigFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestCollisionSet_ConflictsOnSharedStaticConfig(t *testing.T) {
	s := newCollisionSet()
	a := &models.Task{ID: "a", Files: []string{"go.mod", "internal/a/a.go"}}
	b := &models.Task{ID: "b", Files: []string{"go.mod", "internal/b/b.go"}}

	if s.conflicts(a) != "" {
		t.Fatal("expected no conflict before any claim")
	}
	s.claim(a)

	if got := s.conflicts(b); got != "a" {
		t.Errorf("conflicts(b) = %q, want %q", got, "a")
	}
}

func TestCollisionSet_NoConflictOnDisjointFiles(t *testing.T) {
	s := newCollisionSet()
	a := &models.Task{ID: "a", Files: []string{"internal/a/a.go"}}
	b := &models.Task{ID: "b", Files: []string{"internal/b/b.go"}}

	s.claim(a)
	if got := s.conflicts(b); got != "" {
		t.Errorf("conflicts(b) = %q, want no conflict", got)
	}
}

func TestCollisionSet_ReleaseFreesClaim(t *testing.T) {
	s := newCollisionSet()
	a := &models.Task{ID: "a", Files: []string{"go.mod"}}
	b := &models.Task{ID: "b", Files: []string{"go.mod"}}

	s.claim(a)
	if s.conflicts(b) != "a" {
		t.Fatal("expected b to conflict with a before release")
	}
	s.release(a)
	if got := s.conflicts(b); got != "" {
		t.Errorf("conflicts(b) after release = %q, want no conflict", got)
	}
}

func TestCollisionSet_SelfNeverConflicts(t *testing.T) {
	s := newCollisionSet()
	a := &models.Task{ID: "a", Files: []string{"go.mod"}}
	s.claim(a)
	if got := s.conflicts(a); got != "" {
		t.Errorf("conflicts(a) with itself = %q, want no conflict", got)
	}
}
