package boundary

import (
	"testing"

	"github.com/spf13/afero"
)

func TestHardForbiddenPaths(t *testing.T) {
	c := NewChecker()
	cases := []string{
		"node_modules/left-pad/index.js",
		"project/.git/HEAD",
		"a/.svn/entries",
		"a/.hg/store",
	}
	for _, path := range cases {
		for _, role := range []Role{RoleLead, RoleWorker, RoleHuman} {
			if d := c.Check(role, OpRead, path, nil); d.Allowed {
				t.Errorf("expected read of %s denied for role %s", path, role)
			}
			if d := c.Check(role, OpWrite, path, nil); d.Allowed {
				t.Errorf("expected write of %s denied for role %s", path, role)
			}
		}
	}
}

func TestReadsAlwaysAllowedOutsideForbidden(t *testing.T) {
	c := NewChecker()
	for _, role := range []Role{RoleLead, RoleWorker, RoleHuman} {
		d := c.Check(role, OpRead, "src/main.go", nil)
		if !d.Allowed {
			t.Errorf("expected read allowed for role %s", role)
		}
	}
}

func TestLeadAndHumanWritesAlwaysAllowed(t *testing.T) {
	c := NewChecker()
	for _, role := range []Role{RoleLead, RoleHuman} {
		d := c.Check(role, OpWrite, "blueprint.json", nil)
		if !d.Allowed {
			t.Errorf("expected %s write allowed even for blueprint file", role)
		}
	}
}

func TestWorkerDeniedBlueprintWrite(t *testing.T) {
	c := NewChecker()
	for _, path := range []string{"blueprint.json", "blueprint.yaml", "foo.blueprint.json", "a/b/c.blueprint.yaml"} {
		d := c.Check(RoleWorker, OpWrite, path, nil)
		if d.Allowed {
			t.Errorf("expected worker write denied for %s", path)
		}
		if d.Reason == "" {
			t.Errorf("expected denial reason for %s", path)
		}
	}
}

func TestWorkerDeniedAcceptanceTestWrite(t *testing.T) {
	c := NewChecker()
	for _, path := range []string{
		"e2e/login.acceptance.test.ts",
		"e2e/login.acceptance.spec.ts",
		"src/acceptance-test.go",
		"src/acceptance_test.go",
		"__acceptance__/flow.ts",
	} {
		d := c.Check(RoleWorker, OpWrite, path, nil)
		if d.Allowed {
			t.Errorf("expected worker write denied for %s", path)
		}
	}
}

func TestWorkerAllowedOrdinaryWrite(t *testing.T) {
	c := NewChecker()
	d := c.Check(RoleWorker, OpWrite, "src/feature/widget.go", nil)
	if !d.Allowed {
		t.Fatal("expected ordinary worker write allowed")
	}
	if len(d.Warnings) != 0 {
		t.Fatalf("expected no warnings without a task scope, got %v", d.Warnings)
	}
}

func TestCrossModuleWriteWarns(t *testing.T) {
	c := NewChecker()
	scope := &TaskScope{ModuleRootPath: "packages/api"}
	d := c.Check(RoleWorker, OpWrite, "packages/web/src/index.ts", scope)
	if !d.Allowed {
		t.Fatal("cross-module write is advisory, not denied")
	}
	if len(d.Warnings) != 1 || d.Warnings[0] != "cross-module write" {
		t.Fatalf("expected cross-module write warning, got %v", d.Warnings)
	}
}

func TestCrossModuleWriteExemptions(t *testing.T) {
	c := NewChecker()
	scope := &TaskScope{ModuleRootPath: "packages/api"}

	exempt := []string{
		"package.json",
		"tsconfig.json",
		".env.local",
		"src/utils/format.ts",
		"packages/web/src/index.test.ts",
	}
	for _, path := range exempt {
		d := c.Check(RoleWorker, OpWrite, path, scope)
		if len(d.Warnings) != 0 {
			t.Errorf("expected no cross-module warning for exempt path %s, got %v", path, d.Warnings)
		}
	}
}

func TestInScopeWriteHasNoWarning(t *testing.T) {
	c := NewChecker()
	scope := &TaskScope{ModuleRootPath: "packages/api"}
	d := c.Check(RoleWorker, OpWrite, "packages/api/src/handler.go", scope)
	if len(d.Warnings) != 0 {
		t.Fatalf("expected no warning for in-scope write, got %v", d.Warnings)
	}
}

func TestCheckIsIdempotent(t *testing.T) {
	c := NewChecker()
	scope := &TaskScope{ModuleRootPath: "packages/api"}
	paths := []string{
		"node_modules/x/y.js", "blueprint.json", "packages/web/index.ts",
		"packages/api/main.go", `windows\style\path.go`,
	}
	for _, path := range paths {
		first := c.Check(RoleWorker, OpWrite, path, scope)
		second := c.Check(RoleWorker, OpWrite, path, scope)
		if first.Allowed != second.Allowed || len(first.Warnings) != len(second.Warnings) {
			t.Errorf("Check not idempotent for %s: %+v vs %+v", path, first, second)
		}
	}
}

func TestWindowsSeparatorsNormalized(t *testing.T) {
	c := NewChecker()
	d := c.Check(RoleWorker, OpWrite, `node_modules\pkg\index.js`, nil)
	if d.Allowed {
		t.Fatal("expected backslash-separated node_modules path to be denied")
	}
}

// TestAgainstInMemoryFilesystem exercises the checker's path normalization
// against an afero in-memory filesystem's listing, confirming the checker's
// decisions agree with which paths actually exist under a forbidden
// directory without ever touching the real disk.
func TestAgainstInMemoryFilesystem(t *testing.T) {
	fs := afero.NewMemMapFs()
	paths := []string{
		"project/src/main.go",
		"project/node_modules/dep/index.js",
		"project/.git/HEAD",
	}
	for _, p := range paths {
		if err := afero.WriteFile(fs, p, []byte("x"), 0o644); err != nil {
			t.Fatalf("seed fs: %v", err)
		}
	}

	c := NewChecker()
	want := map[string]bool{
		"project/src/main.go":             true,
		"project/node_modules/dep/index.js": false,
		"project/.git/HEAD":                false,
	}
	for _, p := range paths {
		exists, err := afero.Exists(fs, p)
		if err != nil || !exists {
			t.Fatalf("seeded path missing: %s", p)
		}
		got := c.Check(RoleWorker, OpRead, p, nil).Allowed
		if got != want[p] {
			t.Errorf("Check(%s) = %v, want %v", p, got, want[p])
		}
	}
}
