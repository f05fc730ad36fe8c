// Package boundary implements the pure actor/path access predicate: given an
// actor role, an operation, and a path, decide whether the actor may perform
// that operation, independently of the filesystem. Grounded on
// internal/protect's glob-matching machinery, generalized from a boolean
// protected/unprotected flag into the role-based allow/deny/warn decision
// spec §4.C requires.
package boundary

import "strings"

// Role is the actor requesting access.
type Role string

const (
	RoleLead   Role = "lead"
	RoleWorker Role = "worker"
	RoleHuman  Role = "human"
)

// Operation is the kind of filesystem access being requested.
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
)

// Decision is the Checker's pure result: allowed plus optional explanation
// and advisory warnings.
type Decision struct {
	Allowed  bool     `json:"allowed"`
	Reason   string   `json:"reason,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// hardForbiddenSegments are denied for every role and every operation,
// including reads, because they traverse version-control or dependency
// internals rather than project source.
var hardForbiddenSegments = []string{"node_modules", ".git", ".svn", ".hg"}

var blueprintFilePatterns = []string{
	"**/*.blueprint.json",
	"**/*.blueprint.yaml",
	"**/blueprint.json",
	"**/blueprint.yaml",
}

var acceptanceTestPatterns = []string{
	"**/*.acceptance.test.*",
	"**/*.acceptance.spec.*",
	"**/acceptance-test.*",
	"**/acceptance_test.*",
	"**/__acceptance__/**",
}

// RecognizedConfigFiles are project-level config files exempt from the
// task-scoped module-boundary warning.
var RecognizedConfigFiles = []string{
	"**/vitest.config.*",
	"**/vite.config.*",
	"**/jest.config.*",
	"**/karma.conf.*",
	"**/cypress.config.*",
	"**/playwright.config.*",
	"**/tsconfig*.json",
	"**/package.json",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.mod",
	"**/go.sum",
	"**/webpack.config.*",
	"**/rollup.config.*",
	"**/esbuild.config.*",
	"**/.eslintrc*",
	"**/.prettierrc*",
	"**/.env",
	"**/.env.*",
	"**/.editorconfig",
	"**/.gitignore",
	"**/.npmrc",
}

// SharedDirectories are exempt from the task-scoped module-boundary warning:
// conventional cross-module shared code.
var SharedDirectories = []string{
	"src/utils", "src/types", "src/shared", "src/common", "src/lib",
	"lib", "utils", "types", "shared", "common",
}

var testFilePatterns = []string{
	"**/*.test.*", "**/*.spec.*", "**/*_test.*", "**/test_*.*", "**/__tests__/**",
}

// Checker decides path access. It is pure: Check's result depends only on
// its arguments, never on mutable state or the real filesystem.
type Checker struct{}

// NewChecker returns a Checker. It holds no state; the zero value is usable.
func NewChecker() *Checker { return &Checker{} }

// TaskScope describes the module a task is bound to, for rule 5 (the
// advisory task-scoped worker boundary).
type TaskScope struct {
	ModuleRootPath string
}

// Check implements the priority-ordered rule list from spec §4.C.
func (c *Checker) Check(role Role, op Operation, path string, scope *TaskScope) Decision {
	norm := normalize(path)

	// Rule 1: hard-forbidden paths, all roles, any operation.
	for _, seg := range hardForbiddenSegments {
		if hasSegment(norm, seg) {
			return Decision{Allowed: false, Reason: "path traverses forbidden directory: " + seg}
		}
	}

	// Rule 2: reads are always allowed once past rule 1.
	if op == OpRead {
		return Decision{Allowed: true}
	}

	// Rule 3: lead/human writes (and deletes) are always allowed.
	if role == RoleLead || role == RoleHuman {
		return Decision{Allowed: true}
	}

	// Rule 4: worker writes.
	if anyMatch(norm, blueprintFilePatterns) {
		return Decision{Allowed: false, Reason: "workers may not modify blueprint files"}
	}
	if anyMatch(norm, acceptanceTestPatterns) {
		return Decision{Allowed: false, Reason: "workers may not modify acceptance test files"}
	}

	// Rule 5: task-scoped module boundary, advisory only.
	decision := Decision{Allowed: true}
	if scope != nil && scope.ModuleRootPath != "" {
		root := strings.TrimSuffix(normalize(scope.ModuleRootPath), "/")
		inScope := norm == root || strings.HasPrefix(norm, root+"/")
		if !inScope &&
			!anyMatch(norm, testFilePatterns) &&
			!anyMatch(norm, RecognizedConfigFiles) &&
			!inSharedDirectory(norm) {
			decision.Warnings = append(decision.Warnings, "cross-module write")
		}
	}
	return decision
}

func inSharedDirectory(path string) bool {
	for _, dir := range SharedDirectories {
		if pathHasPrefixSegments(path, dir) {
			return true
		}
	}
	return false
}

// pathHasPrefixSegments reports whether path's components contain dir's
// components as a contiguous prefix of some suffix starting point, e.g.
// "packages/api/src/utils/format.ts" contains "src/utils".
func pathHasPrefixSegments(path, dir string) bool {
	pathSegs := strings.Split(path, "/")
	dirSegs := strings.Split(dir, "/")
	if len(dirSegs) > len(pathSegs) {
		return false
	}
	for i := 0; i+len(dirSegs) <= len(pathSegs); i++ {
		match := true
		for j, d := range dirSegs {
			if pathSegs[i+j] != d {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
