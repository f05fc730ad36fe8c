package worktree

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// maxConflictFiles is the cap spec §4.D and §9 place on automatic
// resolution: beyond this many conflicted files, the conflict is always
// handed to a human rather than risked on heuristics.
const maxConflictFiles = 5

// conflictMarkerStart/Middle/End are the markers git leaves in a file with
// unresolved merge conflicts.
var (
	conflictMarkerStart  = regexp.MustCompile(`^<{7} `)
	conflictMarkerMiddle = regexp.MustCompile(`^={7}$`)
	conflictMarkerEnd    = regexp.MustCompile(`^>{7} `)
)

// conflictRegion is one <<<<<<< ... ======= ... >>>>>>> block.
type conflictRegion struct {
	ours   []string
	theirs []string
}

// ConflictResolver applies a narrow, deterministic set of rules to resolve
// conflict regions without model involvement: only whitespace-only diffs,
// one-sided additions, supersets, and import-block unions are ever merged
// automatically. Anything else is left for a human.
type ConflictResolver struct{}

// NewConflictResolver returns a ConflictResolver. It is stateless.
func NewConflictResolver() *ConflictResolver { return &ConflictResolver{} }

// Resolve attempts to auto-resolve every conflicted file in files, all
// rooted at repoPath. It returns true only if every region in every file
// was resolved by one of the rules in resolveRegion; if files holds more than
// maxConflictFiles entries or any single region can't be resolved, it leaves the
// repository conflicted (untouched) and returns false so the caller can
// fall back to needsHumanReview.
func (r *ConflictResolver) Resolve(_ context.Context, repoPath string, files []string) (bool, error) {
	if len(files) > maxConflictFiles {
		return false, nil
	}

	resolvedContent := make(map[string]string, len(files))
	for _, rel := range files {
		full := repoPath + string(os.PathSeparator) + rel
		data, err := os.ReadFile(full)
		if err != nil {
			return false, fmt.Errorf("read conflicted file %s: %w", rel, err)
		}
		resolved, ok := resolveFile(string(data))
		if !ok {
			return false, nil
		}
		resolvedContent[full] = resolved
	}

	for full, content := range resolvedContent {
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return false, fmt.Errorf("write resolved %s: %w", full, err)
		}
	}
	return true, nil
}

// resolveFile walks a conflicted file line by line, resolving every region
// it finds. It returns ok=false the moment one region can't be resolved,
// per "any manual region aborts whole-commit resolution" (spec §4.D).
func resolveFile(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	var out []string

	i := 0
	for i < len(lines) {
		if !conflictMarkerStart.MatchString(lines[i]) {
			out = append(out, lines[i])
			i++
			continue
		}

		region, next, ok := parseRegion(lines, i)
		if !ok {
			return "", false
		}
		resolved, ok := resolveRegion(region)
		if !ok {
			return "", false
		}
		out = append(out, resolved...)
		i = next
	}
	return strings.Join(out, "\n"), true
}

// parseRegion reads one conflict block starting at lines[start] (the
// "<<<<<<<" marker) and returns its two sides plus the index just past the
// ">>>>>>>" marker.
func parseRegion(lines []string, start int) (conflictRegion, int, bool) {
	i := start + 1
	var ours []string
	for i < len(lines) && !conflictMarkerMiddle.MatchString(lines[i]) {
		ours = append(ours, lines[i])
		i++
	}
	if i >= len(lines) {
		return conflictRegion{}, 0, false
	}
	i++ // skip =======

	var theirs []string
	for i < len(lines) && !conflictMarkerEnd.MatchString(lines[i]) {
		theirs = append(theirs, lines[i])
		i++
	}
	if i >= len(lines) {
		return conflictRegion{}, 0, false
	}
	i++ // skip >>>>>>> marker

	return conflictRegion{ours: ours, theirs: theirs}, i, true
}

// resolveRegion applies the five rules in priority order.
func resolveRegion(region conflictRegion) ([]string, bool) {
	// Rule 1: whitespace-equal sides resolve to ours.
	if joinTrim(region.ours) == joinTrim(region.theirs) {
		return region.ours, true
	}

	// Rule 2: one side empty resolves to the other.
	if isBlank(region.ours) {
		return region.theirs, true
	}
	if isBlank(region.theirs) {
		return region.ours, true
	}

	// Rule 3: one side is a superset of the other's lines (pure addition).
	// The result is always ours followed by whatever lines theirs adds that
	// ours doesn't have, never theirs/ours returned verbatim — so a line
	// theirs inserted before or in the middle (not appended at the end)
	// still lands in the prescribed ours-then-new order.
	if isSuperset(region.theirs, region.ours) || isSuperset(region.ours, region.theirs) {
		return unionNewFromTheirs(region.ours, region.theirs), true
	}

	// Rule 4: both sides are entirely import/require lines — dedup the
	// sorted union rather than picking a side.
	if allImportLines(region.ours) && allImportLines(region.theirs) {
		return dedupSortedUnion(region.ours, region.theirs), true
	}

	// Rule 5: no rule applies, this region needs a human.
	return nil, false
}

func joinTrim(lines []string) string {
	trimmed := make([]string, len(lines))
	for i, l := range lines {
		trimmed[i] = strings.TrimSpace(l)
	}
	return strings.Join(trimmed, "\n")
}

func isBlank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}

// isSuperset reports whether every line of b appears somewhere in a. Lines
// are compared exactly; their order and repeat counts are not checked.
func isSuperset(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, l := range a {
		set[l] = true
	}
	for _, l := range b {
		if !set[l] {
			return false
		}
	}
	return true
}

// unionNewFromTheirs returns ours with every theirs line ours lacks appended
// in theirs' order, so the superset rule always yields the same ordering
// whichever side turned out to be the superset.
func unionNewFromTheirs(ours, theirs []string) []string {
	set := make(map[string]bool, len(ours))
	for _, l := range ours {
		set[l] = true
	}
	union := append([]string{}, ours...)
	for _, l := range theirs {
		if !set[l] {
			union = append(union, l)
			set[l] = true
		}
	}
	return union
}

var importLinePattern = regexp.MustCompile(`^\s*(import\b|require\(|from\s+\S+\s+import\b|"[^"]+"$)`)

func allImportLines(lines []string) bool {
	if len(lines) == 0 {
		return false
	}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if !importLinePattern.MatchString(l) {
			return false
		}
	}
	return true
}

func dedupSortedUnion(a, b []string) []string {
	seen := make(map[string]bool)
	var union []string
	for _, l := range append(append([]string{}, a...), b...) {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if !seen[l] {
			seen[l] = true
			union = append(union, l)
		}
	}
	sort.Strings(union)
	return union
}
