package boundary

import "strings"

// normalize converts OS path separators to forward slashes and trims a
// leading "./" so all comparisons work on one canonical form, per spec
// §4.C's "normalize OS separators to forward slashes before matching".
func normalize(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimPrefix(path, "./")
	return path
}

// matchGlobPattern matches a normalized path against a glob pattern with
// "**" (any number of path segments) and "*" (wildcard within a segment)
// support.
func matchGlobPattern(path, pattern string) bool {
	pathParts := strings.Split(normalize(path), "/")
	patternParts := strings.Split(normalize(pattern), "/")
	return matchParts(pathParts, patternParts)
}

func matchParts(path, pattern []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}

	p := pattern[0]
	rest := pattern[1:]

	if p == "**" {
		if len(rest) == 0 {
			return true
		}
		for i := 0; i <= len(path); i++ {
			if matchParts(path[i:], rest) {
				return true
			}
		}
		return false
	}

	if len(path) == 0 {
		return false
	}
	if !matchSegment(path[0], p) {
		return false
	}
	return matchParts(path[1:], rest)
}

func matchSegment(segment, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if pattern == segment {
		return true
	}
	if strings.Contains(pattern, "*") {
		return matchWildcard(segment, pattern)
	}
	return false
}

func matchWildcard(s, pattern string) bool {
	parts := strings.Split(pattern, "*")
	pos := 0

	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 {
			if !strings.HasPrefix(s, part) {
				return false
			}
			pos = len(part)
			continue
		}
		if i == len(parts)-1 && !strings.HasSuffix(pattern, "*") {
			if !strings.HasSuffix(s, part) {
				return false
			}
			continue
		}
		idx := strings.Index(s[pos:], part)
		if idx == -1 {
			return false
		}
		pos += idx + len(part)
	}
	return true
}

// anyMatch reports whether path matches any of patterns.
func anyMatch(path string, patterns []string) bool {
	for _, p := range patterns {
		if matchGlobPattern(path, p) {
			return true
		}
	}
	return false
}

// hasSegment reports whether normalized path traverses the named directory
// segment anywhere along its components.
func hasSegment(path, segment string) bool {
	for _, part := range strings.Split(normalize(path), "/") {
		if part == segment {
			return true
		}
	}
	return false
}
