package clones

import (
	"path/filepath"
	"strings"
)

// filterIgnored drops every path matching any of patterns. Patterns follow
// the same informal glob dialect as .gitignore's common subset: a
// trailing "/" matches a directory segment anywhere in the path, a
// leading "**/" matches at any depth, and everything else is matched with
// path/filepath.Match against both the full path and the base name.
//
// No library in the dependency surface this module carries forward
// implements gitignore-style matching without pulling in go-git (which
// this module does not depend on) — see DESIGN.md.
func filterIgnored(paths []string, patterns []string) []string {
	if len(patterns) == 0 {
		return paths
	}
	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		if !ignored(p, patterns) {
			kept = append(kept, p)
		}
	}
	return kept
}

func ignored(path string, patterns []string) bool {
	clean := filepath.ToSlash(path)
	base := filepath.Base(clean)
	for _, pattern := range patterns {
		if matchesPattern(clean, base, pattern) {
			return true
		}
	}
	return false
}

func matchesPattern(path, base, pattern string) bool {
	pattern = filepath.ToSlash(pattern)

	if strings.HasSuffix(pattern, "/") {
		dir := strings.TrimSuffix(pattern, "/")
		segment := "/" + dir + "/"
		return strings.Contains("/"+path+"/", segment) || strings.HasPrefix(path, dir+"/")
	}

	pattern = strings.TrimPrefix(pattern, "**/")

	if strings.Contains(pattern, "/") {
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
		return strings.HasSuffix(path, "/"+pattern)
	}

	if ok, _ := filepath.Match(pattern, base); ok {
		return true
	}
	ok, _ := filepath.Match(pattern, path)
	return ok
}
