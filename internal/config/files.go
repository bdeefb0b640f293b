package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// ResolveInputs walks rootPath and returns the record files matched by the
// input patterns, sorted by path. The sorted order is the file processing
// order: later files override modules declared by earlier ones.
//
// Relative patterns match the slash-separated path below rootPath, absolute
// patterns match the full path. "*" stays within one directory, "**" crosses
// directories, and "**/" may also match no directory at all.
//
// A rootPath naming a single file resolves to that file alone.
func (c *Config) ResolveInputs(rootPath string) ([]string, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{rootPath}, nil
	}

	include := compilePatterns(c.Inputs.Files)
	exclude := compilePatterns(c.Inputs.Exclude)

	var result []string
	err = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			return nil
		}
		if include.match(path, rel) && !exclude.match(path, rel) && !c.ShouldIgnoreFile(path) {
			result = append(result, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(result)

	return result, nil
}

type inputPattern struct {
	glob     glob.Glob
	absolute bool
}

type patternSet []inputPattern

// compilePatterns compiles every usable pattern; invalid ones are dropped.
func compilePatterns(patterns []string) patternSet {
	var set patternSet
	for _, p := range patterns {
		absolute := filepath.IsAbs(p)
		for _, variant := range zeroDirVariants(filepath.ToSlash(p)) {
			g, err := glob.Compile(variant, '/')
			if err != nil {
				continue
			}
			set = append(set, inputPattern{glob: g, absolute: absolute})
		}
	}
	return set
}

func (s patternSet) match(path, rel string) bool {
	path, rel = filepath.ToSlash(path), filepath.ToSlash(rel)
	for _, p := range s {
		target := rel
		if p.absolute {
			target = path
		}
		if p.glob.Match(target) {
			return true
		}
	}
	return false
}

// zeroDirVariants expands each "**/" into itself and nothing, so
// "rtl/**/*.json" also matches "rtl/core.json".
func zeroDirVariants(pattern string) []string {
	i := strings.Index(pattern, "**/")
	if i < 0 {
		return []string{pattern}
	}
	var out []string
	for _, tail := range zeroDirVariants(pattern[i+3:]) {
		out = append(out, pattern[:i+3]+tail, pattern[:i]+tail)
	}
	return out
}
