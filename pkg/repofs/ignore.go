package repofs

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// ignorePatterns lists names and extensions that are noise for repository
// analysis: dependency trees, build output, lockfiles, minified bundles and
// binary assets. Entries starting with "*." match by extension, the rest
// match the base name exactly.
var ignorePatterns = []string{
	"node_modules",
	".git",
	"dist",
	"build",
	"coverage",
	".next",
	"__pycache__",
	"vendor",
	".cache",
	"*.lock",
	"*.min.js",
	"*.map",
	"*.png",
	"*.jpg",
	"*.gif",
	"*.ico",
	"*.woff",
	"*.woff2",
	"*.ttf",
	"*.eot",
	"*.svg",
	"*.mp4",
	"*.mp3",
	"*.pdf",
	"*.zip",
	"*.tar",
	"*.gz",
}

// isIgnored reports whether a file or directory name is excluded from
// listings, search and reads.
func isIgnored(name string) bool {
	for _, pattern := range ignorePatterns {
		if strings.HasPrefix(pattern, "*.") {
			if strings.HasSuffix(name, pattern[1:]) {
				return true
			}
		} else if name == pattern {
			return true
		}
	}
	return false
}

// globToRegexp converts a file glob like "*.go" or "src/*test*" into a
// regular expression string. "*" matches any run of characters including
// path separators, so "*.ts" matches nested files too.
func globToRegexp(glob string) string {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexpQuoteRune(r))
		}
	}
	b.WriteString("$")
	return b.String()
}

func regexpQuoteRune(r rune) string {
	switch r {
	case '.', '+', '(', ')', '[', ']', '{', '}', '^', '$', '|', '\\':
		return "\\" + string(r)
	}
	return string(r)
}

var globCache sync.Map

func mustCompileGlob(glob string) *regexp.Regexp {
	if cached, ok := globCache.Load(glob); ok {
		return cached.(*regexp.Regexp)
	}
	re := regexp.MustCompile(globToRegexp(glob))
	globCache.Store(glob, re)
	return re
}

// matchesGlob reports whether a slash-separated relative path matches the
// glob pattern against either its full path or its base name.
func matchesGlob(relPath, glob string) bool {
	if glob == "" || glob == "*" {
		return true
	}
	re := mustCompileGlob(glob)
	if re.MatchString(relPath) {
		return true
	}
	return re.MatchString(filepath.Base(relPath))
}
