// Package repofs provides read-only, sandboxed access to a cloned repository
// working tree. All paths are relative to the repository root; traversal
// outside the root is rejected and noisy paths (dependency trees, binary
// assets) are filtered out.
package repofs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Sentinel errors for path resolution and reads. Callers that turn errors
// into tool payloads match on these with errors.Is.
var (
	ErrNotFound    = errors.New("path not found")
	ErrNotFile     = errors.New("path is not a file")
	ErrNotDir      = errors.New("path is not a directory")
	ErrOutsideRoot = errors.New("path is outside the repository")
)

const (
	defaultReadLimit    = 500
	defaultContextLines = 10

	// DefaultGrepMaxResults is the match cap applied when Grep is
	// called with a non-positive maxResults.
	DefaultGrepMaxResults = 1000
	grepExcerptMaxLen     = 200
)

// TreeEntry is one direct child in a directory listing.
type TreeEntry struct {
	Name string `json:"name"`
	Type string `json:"type"` // "file" or "dir"
	// Size is bytes for files and the count of visible children for dirs.
	Size int64 `json:"size"`
}

// FileSlice is a line-numbered window of a file.
type FileSlice struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	TotalLines int    `json:"total_lines"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Truncated  bool   `json:"truncated"`
}

// GrepMatch is one matching line from a search.
type GrepMatch struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Excerpt string `json:"excerpt"`
}

// LineRange is an inclusive 1-based line range.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Snippet is a numbered extract of a file with surrounding context.
type Snippet struct {
	Path    string    `json:"path"`
	Content string    `json:"content"`
	Range   LineRange `json:"range"`
}

// Accessor exposes read operations over a single repository working tree.
// It is safe for concurrent use; it holds no mutable state.
type Accessor struct {
	root string
}

// New creates an Accessor rooted at dir. The directory must exist.
func New(dir string) (*Accessor, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("repository root %s: %w", dir, ErrNotFound)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository root %s: %w", dir, ErrNotDir)
	}
	return &Accessor{root: abs}, nil
}

// Root returns the absolute repository root path.
func (a *Accessor) Root() string {
	return a.root
}

// resolve maps a caller-supplied relative path onto the filesystem,
// rejecting absolute paths and any traversal above the root.
func (a *Accessor) resolve(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		rel = "."
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%s: %w", rel, ErrOutsideRoot)
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", rel, ErrOutsideRoot)
	}
	return filepath.Join(a.root, cleaned), nil
}

// ListTree lists the direct children of a directory, directories first,
// each group sorted by name. Ignored entries are omitted. A directory's
// size is the number of visible children it contains; a child directory
// that cannot be read is treated as absent.
func (a *Accessor) ListTree(path string) ([]TreeEntry, error) {
	abs, err := a.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotDir)
	}

	children, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	var dirs, files []TreeEntry
	for _, child := range children {
		if isIgnored(child.Name()) {
			continue
		}
		if child.IsDir() {
			dirs = append(dirs, TreeEntry{
				Name: child.Name(),
				Type: "dir",
				Size: int64(a.countVisibleChildren(filepath.Join(abs, child.Name()))),
			})
		} else {
			fi, err := child.Info()
			if err != nil {
				continue
			}
			files = append(files, TreeEntry{
				Name: child.Name(),
				Type: "file",
				Size: fi.Size(),
			})
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return append(dirs, files...), nil
}

func (a *Accessor) countVisibleChildren(abs string) int {
	children, err := os.ReadDir(abs)
	if err != nil {
		return 0
	}
	n := 0
	for _, child := range children {
		if !isIgnored(child.Name()) {
			n++
		}
	}
	return n
}

// ReadFile returns a window of a file with 1-based line numbers.
// startLine is the first line to return (values below 1 are clamped to
// 1) and limit is the maximum number of lines (non-positive means the
// default of 500). Callers translating a zero-based skip count pass
// skip+1.
func (a *Accessor) ReadFile(path string, startLine, limit int) (FileSlice, error) {
	abs, err := a.resolve(path)
	if err != nil {
		return FileSlice{}, err
	}
	lines, err := a.readLines(abs, path)
	if err != nil {
		return FileSlice{}, err
	}

	if startLine < 1 {
		startLine = 1
	}
	if limit <= 0 {
		limit = defaultReadLimit
	}

	total := len(lines)
	if startLine > total {
		return FileSlice{
			Path:       path,
			TotalLines: total,
			StartLine:  startLine,
			EndLine:    startLine - 1,
			Truncated:  false,
		}, nil
	}

	end := startLine + limit - 1
	if end > total {
		end = total
	}

	return FileSlice{
		Path:       path,
		Content:    numberLines(lines, startLine, end),
		TotalLines: total,
		StartLine:  startLine,
		EndLine:    end,
		Truncated:  end < total,
	}, nil
}

// ReadSnippet returns the lines in [start, end] widened by contextLines on
// both sides, clamped to the file. A negative contextLines means the
// default of 10. start and end outside the file are clamped, and a
// reversed range is normalized.
func (a *Accessor) ReadSnippet(path string, start, end, contextLines int) (Snippet, error) {
	abs, err := a.resolve(path)
	if err != nil {
		return Snippet{}, err
	}
	lines, err := a.readLines(abs, path)
	if err != nil {
		return Snippet{}, err
	}
	total := len(lines)
	if total == 0 {
		return Snippet{Path: path, Range: LineRange{Start: 0, End: 0}}, nil
	}

	if contextLines < 0 {
		contextLines = defaultContextLines
	}
	if start > end {
		start, end = end, start
	}

	from := start - contextLines
	to := end + contextLines
	if from < 1 {
		from = 1
	}
	if to > total {
		to = total
	}
	if from > total {
		from = total
	}
	if to < 1 {
		to = 1
	}

	return Snippet{
		Path:    path,
		Content: numberLines(lines, from, to),
		Range:   LineRange{Start: from, End: to},
	}, nil
}

// Grep searches all visible files for a case-insensitive substring match.
// filePattern restricts the search by glob ("" matches everything) and
// maxResults caps the output (non-positive means the default of 1000).
// Matching lines are returned as excerpts capped at 200 characters.
func (a *Accessor) Grep(pattern, filePattern string, maxResults int) ([]GrepMatch, error) {
	if pattern == "" {
		return nil, errors.New("search pattern is empty")
	}
	if _, err := os.Stat(a.root); err != nil {
		return nil, fmt.Errorf("repository root: %w", ErrNotFound)
	}
	if maxResults <= 0 {
		maxResults = DefaultGrepMaxResults
	}
	needle := strings.ToLower(pattern)

	var matches []GrepMatch
	err := filepath.WalkDir(a.root, func(abs string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if abs == a.root {
			return nil
		}
		if isIgnored(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if len(matches) >= maxResults {
			return filepath.SkipAll
		}

		rel, relErr := filepath.Rel(a.root, abs)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !matchesGlob(rel, filePattern) {
			return nil
		}

		data, readErr := os.ReadFile(abs)
		if readErr != nil || looksBinary(data) {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				matches = append(matches, GrepMatch{
					Path:    rel,
					Line:    i + 1,
					Excerpt: capExcerpt(strings.TrimRight(line, "\r")),
				})
				if len(matches) >= maxResults {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (a *Accessor) readLines(abs, path string) ([]string, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFile)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	// A trailing newline produces a phantom empty final line.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// numberLines renders lines[from-1:to] as "N: text" with 1-based numbers.
func numberLines(lines []string, from, to int) string {
	var b strings.Builder
	for i := from; i <= to; i++ {
		if i > from {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d: %s", i, lines[i-1])
	}
	return b.String()
}

func capExcerpt(line string) string {
	if len(line) <= grepExcerptMaxLen {
		return line
	}
	return line[:grepExcerptMaxLen] + "..."
}

func looksBinary(data []byte) bool {
	limit := len(data)
	if limit > 8000 {
		limit = 8000
	}
	for _, b := range data[:limit] {
		if b == 0 {
			return true
		}
	}
	return false
}
