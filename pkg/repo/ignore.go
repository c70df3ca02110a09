package repo

import (
	"bufio"
	"path"
	"regexp"
	"strings"

	"gopkg.in/src-d/go-billy.v4"
)

// IgnoreFile lists patterns, one per line, that Add skips when walking the
// working tree.
const IgnoreFile = ".itignore"

// Ignorer decides whether a repo-relative path is excluded from staging.
// Patterns follow the usual conventions: "#" comments, "!" negation, a
// trailing "/" for directories only, "*", "?" and "**" wildcards. The last
// matching pattern wins.
type Ignorer struct {
	rules []ignoreRule
}

type ignoreRule struct {
	negated  bool
	dirOnly  bool
	anchored bool // pattern contains a slash; match against the whole path
	re       *regexp.Regexp
}

// loadIgnorer reads the ignore file from the root of fs. The marker directory
// is always ignored, whether or not the file exists.
func loadIgnorer(fs billy.Filesystem) *Ignorer {
	ig := NewIgnorer(MarkerDir + "/")
	f, err := fs.Open(IgnoreFile)
	if err != nil {
		return ig
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		ig.add(sc.Text())
	}
	return ig
}

// NewIgnorer builds an Ignorer from pattern lines.
func NewIgnorer(lines ...string) *Ignorer {
	ig := &Ignorer{}
	for _, line := range lines {
		ig.add(line)
	}
	return ig
}

func (ig *Ignorer) add(line string) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	var rule ignoreRule
	if rest, ok := strings.CutPrefix(line, "!"); ok {
		rule.negated = true
		line = rest
	}
	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return
	}
	rule.anchored = strings.Contains(line, "/")
	re, err := regexp.Compile(globToRegex(line))
	if err != nil {
		return
	}
	rule.re = re
	ig.rules = append(ig.rules, rule)
}

// Ignored reports whether a slash-separated repo-relative path is excluded.
// A path is also excluded when any of its parent directories is.
func (ig *Ignorer) Ignored(p string, isDir bool) bool {
	p = strings.Trim(p, "/")
	if p == "" {
		return false
	}
	// Check ancestors first: an ignored directory hides everything below it.
	parts := strings.Split(p, "/")
	for i := 1; i < len(parts); i++ {
		if ig.match(strings.Join(parts[:i], "/"), true) {
			return true
		}
	}
	return ig.match(p, isDir)
}

func (ig *Ignorer) match(p string, isDir bool) bool {
	base := path.Base(p)
	ignored := false
	for _, rule := range ig.rules {
		if rule.dirOnly && !isDir {
			continue
		}
		target := base
		if rule.anchored {
			target = p
		}
		if rule.re.MatchString(target) {
			ignored = !rule.negated
		}
	}
	return ignored
}

func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			if i+2 < len(pattern) && pattern[i+2] == '/' {
				// "**/" matches zero or more leading directories.
				b.WriteString("(?:.*/)?")
				i += 2
			} else {
				b.WriteString(".*")
				i++
			}
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return b.String()
}
