package codebase

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	snippetRadius = 10
	maxFileSize   = 512 * 1024
)

// DefaultIgnore lists paths never searched.
var DefaultIgnore = []string{
	"**/.git/**", "**/node_modules/**", "**/vendor/**", "**/dist/**", "**/build/**", "**/.recipechat/**",
}

// DefaultInclude matches source and documentation files.
const DefaultInclude = "**/*.{go,ts,tsx,js,jsx,py,rb,rs,java,kt,c,h,cpp,cs,php,sh,sql,yaml,yml,md,txt}"

var textExtensions = map[string]bool{".md": true, ".txt": true}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "how": true, "what": true, "does": true,
	"this": true, "that": true, "with": true, "from": true, "where": true, "which": true, "why": true,
	"can": true, "you": true, "use": true, "used": true, "into": true, "about": true, "work": true,
}

// Local is a keyword searcher over files in a workspace directory.
type Local struct {
	fsys    fs.FS
	include string
	ignore  []string
}

// NewLocal creates a searcher over root.
func NewLocal(root string) *Local {
	return NewLocalFS(os.DirFS(root))
}

// NewLocalFS creates a searcher over fsys.
func NewLocalFS(fsys fs.FS) *Local {
	return &Local{fsys: fsys, include: DefaultInclude, ignore: DefaultIgnore}
}

// Files lists searchable files, sorted.
func (l *Local) Files(ctx context.Context) ([]string, error) {
	var files []string
	err := doublestar.GlobWalk(l.fsys, l.include, func(p string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || l.ignored(p) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (l *Local) ignored(p string) bool {
	for _, pattern := range l.ignore {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

type hit struct {
	file  string
	score int
	line  int
	lines []string
}

// Search scores files by how often the query's terms occur and returns a
// snippet around the first matching line of each top file.
func (l *Local) Search(ctx context.Context, query string, opts SearchOptions) (*Results, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return &Results{}, nil
	}

	files, err := l.Files(ctx)
	if err != nil {
		return nil, err
	}

	var code, text []hit
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, ok := l.score(f, terms)
		if !ok {
			continue
		}
		if textExtensions[strings.ToLower(path.Ext(f))] {
			text = append(text, h)
		} else {
			code = append(code, h)
		}
	}

	return &Results{
		Code: top(code, opts.NumCodeResults),
		Text: top(text, opts.NumTextResults),
	}, nil
}

func (l *Local) score(file string, terms []string) (hit, bool) {
	info, err := fs.Stat(l.fsys, file)
	if err != nil || info.Size() > maxFileSize {
		return hit{}, false
	}
	f, err := l.fsys.Open(file)
	if err != nil {
		return hit{}, false
	}
	defer f.Close()

	h := hit{file: file, line: -1}
	nameLower := strings.ToLower(file)
	for _, term := range terms {
		if strings.Contains(nameLower, term) {
			h.score += 2
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxFileSize)
	for scanner.Scan() {
		line := scanner.Text()
		lower := strings.ToLower(line)
		matched := false
		for _, term := range terms {
			if n := strings.Count(lower, term); n > 0 {
				h.score += n
				matched = true
			}
		}
		if matched && h.line < 0 {
			h.line = len(h.lines)
		}
		h.lines = append(h.lines, line)
	}
	return h, h.score > 0
}

func top(hits []hit, n int) []Result {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if n >= 0 && len(hits) > n {
		hits = hits[:n]
	}
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		center := max(h.line, 0)
		start := max(center-snippetRadius, 0)
		end := min(center+snippetRadius+1, len(h.lines))
		out = append(out, Result{
			FileName:  h.file,
			StartLine: start + 1,
			EndLine:   end,
			Content:   strings.Join(h.lines[start:end], "\n"),
		})
	}
	return out
}

// Terms splits a query into lowercase search terms, dropping short and
// common words.
func Terms(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	seen := make(map[string]bool)
	var terms []string
	for _, w := range words {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}
