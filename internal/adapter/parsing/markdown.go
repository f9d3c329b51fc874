package parsing

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const maxSectionDepth = 4

// Section is the body of a markdown document under one heading path.
type Section struct {
	Path []string
	Body string
}

// Title joins the heading path, e.g. "Outlook > Inflation".
func (s Section) Title() string {
	return strings.Join(s.Path, " > ")
}

// IsMarkdown reports whether filename has a markdown extension.
func IsMarkdown(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// SplitMarkdownSections splits a markdown document at its headings. Text
// before the first heading becomes a section with an empty path. Headings
// deeper than maxSectionDepth stay inside their parent section.
func SplitMarkdownSections(md []byte) []Section {
	root := goldmark.DefaultParser().Parse(text.NewReader(md))

	var (
		out  []Section
		path []string
		buf  bytes.Buffer
	)
	flush := func() {
		body := strings.TrimSpace(buf.String())
		buf.Reset()
		if body == "" {
			return
		}
		out = append(out, Section{Path: append([]string(nil), path...), Body: body})
	}

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok && h.Level <= maxSectionDepth {
			flush()
			if len(path) >= h.Level {
				path = path[:h.Level-1]
			}
			path = append(path, strings.TrimSpace(string(h.Lines().Value(md))))
			return ast.WalkSkipChildren, nil
		}
		if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
			buf.Write(n.Lines().Value(md))
			buf.WriteByte('\n')
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	flush()
	return out
}
