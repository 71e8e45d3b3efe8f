package service

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const snippetRunes = 120

// PlainText renders markdown as space-separated text, dropping markup and code
// blocks.
func PlainText(markdown string) string {
	src := []byte(markdown)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var b strings.Builder
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		default:
			if !entering && n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

// Snippet returns a short excerpt of content around the first case-insensitive
// occurrence of query, or its beginning when query only matched the title.
func Snippet(content, query string) string {
	plain := PlainText(content)
	runes := []rune(plain)
	if len(runes) <= snippetRunes {
		return plain
	}

	start := 0
	lower := strings.ToLower(plain)
	if idx := strings.Index(lower, strings.ToLower(query)); idx >= 0 {
		start = utf8.RuneCountInString(lower[:idx]) - snippetRunes/3
		if start < 0 {
			start = 0
		}
	}
	end := min(start+snippetRunes, len(runes))
	if end-start < snippetRunes {
		start = max(0, end-snippetRunes)
	}

	out := string(runes[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}
