package assets

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New().Parser()

// markdownImageDestinations returns the destination of every markdown image,
// including reference-style images resolved through link definitions.
func markdownImageDestinations(content string) []string {
	if !strings.Contains(content, "![") {
		return nil
	}
	src := []byte(content)
	doc := markdownParser.Parse(text.NewReader(src))

	var out []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if img, ok := n.(*ast.Image); ok {
			if dest := strings.TrimSpace(string(img.Destination)); dest != "" {
				out = append(out, dest)
			}
		}
		return ast.WalkContinue, nil
	})
	return out
}

// refDefinition matches a link reference definition up to its destination.
var refDefinition = regexp.MustCompile(`(?m)^ {0,3}\[[^\]\n]+\]:[ \t]*(<[^>\n]*>|\S+)`)

// rewriteMarkdownImages swaps the destinations of inline images and of
// reference definitions whose destination is mapped. A destination matches
// only as a whole, so links that share a prefix with an image URL are kept,
// and inline links are left alone even when they point at an image URL.
func rewriteMarkdownImages(content string, mapping map[string]string) string {
	if len(mapping) == 0 {
		return content
	}
	content = rewriteInlineImages(content, mapping)

	var b strings.Builder
	last := 0
	for _, m := range refDefinition.FindAllStringSubmatchIndex(content, -1) {
		start, end := m[2], m[3]
		dest, angle := content[start:end], false
		if strings.HasPrefix(dest, "<") {
			dest, angle = dest[1:len(dest)-1], true
		}
		repl, ok := mapping[dest]
		if !ok {
			continue
		}
		if angle {
			repl = "<" + repl + ">"
		}
		b.WriteString(content[last:start])
		b.WriteString(repl)
		last = end
	}
	if last == 0 {
		return content
	}
	b.WriteString(content[last:])
	return b.String()
}

func rewriteInlineImages(content string, mapping map[string]string) string {
	var b strings.Builder
	last := 0
	for k := 0; ; {
		i := strings.Index(content[k:], "](")
		if i < 0 {
			break
		}
		rb := k + i
		k = rb + 2
		if !isImageLabel(content, rb) {
			continue
		}
		start, end, ok := inlineDestination(content, k)
		if !ok {
			continue
		}
		repl, ok := mapping[content[start:end]]
		if !ok {
			continue
		}
		b.WriteString(content[last:start])
		b.WriteString(repl)
		last = end
		k = end
	}
	if last == 0 {
		return content
	}
	b.WriteString(content[last:])
	return b.String()
}

// isImageLabel reports whether the "]" at rb ends a label opened by "![".
func isImageLabel(content string, rb int) bool {
	depth := 0
	for p := rb - 1; p >= 0; p-- {
		if p > 0 && content[p-1] == '\\' {
			continue
		}
		switch content[p] {
		case ']':
			depth++
		case '[':
			if depth == 0 {
				return p > 0 && content[p-1] == '!'
			}
			depth--
		}
	}
	return false
}

// inlineDestination returns the bounds of the destination that starts after
// "(" at from. Angle-bracket destinations exclude the brackets. A bare
// destination ends at whitespace or at the ")" that balances its parentheses.
func inlineDestination(content string, from int) (int, int, bool) {
	p := from
	for p < len(content) && (content[p] == ' ' || content[p] == '\t') {
		p++
	}
	if p < len(content) && content[p] == '<' {
		end := strings.IndexAny(content[p+1:], ">\n")
		if end < 0 || content[p+1+end] != '>' {
			return 0, 0, false
		}
		return p + 1, p + 1 + end, true
	}
	start, depth := p, 0
	for ; p < len(content); p++ {
		switch c := content[p]; {
		case c == '\\' && p+1 < len(content):
			p++
		case c == '(':
			depth++
		case c == ')':
			if depth == 0 {
				return start, p, p > start
			}
			depth--
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			return start, p, depth == 0 && p > start
		}
	}
	return 0, 0, false
}
