package assets

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// htmlImageSources returns the src attribute of every <img> tag in document order.
func htmlImageSources(content string) []string {
	var out []string
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return out
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		if tok.DataAtom != atom.Img {
			continue
		}
		if src, ok := attr(tok, "src"); ok && strings.TrimSpace(src) != "" {
			out = append(out, strings.TrimSpace(src))
		}
	}
}

// rewriteHTMLImages replaces <img src> values found in mapping. Every other
// byte of the input is preserved as written.
func rewriteHTMLImages(content string, mapping map[string]string) string {
	if len(mapping) == 0 || !strings.Contains(strings.ToLower(content), "<img") {
		return content
	}
	var b strings.Builder
	b.Grow(len(content))
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				// Unparseable tail; keep it verbatim.
				b.Write(z.Raw())
			}
			return b.String()
		}
		raw := string(z.Raw())
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			b.WriteString(raw)
			continue
		}
		tok := z.Token()
		if tok.DataAtom != atom.Img || !replaceAttr(&tok, "src", mapping) {
			b.WriteString(raw)
			continue
		}
		b.WriteString(tok.String())
	}
}

func attr(tok html.Token, key string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func replaceAttr(tok *html.Token, key string, mapping map[string]string) bool {
	for i, a := range tok.Attr {
		if a.Namespace != "" || !strings.EqualFold(a.Key, key) {
			continue
		}
		if repl, ok := mapping[strings.TrimSpace(a.Val)]; ok {
			tok.Attr[i].Val = repl
			return true
		}
	}
	return false
}
