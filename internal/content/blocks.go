package content

import (
	"bytes"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// contentBody returns rich-text content as a string. Plain strings (HTML or
// markdown) pass through; structured block arrays are rendered to HTML.
func contentBody(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		return renderBlocks(t)
	default:
		return ""
	}
}

func renderBlocks(blocks []any) string {
	root := &html.Node{Type: html.DocumentNode}
	for _, b := range blocks {
		if n := blockNode(b); n != nil {
			root.AppendChild(n)
		}
	}
	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return buf.String()
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func blockNode(v any) *html.Node {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	var n *html.Node
	switch toString(m["type"]) {
	case "paragraph":
		n = element(atom.P)
	case "heading":
		level := toInt(m["level"], 2)
		if level < 1 || level > 6 {
			level = 2
		}
		n = element(atom.Lookup([]byte("h" + strconv.Itoa(level))))
	case "list":
		if toString(m["format"]) == "ordered" {
			n = element(atom.Ol)
		} else {
			n = element(atom.Ul)
		}
	case "list-item":
		n = element(atom.Li)
	case "quote":
		n = element(atom.Blockquote)
	case "code":
		n = element(atom.Pre)
	case "link":
		n = element(atom.A, html.Attribute{Key: "href", Val: toString(m["url"])})
	case "image":
		img, _ := m["image"].(map[string]any)
		if img == nil {
			return nil
		}
		return element(atom.Img,
			html.Attribute{Key: "src", Val: toString(img["url"])},
			html.Attribute{Key: "alt", Val: toString(img["alternativeText"])})
	case "text":
		return textNode(m)
	default:
		return nil
	}
	if children, ok := m["children"].([]any); ok {
		for _, c := range children {
			if cn := blockNode(c); cn != nil {
				n.AppendChild(cn)
			}
		}
	}
	return n
}

func textNode(m map[string]any) *html.Node {
	n := &html.Node{Type: html.TextNode, Data: toString(m["text"])}
	for _, mark := range []struct {
		key string
		a   atom.Atom
	}{{"code", atom.Code}, {"bold", atom.Strong}, {"italic", atom.Em}, {"underline", atom.U}, {"strikethrough", atom.S}} {
		if b, _ := m[mark.key].(bool); b {
			wrap := element(mark.a)
			wrap.AppendChild(n)
			n = wrap
		}
	}
	return n
}
