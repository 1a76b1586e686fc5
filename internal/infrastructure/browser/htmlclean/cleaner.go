// Package htmlclean strips page markup down to what is useful to a model:
// no scripts, styles or comments, and plain readable text on request.
package htmlclean

import (
	"strings"

	"golang.org/x/net/html"
)

type Config struct {
	TagsToRemove  []string
	AttrsToRemove []string
	MaxOutputSize int
}

// DefaultConfig возвращает дефолтную конфигурацию
var DefaultConfig = Config{
	TagsToRemove: []string{
		"script", "style", "noscript", "svg", "iframe",
		"link", "meta", "head", "title", "template",
	},
	AttrsToRemove: []string{
		"style", "srcset", "sizes", "loading", "decoding", "fetchpriority", "tabindex",
	},
	MaxOutputSize: 130_000,
}

// Clean returns the cleaned <body> markup. Unparseable input and documents
// without a body are returned unchanged.
func Clean(rawHTML string, cfg *Config) string {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	body, ok := parseBody(rawHTML, cfg)
	if !ok {
		return rawHTML
	}

	var sb strings.Builder
	_ = html.Render(&sb, body)
	out := sb.String()
	if cfg.MaxOutputSize > 0 && len(out) > cfg.MaxOutputSize {
		out = out[:cfg.MaxOutputSize] + "\n<!-- HTML truncated -->"
	}
	return out
}

// Text returns the human-readable text of the body with whitespace collapsed
// and block elements separated by newlines.
func Text(rawHTML string) string {
	body, ok := parseBody(rawHTML, &DefaultConfig)
	if !ok {
		return strings.Join(strings.Fields(rawHTML), " ")
	}

	var lines []string
	var cur strings.Builder
	flush := func() {
		if line := strings.Join(strings.Fields(cur.String()), " "); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
			return
		case html.ElementNode:
			if hasHiddenAttr(n) {
				return
			}
		}
		block := n.Type == html.ElementNode && isBlock(n.Data)
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}
	walk(body)
	flush()
	return strings.Join(lines, "\n")
}

func parseBody(rawHTML string, cfg *Config) (*html.Node, bool) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, false
	}
	body := findBodyNode(doc)
	if body == nil {
		return nil, false
	}
	cleanNode(body, cfg)
	return body, true
}

// findBodyNode ищет <body> в дереве HTML
func findBodyNode(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBodyNode(c); b != nil {
			return b
		}
	}
	return nil
}

// cleanNode рекурсивно удаляет комментарии, мусорные теги и фильтрует атрибуты
func cleanNode(n *html.Node, cfg *Config) {
	if n.Type == html.CommentNode {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return
	}
	if n.Type != html.ElementNode {
		return
	}
	if isOneOf(n.Data, cfg.TagsToRemove...) {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return
	}

	kept := n.Attr[:0]
	for _, attr := range n.Attr {
		if !shouldRemoveAttr(attr.Key, cfg) {
			kept = append(kept, attr)
		}
	}
	n.Attr = kept

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		cleanNode(c, cfg)
		c = next
	}
}

func shouldRemoveAttr(key string, cfg *Config) bool {
	if isOneOf(key, cfg.AttrsToRemove...) {
		return true
	}
	// hidden нужен Text(), поэтому не трогаем
	return strings.HasPrefix(key, "data-") || strings.HasPrefix(key, "aria-") || strings.HasPrefix(key, "on")
}

func hasHiddenAttr(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key == "hidden" {
			return true
		}
	}
	return false
}

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "header": true,
	"footer": true, "nav": true, "main": true, "aside": true, "li": true,
	"ul": true, "ol": true, "table": true, "tr": true, "br": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"form": true, "pre": true, "blockquote": true,
}

func isBlock(tag string) bool {
	return blockTags[tag]
}

func isOneOf(s string, candidates ...string) bool {
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}
