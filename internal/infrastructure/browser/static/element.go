package static

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"smart-browser-agent/internal/application/port/output"
)

// ClickCountAttr is incremented on every click so tests can observe them.
const ClickCountAttr = "data-static-clicks"

func compile(selector string) (cascadia.Selector, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return m, nil
}

type Element struct {
	page *Page
	sel  *goquery.Selection
}

var _ output.Element = (*Element)(nil)

func (e *Element) Visible(ctx context.Context) (bool, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()

	if e.sel.Length() == 0 {
		return false, nil
	}
	node := e.sel.Get(0)
	if node.Data == "input" && strings.EqualFold(attr(node, "type"), "hidden") {
		return false, nil
	}
	for n := node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if hasAttr(n, "hidden") || hiddenByStyle(attr(n, "style")) {
			return false, nil
		}
	}
	return true, nil
}

func (e *Element) Click(ctx context.Context) error {
	e.page.mu.Lock()
	node := e.sel.Get(0)
	if hasAttr(node, "disabled") {
		e.page.mu.Unlock()
		return fmt.Errorf("element <%s> is disabled", node.Data)
	}
	n, _ := strconv.Atoi(attr(node, ClickCountAttr))
	e.sel.SetAttr(ClickCountAttr, strconv.Itoa(n+1))
	href, isLink := "", node.Data == "a"
	if isLink {
		href = attr(node, "href")
	}
	e.page.mu.Unlock()

	if isLink && href != "" {
		return e.page.followLink(ctx, href)
	}
	return nil
}

func (e *Element) Clear(ctx context.Context) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.setValue("")
}

// Input appends to the current value, like typing into a focused field.
func (e *Element) Input(ctx context.Context, text string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.setValue(e.value() + text)
}

func (e *Element) Text(ctx context.Context) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return strings.Join(strings.Fields(e.sel.Text()), " "), nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if name == "value" && e.sel.Is("textarea") {
		return e.sel.Text(), true, nil
	}
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

// Value is the current form value of an input or textarea.
func (e *Element) Value() string {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.value()
}

func (e *Element) value() string {
	if e.sel.Is("textarea") {
		return e.sel.Text()
	}
	v, _ := e.sel.Attr("value")
	return v
}

func (e *Element) setValue(v string) error {
	switch {
	case e.sel.Is("textarea"):
		e.sel.SetText(v)
	case e.sel.Is("input"), e.sel.Is("select"):
		e.sel.SetAttr("value", v)
	default:
		if _, editable := e.sel.Attr("contenteditable"); !editable {
			return fmt.Errorf("element <%s> is not editable", goquery.NodeName(e.sel))
		}
		e.sel.SetText(v)
	}
	return nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func hiddenByStyle(style string) bool {
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}
