package tool

import (
	"context"
	"fmt"
	"strings"

	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/domain/entity"
)

const maxListed = 10

const (
	buttonSelector = `button, input[type="submit"], input[type="button"]`
	linkSelector   = `a[href]`
	inputSelector  = `input[type="text"], input[type="email"], input[type="search"], input[type="tel"], input:not([type]), textarea`
)

type ListElementsTool struct {
	logger output.LoggerPort
}

func (t *ListElementsTool) Name() entity.ActionName { return entity.ActionListElements }

func (t *ListElementsTool) Execute(ctx context.Context, s output.Session, _ entity.Arguments) (string, error) {
	page := s.Page()
	var found []entity.UIElement

	groups := []struct {
		kind     entity.UIElementKind
		selector string
	}{
		{entity.UIButton, buttonSelector},
		{entity.UILink, linkSelector},
		{entity.UIInput, inputSelector},
	}
	for _, g := range groups {
		els, err := page.QueryAll(ctx, g.selector)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			t.logger.Warn("Element enumeration failed", "selector", g.selector, "error", err)
			continue
		}
		if len(els) > maxListed {
			els = els[:maxListed]
		}
		for _, el := range els {
			ui, err := describe(ctx, g.kind, el)
			if err != nil {
				continue
			}
			if g.kind == entity.UIButton && strings.TrimSpace(ui.Text) == "" {
				continue
			}
			found = append(found, ui)
		}
	}

	return FormatElements(found), nil
}

// describe reads the attributes shown for one element; any read failure
// drops the element from the listing.
func describe(ctx context.Context, kind entity.UIElementKind, el output.Element) (entity.UIElement, error) {
	ui := entity.UIElement{Kind: kind}
	read := func(name string) (string, error) {
		v, _, err := el.Attribute(ctx, name)
		return v, err
	}

	var err error
	switch kind {
	case entity.UIButton:
		if ui.Text, err = el.Text(ctx); err != nil {
			return ui, err
		}
		if strings.TrimSpace(ui.Text) == "" {
			if ui.Text, err = read("value"); err != nil {
				return ui, err
			}
		}
		if ui.Type, err = read("type"); err != nil {
			return ui, err
		}
	case entity.UILink:
		if ui.Text, err = el.Text(ctx); err != nil {
			return ui, err
		}
		if ui.Href, err = read("href"); err != nil {
			return ui, err
		}
	case entity.UIInput:
		if ui.Name, err = read("name"); err != nil {
			return ui, err
		}
		if ui.Placeholder, err = read("placeholder"); err != nil {
			return ui, err
		}
		if ui.Type, err = read("type"); err != nil {
			return ui, err
		}
		if ui.Type == "" {
			ui.Type = "text"
		}
	}
	ui.Text = strings.Join(strings.Fields(ui.Text), " ")
	return ui, nil
}

func FormatElements(elements []entity.UIElement) string {
	if len(elements) == 0 {
		return "No interactive elements found on this page"
	}

	var b strings.Builder
	b.WriteString("Found these elements:")
	for _, el := range elements {
		b.WriteString("\n- ")
		b.WriteString(string(el.Kind))
		b.WriteString(": ")
		switch el.Kind {
		case entity.UILink:
			fmt.Fprintf(&b, "'%s' -> %s", el.Text, el.Href)
		case entity.UIInput:
			fmt.Fprintf(&b, "name='%s' placeholder='%s' type='%s'", el.Name, el.Placeholder, el.Type)
		default:
			fmt.Fprintf(&b, "'%s'", el.Text)
			if el.Type != "" {
				fmt.Fprintf(&b, " (type=%s)", el.Type)
			}
		}
	}
	return b.String()
}
