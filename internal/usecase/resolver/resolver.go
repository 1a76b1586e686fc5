// Package resolver maps a natural-language element description to a
// concrete page element using an ordered list of structural queries.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/domain/entity"
)

var ErrNotFound = errors.New("element not found")

// Candidate is the element a description resolved to. Strategy is the index
// of the template that produced it; the catch-all reports len(templates).
type Candidate struct {
	Query    string
	Element  output.Element
	Strategy int
	Category Category
}

type Resolver struct {
	logger output.LoggerPort
}

func New(logger output.LoggerPort) *Resolver {
	return &Resolver{logger: logger.WithField("component", "resolver")}
}

func (r *Resolver) Resolve(ctx context.Context, description string, page output.Page, hint entity.RoleHint) (*Candidate, error) {
	raw := strings.TrimSpace(description)
	desc := strings.ToLower(raw)
	subject := Subject(desc)
	category := Classify(desc, hint)
	templates := Templates(category, raw, subject)

	log := r.logger.WithFields(map[string]any{
		"description": description,
		"category":    string(category),
	})

	for i, tpl := range templates {
		el, err := r.firstVisible(ctx, page, tpl)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("Template skipped", "template", tpl.String(), "error", err)
			continue
		}
		if el != nil {
			log.Debug("Element resolved", "template", tpl.String(), "strategy", i)
			return &Candidate{Query: tpl.String(), Element: el, Strategy: i, Category: category}, nil
		}
	}

	el, query, err := r.catchAll(ctx, page, hint, desc, subject)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("Catch-all search failed", "error", err)
	}
	if el != nil {
		log.Debug("Element resolved by text search", "query", query)
		return &Candidate{Query: query, Element: el, Strategy: len(templates), Category: category}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, description)
}

func (r *Resolver) firstVisible(ctx context.Context, page output.Page, tpl Template) (output.Element, error) {
	elements, err := page.QueryAll(ctx, tpl.Selector)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(tpl.Text)
	for _, el := range elements {
		if needle != "" {
			text, err := el.Text(ctx)
			if err != nil || !strings.Contains(strings.ToLower(text), needle) {
				continue
			}
		}
		if visible(ctx, el) {
			return el, nil
		}
	}
	return nil, nil
}

// catchAll looks for an interactive element whose text (or, for inputs, its
// placeholder, name or aria-label) equals the description or its subject.
func (r *Resolver) catchAll(ctx context.Context, page output.Page, hint entity.RoleHint, desc, subject string) (output.Element, string, error) {
	selector := clickableCatchAll
	if hint == entity.RoleInput {
		selector = inputCatchAll
	}
	query := fmt.Sprintf(`%s with text equal to "%s"`, selector, desc)

	elements, err := page.QueryAll(ctx, selector)
	if err != nil {
		return nil, query, err
	}
	for _, el := range elements {
		if !matchesExactly(ctx, el, hint, desc, subject) {
			continue
		}
		if visible(ctx, el) {
			return el, query, nil
		}
	}
	return nil, query, nil
}

func matchesExactly(ctx context.Context, el output.Element, hint entity.RoleHint, desc, subject string) bool {
	equal := func(s string) bool {
		s = strings.ToLower(strings.TrimSpace(s))
		return s != "" && (s == desc || s == subject)
	}

	if hint == entity.RoleInput {
		for _, name := range []string{"placeholder", "name", "aria-label", "id"} {
			if v, ok, err := el.Attribute(ctx, name); err == nil && ok && equal(v) {
				return true
			}
		}
		return false
	}

	if text, err := el.Text(ctx); err == nil && equal(text) {
		return true
	}
	if v, ok, err := el.Attribute(ctx, "value"); err == nil && ok && equal(v) {
		return true
	}
	return false
}

func visible(ctx context.Context, el output.Element) bool {
	ok, err := el.Visible(ctx)
	return err == nil && ok
}
