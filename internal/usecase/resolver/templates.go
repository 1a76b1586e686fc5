package resolver

import (
	"strings"

	"smart-browser-agent/internal/domain/entity"
)

type Category string

const (
	CategorySearchButton     Category = "search-button"
	CategorySubmitButton     Category = "submit-button"
	CategoryLoginLink        Category = "login-link"
	CategoryLoginButton      Category = "login-button"
	CategoryLink             Category = "link"
	CategoryGenericClickable Category = "generic-clickable"

	CategorySearchField   Category = "search-field"
	CategoryEmailField    Category = "email-field"
	CategoryPasswordField Category = "password-field"
	CategoryUsernameField Category = "username-field"
	CategoryNameField     Category = "name-field"
	CategoryPhoneField    Category = "phone-field"
	CategoryGenericInput  Category = "generic-input"
)

// Template is one structural query. When Text is set, only elements whose
// visible text contains it (case-insensitively) qualify.
type Template struct {
	Selector string
	Text     string
}

func (t Template) String() string {
	if t.Text == "" {
		return t.Selector
	}
	return t.Selector + ` containing "` + t.Text + `"`
}

type rule struct {
	keywords []string
	category Category
}

// Evaluated top to bottom; the first rule with a matching keyword wins.
var clickableRules = []rule{
	{[]string{"search"}, CategorySearchButton},
	{[]string{"submit"}, CategorySubmitButton},
	{[]string{"login link", "log in link", "sign in link"}, CategoryLoginLink},
	{[]string{"login", "log in", "sign in"}, CategoryLoginButton},
	{[]string{"link"}, CategoryLink},
}

var inputRules = []rule{
	{[]string{"search"}, CategorySearchField},
	{[]string{"email", "e-mail"}, CategoryEmailField},
	{[]string{"password"}, CategoryPasswordField},
	{[]string{"username", "user"}, CategoryUsernameField},
	{[]string{"name"}, CategoryNameField},
	{[]string{"phone", "tel"}, CategoryPhoneField},
}

func Classify(description string, hint entity.RoleHint) Category {
	desc := strings.ToLower(description)
	rules, fallback := clickableRules, CategoryGenericClickable
	if hint == entity.RoleInput {
		rules, fallback = inputRules, CategoryGenericInput
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(desc, kw) {
				return r.category
			}
		}
	}
	return fallback
}

// Templates returns the ordered query list for a category. desc is the raw
// description; subject is the description stripped of role words.
func Templates(category Category, desc, subject string) []Template {
	switch category {
	case CategorySearchButton:
		return []Template{
			{Selector: `button[type="submit"]`},
			{Selector: `input[type="submit"]`},
			{Selector: `button`, Text: "Search"},
			{Selector: `button`, Text: "Go"},
			{Selector: `.search-button`},
			{Selector: `#search-button`},
		}
	case CategorySubmitButton:
		return []Template{
			{Selector: `button[type="submit"]`},
			{Selector: `input[type="submit"]`},
			{Selector: `button`, Text: "Submit"},
			{Selector: `button`, Text: "Send"},
		}
	case CategoryLoginLink:
		return []Template{
			{Selector: `a`, Text: "Login"},
			{Selector: `a`, Text: "Log in"},
			{Selector: `a`, Text: "Sign in"},
		}
	case CategoryLoginButton:
		return []Template{
			{Selector: `button`, Text: "Login"},
			{Selector: `button`, Text: "Log in"},
			{Selector: `button`, Text: "Sign in"},
			{Selector: `input[type="submit"]`},
			{Selector: `.login-button`},
		}
	case CategoryLink:
		return []Template{
			{Selector: `a`, Text: subject},
			{Selector: `a[href*=` + attrValue(desc) + ` i]`},
		}
	case CategoryGenericClickable:
		return []Template{
			{Selector: `button`, Text: subject},
			{Selector: `a`, Text: subject},
			{Selector: `input[value*=` + attrValue(desc) + ` i]`},
			{Selector: `[role="button"], [onclick]`, Text: subject},
		}

	case CategorySearchField:
		return []Template{
			{Selector: `input[name="q"]`},
			{Selector: `input[type="search"]`},
			{Selector: `input[placeholder*="search" i]`},
			{Selector: `#search`},
			{Selector: `.search-input`},
			{Selector: `textarea[name="q"]`},
		}
	case CategoryEmailField:
		return []Template{
			{Selector: `input[type="email"]`},
			{Selector: `input[name="email"]`},
			{Selector: `input[name="custemail"]`},
			{Selector: `input[placeholder*="email" i]`},
		}
	case CategoryPasswordField:
		return []Template{
			{Selector: `input[type="password"]`},
			{Selector: `input[name="password"]`},
			{Selector: `input[name="pass"]`},
		}
	case CategoryUsernameField:
		return []Template{
			{Selector: `input[name="username"]`},
			{Selector: `input[name="user"]`},
			{Selector: `input[name="login"]`},
		}
	case CategoryNameField:
		return []Template{
			{Selector: `input[name="name"]`},
			{Selector: `input[name="custname"]`},
			{Selector: `input[name="fullname"]`},
			{Selector: `input[placeholder*="name" i]`},
		}
	case CategoryPhoneField:
		return []Template{
			{Selector: `input[type="tel"]`},
			{Selector: `input[name="phone"]`},
			{Selector: `input[name="tel"]`},
			{Selector: `input[name="custtel"]`},
		}
	default:
		return []Template{
			{Selector: `input[placeholder*=` + attrValue(desc) + ` i]`},
			{Selector: `input[name*=` + attrValue(desc) + ` i]`},
			{Selector: `input[type="text"]`},
			{Selector: `textarea`},
		}
	}
}

// attrValue quotes s for use inside an attribute selector.
func attrValue(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

var roleWords = map[string]bool{
	"the": true, "a": true, "an": true,
	"button": true, "btn": true, "link": true,
	"field": true, "box": true, "input": true,
}

// Subject strips articles and role words: "the Sign up button" -> "sign up".
func Subject(description string) string {
	words := strings.Fields(strings.ToLower(description))
	kept := words[:0]
	for _, w := range words {
		if !roleWords[w] {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return strings.ToLower(strings.TrimSpace(description))
	}
	return strings.Join(kept, " ")
}

const (
	clickableCatchAll = `button, a, input[type="submit"], input[type="button"], [role="button"], label`
	inputCatchAll     = `input, textarea`
)
