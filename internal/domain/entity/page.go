package entity

// RoleHint tells the element resolver what kind of element the caller
// intends to act on.
type RoleHint string

const (
	RoleClickable RoleHint = "clickable"
	RoleInput     RoleHint = "input"
)

type UIElementKind string

const (
	UIButton UIElementKind = "Button"
	UILink   UIElementKind = "Link"
	UIInput  UIElementKind = "Input field"
)

// UIElement is one entry of a list_elements enumeration.
type UIElement struct {
	Kind        UIElementKind
	Text        string
	Name        string
	Placeholder string
	Type        string
	Href        string
}

type Viewport struct {
	Width  int
	Height int
}
