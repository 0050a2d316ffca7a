package browser

import "fmt"

// Strategy identifies how a Locator value is interpreted.
type Strategy int

const (
	// ByXPath interprets the value as an XPath expression
	ByXPath Strategy = iota
	// ByCSS interprets the value as a CSS selector
	ByCSS
	// ByID matches the element id exactly. Portal ids contain ':' so they are
	// never written as #id selectors.
	ByID
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case ByXPath:
		return "xpath"
	case ByCSS:
		return "css"
	case ByID:
		return "id"
	default:
		return "unknown"
	}
}

// Locator is a logical reference to an element of the current document.
type Locator struct {
	By    Strategy
	Value string

	// Desc is a human readable name used in logs
	Desc string
}

// XPath returns an XPath locator.
func XPath(expr string) Locator {
	return Locator{By: ByXPath, Value: expr}
}

// CSS returns a CSS selector locator.
func CSS(selector string) Locator {
	return Locator{By: ByCSS, Value: selector}
}

// ID returns a locator matching the element id.
func ID(id string) Locator {
	return Locator{By: ByID, Value: id}
}

// Named returns a copy of the locator with a log description.
func (l Locator) Named(desc string) Locator {
	l.Desc = desc
	return l
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool {
	return l.Value == ""
}

// Selector renders the locator in the automation driver's selector syntax.
func (l Locator) Selector() string {
	switch l.By {
	case ByCSS:
		return "css=" + l.Value
	case ByID:
		return fmt.Sprintf("css=[id=%q]", l.Value)
	default:
		return "xpath=" + l.Value
	}
}

// String implements fmt.Stringer.
func (l Locator) String() string {
	if l.Desc != "" {
		return l.Desc
	}
	return l.By.String() + ":" + l.Value
}
