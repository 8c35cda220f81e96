// Package dom provides the page-document capability layer the scan pipeline
// runs against. The pipeline never touches a rendering engine directly; it
// sees elements through this interface, which is backed by parsed browser
// snapshots in production and by fixture HTML in tests.
package dom

// Rect is an element's bounding box at snapshot time. Geometry is not
// live-tracked; it is whatever the browser reported when the page was
// captured.
type Rect struct {
	Width  int
	Height int
}

// Area returns Width × Height.
func (r Rect) Area() int {
	return r.Width * r.Height
}

// Known reports whether the snapshot carried any geometry for the element.
// Elements with unknown geometry are treated as visible so ancestor cleanup
// stays conservative.
func (r Rect) Known() bool {
	return r.Width > 0 || r.Height > 0
}

// Element is one page element. Implementations must return the same Element
// value for the same underlying node across lookups, so elements can be used
// as map keys for dedupe and removed-set tracking.
type Element interface {
	// Tag is the lower-case element type name, e.g. "div", "iframe".
	Tag() string
	// ID is the element's id attribute, or "".
	ID() string
	// Classes is the raw class attribute value, or "".
	Classes() string
	// Attr returns a raw attribute value.
	Attr(name string) (string, bool)
	// Text is the concatenated text content of the subtree.
	Text() string
	// Rect is the element's snapshot geometry.
	Rect() Rect
	// Parent is the parent element, or nil at the document boundary.
	Parent() Element
	// Children returns the direct element children.
	Children() []Element
	// Find returns descendants matching a CSS selector.
	Find(selector string) []Element
	// Owner is the document the element belongs to.
	Owner() Document

	// IsAttached reports whether the element is still reachable from the
	// document root.
	IsAttached() bool
	// IsVisible reports whether the element would render: attached, not
	// hidden, and not explicitly zero-sized.
	IsVisible() bool
	// HasRenderedContent reports whether the subtree still holds anything a
	// user would see: a non-empty text node or a visible, sized element
	// child. Non-rendering tags (script, style, meta...) are ignored.
	HasRenderedContent() bool

	// Remove detaches the element from its parent. Removing an already
	// detached element is a no-op returning false.
	Remove() bool
}

// Document is one parsed page.
type Document interface {
	// Select returns all elements matching a CSS selector, in document order.
	Select(selector string) []Element
	// Root is the top-level content boundary (the body element). Ancestor
	// cleanup never ascends past it.
	Root() Element
}
