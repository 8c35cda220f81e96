package dom

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Snapshot is a Document parsed from a captured page. The browser session
// stamps data-rect attributes before capture; fixture HTML can carry plain
// width/height attributes instead.
type Snapshot struct {
	doc   *goquery.Document
	root  *html.Node
	body  *html.Node
	cache map[*html.Node]*element
}

// Parse builds a Snapshot from page HTML.
func Parse(pageHTML string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, err
	}
	s := &Snapshot{
		doc:   doc,
		cache: make(map[*html.Node]*element),
	}
	if len(doc.Nodes) > 0 {
		s.root = doc.Nodes[0]
	}
	if body := doc.Find("body"); len(body.Nodes) > 0 {
		s.body = body.Nodes[0]
	} else {
		s.body = s.root
	}
	return s, nil
}

func (s *Snapshot) elem(n *html.Node) *element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	if e, ok := s.cache[n]; ok {
		return e
	}
	e := &element{snap: s, node: n}
	s.cache[n] = e
	return e
}

// Select returns all elements matching the selector, in document order.
func (s *Snapshot) Select(selector string) []Element {
	sel := s.doc.Find(selector)
	out := make([]Element, 0, len(sel.Nodes))
	for _, n := range sel.Nodes {
		if e := s.elem(n); e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Root returns the body element, the boundary for ancestor cleanup.
func (s *Snapshot) Root() Element {
	return s.elem(s.body)
}

// HTML renders the snapshot's current state back to markup.
func (s *Snapshot) HTML() (string, error) {
	return s.doc.Html()
}

type element struct {
	snap *Snapshot
	node *html.Node
}

func (e *element) Tag() string {
	return strings.ToLower(e.node.Data)
}

func (e *element) ID() string {
	v, _ := e.Attr("id")
	return v
}

func (e *element) Classes() string {
	v, _ := e.Attr("class")
	return v
}

func (e *element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e *element) Text() string {
	var b strings.Builder
	collectText(e.node, &b)
	return b.String()
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	if n.Type == html.ElementNode && nonRendering[strings.ToLower(n.Data)] {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

func (e *element) Rect() Rect {
	r, _ := e.rect()
	return r
}

// rect parses snapshot geometry: the data-rect stamp first, then width and
// height attributes, then inline style. The bool reports whether any source
// was present at all.
func (e *element) rect() (Rect, bool) {
	if v, ok := e.Attr("data-rect"); ok {
		if w, h, ok := parsePair(v); ok {
			return Rect{Width: w, Height: h}, true
		}
	}
	wAttr, wok := e.Attr("width")
	hAttr, hok := e.Attr("height")
	if wok || hok {
		return Rect{Width: parsePx(wAttr), Height: parsePx(hAttr)}, true
	}
	if style, ok := e.Attr("style"); ok {
		w, wok := styleProp(style, "width")
		h, hok := styleProp(style, "height")
		if wok || hok {
			return Rect{Width: parsePx(w), Height: parsePx(h)}, true
		}
	}
	return Rect{}, false
}

func parsePair(v string) (int, int, bool) {
	parts := strings.SplitN(v, "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	w := parsePx(parts[0])
	h := parsePx(parts[1])
	return w, h, true
}

func parsePx(v string) int {
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if v == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f + 0.5)
	}
	return 0
}

func styleProp(style, name string) (string, bool) {
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(strings.ToLower(k)) == name {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func (e *element) Parent() Element {
	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.snap.elem(p)
}

func (e *element) Children() []Element {
	var out []Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if ce := e.snap.elem(c); ce != nil {
			out = append(out, ce)
		}
	}
	return out
}

func (e *element) Find(selector string) []Element {
	scoped := goquery.NewDocumentFromNode(e.node)
	sel := scoped.Find(selector)
	out := make([]Element, 0, len(sel.Nodes))
	for _, n := range sel.Nodes {
		if fe := e.snap.elem(n); fe != nil {
			out = append(out, fe)
		}
	}
	return out
}

func (e *element) Owner() Document {
	return e.snap
}

func (e *element) IsAttached() bool {
	for n := e.node; n != nil; n = n.Parent {
		if n == e.snap.root {
			return true
		}
	}
	return false
}

func (e *element) IsVisible() bool {
	if !e.IsAttached() {
		return false
	}
	if _, hidden := e.Attr("hidden"); hidden {
		return false
	}
	if style, ok := e.Attr("style"); ok {
		if v, found := styleProp(style, "display"); found && strings.EqualFold(v, "none") {
			return false
		}
		if v, found := styleProp(style, "visibility"); found && strings.EqualFold(v, "hidden") {
			return false
		}
	}
	// Explicitly zero-sized elements do not render. Unknown geometry counts
	// as visible so cleanup decisions stay conservative.
	if r, known := e.rect(); known && (r.Width <= 0 || r.Height <= 0) {
		return false
	}
	return true
}

// nonRendering tags never contribute visible content.
var nonRendering = map[string]bool{
	"script":   true,
	"style":    true,
	"meta":     true,
	"link":     true,
	"noscript": true,
	"template": true,
	"head":     true,
	"title":    true,
}

func (e *element) HasRenderedContent() bool {
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return true
			}
		case html.ElementNode:
			if nonRendering[strings.ToLower(c.Data)] {
				continue
			}
			if ce := e.snap.elem(c); ce != nil && ce.IsVisible() {
				return true
			}
		}
	}
	return false
}

func (e *element) Remove() bool {
	p := e.node.Parent
	if p == nil {
		return false
	}
	p.RemoveChild(e.node)
	return true
}
