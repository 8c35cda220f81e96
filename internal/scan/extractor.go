package scan

import (
	"strings"
	"time"

	"adscrub/internal/dom"
	"adscrub/internal/domain"
)

// Config holds the engine constants. These are operator configuration, not
// user settings; user settings travel per cycle in domain.Settings.
type Config struct {
	MaxCandidates       int
	TextSampleLen       int
	RequireStrongSignal bool
	CleanupDepth        int
	Debounce            time.Duration
	SkipSelectors       []string
}

// DefaultConfig mirrors the shipped engine constants.
func DefaultConfig() Config {
	return Config{
		MaxCandidates:       500,
		TextSampleLen:       100,
		RequireStrongSignal: true,
		CleanupDepth:        2,
		Debounce:            100 * time.Millisecond,
		SkipSelectors: []string{
			"div", "span", "section", "aside", "article",
			"img", "iframe", "body", "html", "*",
		},
	}
}

// structuralSelector covers the element types worth considering at all.
const structuralSelector = "div, iframe, aside, img, section"

// adPatternSelectors are known ad markup shapes, unioned with the structural
// set. Extraction is deliberately broad; the decision engine gates removal.
var adPatternSelectors = []string{
	`[id^="ad-"]`,
	`[id$="-ad"]`,
	`[id*="banner"]`,
	`[id*="sponsor"]`,
	`[id*="google_ad"]`,
	`[class*="ad-"]`,
	`[class*="ads"]`,
	`[class*="sponsor"]`,
	`[class*="promo"]`,
	`[class*="banner"]`,
	`iframe[src*="ads"]`,
	`iframe[src*="doubleclick"]`,
}

// Candidate pairs the feature record with the live element it was computed
// from. The element reference is only valid against the document it came
// from.
type Candidate struct {
	domain.Candidate
	El dom.Element
}

// Extract harvests ad candidates from the document: structural and
// ad-pattern selector matches, deduplicated in first-seen order, truncated
// to min(limit, MaxCandidates). Elements with zero dimensions are kept;
// size-based filtering is a decision concern. Extraction never mutates the
// page.
func Extract(doc dom.Document, limit int, kw *Keywords, cfg Config) []Candidate {
	max := cfg.MaxCandidates
	if limit > 0 && limit < max {
		max = limit
	}

	seen := make(map[dom.Element]struct{})
	var out []Candidate

	add := func(el dom.Element) bool {
		if _, dup := seen[el]; dup {
			return true
		}
		seen[el] = struct{}{}
		out = append(out, Build(el, kw))
		return len(out) < max
	}

	for _, el := range doc.Select(structuralSelector) {
		if !add(el) {
			return out
		}
	}
	for _, sel := range adPatternSelectors {
		for _, el := range doc.Select(sel) {
			if !add(el) {
				return out
			}
		}
	}
	return out
}

// Build computes the feature record for one element.
func Build(el dom.Element, kw *Keywords) Candidate {
	id := el.ID()
	classes := el.Classes()
	hit, source, match := kw.Detect(id, classes, el.Text())

	r := el.Rect()
	return Candidate{
		Candidate: domain.Candidate{
			Tag:           strings.ToUpper(el.Tag()),
			ID:            id,
			Classes:       classes,
			KeywordHit:    hit,
			KeywordSource: source,
			KeywordMatch:  match,
			IsFrameLike:   isFrameLike(el),
			Width:         r.Width,
			Height:        r.Height,
			Area:          r.Area(),
		},
		El: el,
	}
}

// isFrameLike reports whether the element is an embedded frame or contains
// one.
func isFrameLike(el dom.Element) bool {
	switch el.Tag() {
	case "iframe", "frame", "embed":
		return true
	}
	return len(el.Find("iframe, frame, embed")) > 0
}

// SelectorFor derives an identifying selector for a candidate the same way
// the classifier backend does: id first, then the first class, then the bare
// tag.
func SelectorFor(c domain.Candidate) string {
	if id := strings.TrimSpace(c.ID); id != "" {
		return "#" + id
	}
	if fields := strings.Fields(c.Classes); len(fields) > 0 {
		return "." + fields[0]
	}
	return strings.ToLower(c.Tag)
}
