package scan

import (
	"go.uber.org/zap"

	"adscrub/internal/dom"
)

// Hooks let the owning page session mirror snapshot mutations into the live
// page. Both are best-effort: they run on their own goroutines and must
// never delay the removal itself.
type Hooks struct {
	// Apply pushes a removal to the live page by selector.
	Apply func(selector string)
	// Overlay renders the transient visual feedback rectangle.
	Overlay func(selector string, r dom.Rect)
}

// Remover performs safe element removal with bounded ancestor cleanup.
type Remover struct {
	cfg   Config
	kw    *Keywords
	hooks Hooks
	log   *zap.Logger
}

// NewRemover builds a remover for one page session.
func NewRemover(cfg Config, kw *Keywords, hooks Hooks, log *zap.Logger) *Remover {
	return &Remover{cfg: cfg, kw: kw, hooks: hooks, log: log}
}

// Remove takes a candidate out of the document and returns the number of
// elements actually removed (the target plus any cleaned-up ancestors). The
// element is re-resolved through the prediction selector first, then by the
// candidate's original id, then by the held reference; the page may have
// re-rendered between extraction and now. A candidate that cannot be
// resolved, or is already detached, is a logged no-op.
func (r *Remover) Remove(doc dom.Document, c Candidate, selector string, showFeedback bool) int {
	target := r.resolve(doc, c, selector)
	if target == nil {
		r.log.Info("element not found, skipping removal",
			zap.String("selector", selector), zap.String("id", c.ID))
		return 0
	}

	if showFeedback && r.hooks.Overlay != nil {
		sel := selector
		if sel == "" {
			sel = SelectorFor(c.Candidate)
		}
		rect := target.Rect()
		go r.hooks.Overlay(sel, rect)
	}

	parent := target.Parent()
	if !target.Remove() {
		// Already detached by a concurrent cycle.
		return 0
	}
	r.apply(selector, c)
	removed := 1

	removed += r.cleanupAncestors(doc, parent)
	return removed
}

func (r *Remover) resolve(doc dom.Document, c Candidate, selector string) dom.Element {
	if selector != "" {
		if els := doc.Select(selector); len(els) > 0 {
			return els[0]
		}
	}
	if c.ID != "" {
		if els := doc.Select("#" + c.ID); len(els) > 0 {
			return els[0]
		}
	}
	if c.El != nil && c.El.IsAttached() {
		return c.El
	}
	return nil
}

func (r *Remover) apply(selector string, c Candidate) {
	if r.hooks.Apply == nil {
		return
	}
	sel := selector
	if sel == "" {
		sel = SelectorFor(c.Candidate)
	}
	go r.hooks.Apply(sel)
}

// cleanupAncestors walks upward from the removed element's former parent,
// removing containers the removal left hollow. The walk is bounded to
// CleanupDepth levels, stops at the body, and stops at the first ancestor
// that either still shows content or does not look like an ad container.
func (r *Remover) cleanupAncestors(doc dom.Document, parent dom.Element) int {
	removed := 0
	root := doc.Root()
	for depth := 0; depth < r.cfg.CleanupDepth && parent != nil && parent != root; depth++ {
		if parent.HasRenderedContent() {
			break
		}
		if !r.looksLikeAdContainer(parent) {
			break
		}
		next := parent.Parent()
		if parent.Remove() {
			r.log.Debug("removed empty ancestor",
				zap.String("tag", parent.Tag()), zap.String("class", parent.Classes()))
			removed++
		}
		parent = next
	}
	return removed
}

func (r *Remover) looksLikeAdContainer(el dom.Element) bool {
	switch el.Tag() {
	case "div", "aside", "section":
	default:
		return false
	}
	if _, ok := r.kw.Match(el.Classes()); ok {
		return true
	}
	if _, ok := r.kw.Match(el.ID()); ok {
		return true
	}
	return len(el.Children()) == 0
}
