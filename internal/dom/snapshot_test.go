package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, pageHTML string) *Snapshot {
	t.Helper()
	snap, err := Parse(pageHTML)
	require.NoError(t, err)
	return snap
}

func one(t *testing.T, snap *Snapshot, selector string) Element {
	t.Helper()
	els := snap.Select(selector)
	require.Len(t, els, 1, "selector %s", selector)
	return els[0]
}

func TestSelectReturnsStableIdentities(t *testing.T) {
	snap := parse(t, `<html><body><div id="a">x</div></body></html>`)

	// The same node always resolves to the same Element value, so elements
	// work as map keys across separate lookups.
	first := one(t, snap, "#a")
	second := snap.Select("div")[0]
	assert.Equal(t, first, second)

	set := map[Element]struct{}{first: {}}
	_, ok := set[second]
	assert.True(t, ok)
}

func TestRectSources(t *testing.T) {
	snap := parse(t, `<html><body>
		<div id="stamped" data-rect="300x250"></div>
		<img id="attrs" width="728" height="90">
		<div id="styled" style="width: 160px; height: 600px"></div>
		<div id="float" data-rect="299.6x250.2"></div>
		<div id="bare"></div>
	</body></html>`)

	assert.Equal(t, Rect{Width: 300, Height: 250}, one(t, snap, "#stamped").Rect())
	assert.Equal(t, Rect{Width: 728, Height: 90}, one(t, snap, "#attrs").Rect())
	assert.Equal(t, Rect{Width: 160, Height: 600}, one(t, snap, "#styled").Rect())
	assert.Equal(t, Rect{Width: 300, Height: 250}, one(t, snap, "#float").Rect())
	assert.Equal(t, Rect{}, one(t, snap, "#bare").Rect())
}

func TestRectStampWinsOverAttributes(t *testing.T) {
	snap := parse(t, `<html><body>
		<img id="both" data-rect="300x250" width="1" height="1">
	</body></html>`)
	assert.Equal(t, Rect{Width: 300, Height: 250}, one(t, snap, "#both").Rect())
}

func TestAreaAndKnown(t *testing.T) {
	assert.Equal(t, 75000, Rect{Width: 300, Height: 250}.Area())
	assert.Equal(t, 0, Rect{Width: 300}.Area())
	assert.True(t, Rect{Width: 1, Height: 1}.Known())
	assert.False(t, Rect{}.Known())
}

func TestTextSkipsNonRenderingSubtrees(t *testing.T) {
	snap := parse(t, `<html><body>
		<div id="box">visible
			<script>var hidden = 1;</script>
			<style>.x{}</style>
			<span>nested</span>
		</div>
	</body></html>`)

	text := one(t, snap, "#box").Text()
	assert.Contains(t, text, "visible")
	assert.Contains(t, text, "nested")
	assert.NotContains(t, text, "hidden")
	assert.NotContains(t, text, ".x{}")
}

func TestRemoveDetaches(t *testing.T) {
	snap := parse(t, `<html><body><div id="a"><span id="b">x</span></div></body></html>`)

	a := one(t, snap, "#a")
	b := one(t, snap, "#b")
	require.True(t, a.IsAttached())
	require.True(t, b.IsAttached())

	assert.True(t, a.Remove())
	assert.False(t, a.IsAttached())
	// Descendants of a removed subtree are detached too.
	assert.False(t, b.IsAttached())
	assert.Empty(t, snap.Select("#a"))

	// A second removal has no parent left to detach from.
	assert.False(t, a.Remove())
}

func TestIsVisible(t *testing.T) {
	snap := parse(t, `<html><body>
		<div id="plain">x</div>
		<div id="none" style="display: none">x</div>
		<div id="hid" style="visibility: hidden">x</div>
		<div id="hattr" hidden>x</div>
		<div id="zero" data-rect="0x0">x</div>
		<div id="unknown-size">x</div>
	</body></html>`)

	assert.True(t, one(t, snap, "#plain").IsVisible())
	assert.False(t, one(t, snap, "#none").IsVisible())
	assert.False(t, one(t, snap, "#hid").IsVisible())
	assert.False(t, one(t, snap, "#hattr").IsVisible())
	assert.False(t, one(t, snap, "#zero").IsVisible())
	// Unknown geometry counts as visible.
	assert.True(t, one(t, snap, `#unknown-size`).IsVisible())

	detached := one(t, snap, "#plain")
	detached.Remove()
	assert.False(t, detached.IsVisible())
}

func TestHasRenderedContent(t *testing.T) {
	snap := parse(t, `<html><body>
		<div id="text">words</div>
		<div id="ws">
		</div>
		<div id="script-only"><script>1</script></div>
		<div id="hidden-child"><span style="display: none">x</span></div>
		<div id="visible-child"><span>x</span></div>
		<div id="empty"></div>
	</body></html>`)

	assert.True(t, one(t, snap, "#text").HasRenderedContent())
	assert.False(t, one(t, snap, "#ws").HasRenderedContent())
	assert.False(t, one(t, snap, "#script-only").HasRenderedContent())
	assert.False(t, one(t, snap, "#hidden-child").HasRenderedContent())
	assert.True(t, one(t, snap, "#visible-child").HasRenderedContent())
	assert.False(t, one(t, snap, "#empty").HasRenderedContent())
}

func TestFindScopesToSubtree(t *testing.T) {
	snap := parse(t, `<html><body>
		<div id="outer"><iframe id="in"></iframe></div>
		<iframe id="out"></iframe>
	</body></html>`)

	found := one(t, snap, "#outer").Find("iframe")
	require.Len(t, found, 1)
	assert.Equal(t, "in", found[0].ID())

	// Identity is preserved across scoped finds.
	assert.Equal(t, one(t, snap, "#in"), found[0])
}

func TestParentAndChildren(t *testing.T) {
	snap := parse(t, `<html><body>
		<div id="p"><span id="c1">x</span>text<span id="c2">y</span></div>
	</body></html>`)

	p := one(t, snap, "#p")
	kids := p.Children()
	require.Len(t, kids, 2)
	assert.Equal(t, "c1", kids[0].ID())
	assert.Equal(t, "c2", kids[1].ID())
	assert.Equal(t, p, kids[0].Parent())
}

func TestRootIsBody(t *testing.T) {
	snap := parse(t, `<html><body><div id="a">x</div></body></html>`)
	root := snap.Root()
	require.NotNil(t, root)
	assert.Equal(t, "body", root.Tag())
	assert.Equal(t, root, one(t, snap, "#a").Parent())
}

func TestOwner(t *testing.T) {
	snap := parse(t, `<html><body><div id="a">x</div></body></html>`)
	assert.Equal(t, Document(snap), one(t, snap, "#a").Owner())
}
