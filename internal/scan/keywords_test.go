package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordsMatchesAdTokens(t *testing.T) {
	kw := NewKeywords(100)

	hits := []string{
		"ad",
		"ads",
		"ad-banner",
		"sponsored-content",
		"promo_123",
		"google_ads",
		"google-ad",
		"banner",
		"top-banner-slot",
		"AD-WRAPPER",
		"promotion",
		"promoted",
		"sidebar ads",
	}
	for _, s := range hits {
		_, ok := kw.Match(s)
		assert.True(t, ok, "expected %q to match", s)
	}
}

func TestKeywordsBoundarySafety(t *testing.T) {
	kw := NewKeywords(100)

	misses := []string{
		"header",
		"Header",
		"adapter",
		"Adapter",
		"gradient",
		"roadmap",
		"badge",
		"loading",
		"shadow",
		"adsense-like-name-without-boundary", // "adsense" must not hit via "ads"
		"broadband",
		"",
	}
	for _, s := range misses {
		m, ok := kw.Match(s)
		assert.False(t, ok, "expected %q not to match, got token %q", s, m)
	}
}

func TestKeywordsDetectPriority(t *testing.T) {
	kw := NewKeywords(100)

	// id beats class beats text
	hit, source, match := kw.Detect("ad-slot-1", "sponsor-box", "promo text")
	assert.True(t, hit)
	assert.Equal(t, SourceID, source)
	assert.Equal(t, "ad", match)

	hit, source, match = kw.Detect("main", "sponsor-box", "promo text")
	assert.True(t, hit)
	assert.Equal(t, SourceClass, source)
	assert.Equal(t, "sponsor", match)

	hit, source, match = kw.Detect("main", "content", "promo text")
	assert.True(t, hit)
	assert.Equal(t, SourceText, source)
	assert.Equal(t, "promo", match)
}

func TestKeywordsTextSampleTruncation(t *testing.T) {
	kw := NewKeywords(100)

	// The keyword sits past the 100-character sample boundary.
	long := make([]byte, 150)
	for i := range long {
		long[i] = 'x'
	}
	text := string(long[:120]) + " sponsored"
	hit, _, _ := kw.Detect("main", "content", text)
	assert.False(t, hit)

	// Inside the sample it hits.
	hit, source, _ := kw.Detect("main", "content", "this block is sponsored by someone")
	assert.True(t, hit)
	assert.Equal(t, SourceText, source)
}
