package scan

import "regexp"

// Keyword match sources, in priority order.
const (
	SourceID    = "id"
	SourceClass = "class"
	SourceText  = "text"
)

// adKeywordPattern matches ad-related tokens. Boundaries are hand-rolled
// because \b treats '_' as a word character, and tokens like "promo_123"
// must hit while "header" and "adapter" must not.
var adKeywordPattern = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(ads?|sponsor(?:ed)?|promo(?:tion|ted)?|google[_-]ads?|banner)(?:[^a-z0-9]|$)`)

// Keywords detects the restricted ad-keyword pattern in element attributes
// and text samples.
type Keywords struct {
	re        *regexp.Regexp
	sampleLen int
}

// NewKeywords returns a matcher with the given text-sample length.
func NewKeywords(sampleLen int) *Keywords {
	if sampleLen <= 0 {
		sampleLen = 100
	}
	return &Keywords{re: adKeywordPattern, sampleLen: sampleLen}
}

// Match reports whether s contains an ad keyword, and which token matched.
func (k *Keywords) Match(s string) (string, bool) {
	m := k.re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Detect checks id, then class, then a truncated text sample, in that order.
// The first hit wins; its source label and matched token are retained.
func (k *Keywords) Detect(id, classes, text string) (hit bool, source, match string) {
	if m, ok := k.Match(id); ok {
		return true, SourceID, m
	}
	if m, ok := k.Match(classes); ok {
		return true, SourceClass, m
	}
	sample := text
	if len(sample) > k.sampleLen {
		sample = sample[:k.sampleLen]
	}
	if m, ok := k.Match(sample); ok {
		return true, SourceText, m
	}
	return false, "", ""
}
