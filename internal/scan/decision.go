package scan

import (
	"strings"

	"adscrub/internal/domain"
)

// Decision reasons, also used as metrics labels.
const (
	ReasonBelowThreshold  = "below_threshold"
	ReasonGenericSelector = "generic_selector"
	ReasonWeakSignal      = "weak_signal"
	ReasonConfirmed       = "confirmed"
	ReasonFallbackKeyword = "fallback_keyword"
	ReasonFallbackNoMatch = "fallback_no_keyword"
)

// Decision is the verdict for one candidate.
type Decision struct {
	Remove bool
	Reason string
}

// Decide combines the remote prediction with local signals. The checks are a
// safety cascade and the order is load-bearing: threshold and selector shape
// are vetted before the strong-signal requirement, so a confident prediction
// with a generic selector or no corroborating local signal is never honored.
func Decide(c domain.Candidate, p domain.Prediction, st domain.Settings, cfg Config) Decision {
	if p.Confidence < st.ConfidenceThreshold {
		return Decision{Reason: ReasonBelowThreshold}
	}
	sel := strings.TrimSpace(p.Selector)
	if sel == "" || isGenericSelector(sel, cfg) {
		return Decision{Reason: ReasonGenericSelector}
	}
	if cfg.RequireStrongSignal && !c.KeywordHit && !c.IsFrameLike {
		return Decision{Reason: ReasonWeakSignal}
	}
	return Decision{Remove: true, Reason: ReasonConfirmed}
}

// DecideFallback is the local-only path used when the classifier is
// unreachable. It is strictly more conservative: only a keyword hit removes;
// confidence, geometry and frame containment are never consulted.
func DecideFallback(c domain.Candidate) Decision {
	if c.KeywordHit {
		return Decision{Remove: true, Reason: ReasonFallbackKeyword}
	}
	return Decision{Reason: ReasonFallbackNoMatch}
}

func isGenericSelector(sel string, cfg Config) bool {
	lower := strings.ToLower(sel)
	for _, skip := range cfg.SkipSelectors {
		if lower == skip {
			return true
		}
	}
	return false
}
