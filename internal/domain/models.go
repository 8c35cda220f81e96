package domain

import "time"

// Candidate is one page element under consideration for removal. Candidates
// are rebuilt on every scan; nothing about them survives a cycle except the
// removed-set entry for elements that were actually taken out.
type Candidate struct {
	Tag           string
	ID            string
	Classes       string
	KeywordHit    bool
	KeywordSource string // "id", "class" or "text"; empty when no hit
	KeywordMatch  string
	IsFrameLike   bool
	Width         int
	Height        int
	Area          int
}

// Features is the wire form of a Candidate sent to the classifier. Field
// names match the backend's expected payload.
type Features struct {
	KeywordHit    bool   `json:"keyWordHit"`
	KeywordSource string `json:"keyWordSource,omitempty"`
	KeywordMatch  string `json:"keyWordMatch,omitempty"`
	IsFrame       bool   `json:"isIframe"`
	Tag           string `json:"tag"`
	ID            string `json:"id"`
	Classes       string `json:"classList"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Area          int    `json:"area"`
}

// Wire returns the candidate's serializable feature set.
func (c Candidate) Wire() Features {
	return Features{
		KeywordHit:    c.KeywordHit,
		KeywordSource: c.KeywordSource,
		KeywordMatch:  c.KeywordMatch,
		IsFrame:       c.IsFrameLike,
		Tag:           c.Tag,
		ID:            c.ID,
		Classes:       c.Classes,
		Width:         c.Width,
		Height:        c.Height,
		Area:          c.Area,
	}
}

// PredictRequest is the classifier request body.
type PredictRequest struct {
	AdCandidates []Features `json:"adCandidates"`
}

// Prediction is the classifier's verdict for one candidate, matched back by
// batch index. Confidence (0-100) is the canonical verdict; IsAd is decoded
// for compatibility but always recomputed against the cycle's threshold.
type Prediction struct {
	Index      int    `json:"index"`
	IsAd       bool   `json:"isAd"`
	Confidence int    `json:"confidence"`
	Selector   string `json:"selector"`
}

// PredictResponse is the classifier response body.
type PredictResponse struct {
	Predictions  []Prediction `json:"predictions"`
	TotalScanned int          `json:"total_scanned"`
	AdsDetected  int          `json:"ads_detected"`
}

// Settings is the per-cycle snapshot of user configuration. The engine never
// writes it.
type Settings struct {
	Enabled             bool     `json:"enabled"`
	ConfidenceThreshold int      `json:"confidenceThreshold"`
	Whitelist           []string `json:"whitelist,omitempty"`
	ShowVisualFeedback  bool     `json:"showVisualFeedback"`
	TrackStatistics     bool     `json:"trackStatistics"`
}

// ScanRequest triggers one full scan cycle against a page.
type ScanRequest struct {
	URL      string    `json:"url"`
	Force    bool      `json:"force"` // bypass the recently-scanned check
	Settings *Settings `json:"settings,omitempty"`
}

// ScanResult is the outcome of one scan cycle. A whitelisted or disabled
// cycle reports zeros with Skipped set.
type ScanResult struct {
	URL          string `json:"url,omitempty"`
	Domain       string `json:"domain,omitempty"`
	AdsBlocked   int    `json:"adsBlocked"`
	TotalScanned int    `json:"totalScanned"`
	Fallback     bool   `json:"fallback,omitempty"`
	Skipped      string `json:"skipped,omitempty"` // "whitelisted" or "disabled"
}

// ScanRecord is a persisted per-cycle statistics row.
type ScanRecord struct {
	URL          string
	Domain       string
	AdsBlocked   int
	TotalScanned int
	Fallback     bool
	CreatedAt    time.Time
}

// DomainStats is the aggregate answer for one domain.
type DomainStats struct {
	Domain     string    `json:"domain"`
	Scans      int       `json:"scans"`
	AdsBlocked int       `json:"ads_blocked"`
	LastScan   time.Time `json:"last_scan"`
}
