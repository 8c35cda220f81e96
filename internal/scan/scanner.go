package scan

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"adscrub/internal/classify"
	"adscrub/internal/dom"
	"adscrub/internal/domain"
	"adscrub/internal/monitoring"
)

// Classifier is the remote scoring collaborator.
type Classifier interface {
	Predict(ctx context.Context, feats []domain.Features) (*domain.PredictResponse, error)
}

// Whitelist answers whether a domain is exempt from all blocking.
type Whitelist interface {
	IsWhitelisted(ctx context.Context, domain string) (bool, error)
}

// Stats receives one record per completed cycle. Delivery is fire-and-forget;
// a statistics failure never affects the scan outcome.
type Stats interface {
	Record(ctx context.Context, rec domain.ScanRecord) error
}

// Scanner holds the shared pipeline dependencies. Per-page state lives in a
// Session.
type Scanner struct {
	cfg        Config
	kw         *Keywords
	classifier Classifier
	whitelist  Whitelist
	stats      Stats
	metrics    *monitoring.Metrics
	log        *zap.Logger
}

func NewScanner(cfg Config, classifier Classifier, wl Whitelist, stats Stats, m *monitoring.Metrics, log *zap.Logger) *Scanner {
	return &Scanner{
		cfg:        cfg,
		kw:         NewKeywords(cfg.TextSampleLen),
		classifier: classifier,
		whitelist:  wl,
		stats:      stats,
		metrics:    m,
		log:        log,
	}
}

// Keywords exposes the scanner's keyword matcher for collaborators that
// share its pattern (the insertion expander, tests).
func (s *Scanner) Keywords() *Keywords {
	return s.kw
}

// Session is the per-page scan state: the parsed document, the removal
// executor wired to that page, and the set of elements already removed.
// DOM-touching phases are serialized on one mutex so a full-page cycle and
// mutation-triggered micro-scans can interleave their network waits but
// never mutate the document simultaneously. The removed set only ever
// grows and is dropped with the session.
type Session struct {
	scanner *Scanner
	doc     dom.Document
	remover *Remover

	mu      sync.Mutex
	removed map[dom.Element]struct{}
}

// NewSession binds the scanner to one page.
func (s *Scanner) NewSession(doc dom.Document, hooks Hooks) *Session {
	return &Session{
		scanner: s,
		doc:     doc,
		remover: NewRemover(s.cfg, s.kw, hooks, s.log),
		removed: make(map[dom.Element]struct{}),
	}
}

// Run executes one full scan cycle: whitelist gate, extraction, remote
// scoring (degrading to local heuristics when the classifier fails),
// decision and removal in prediction order, then a fire-and-forget
// statistics event. Per-candidate failures are contained to the candidate.
func (sess *Session) Run(ctx context.Context, pageURL string, settings domain.Settings) (domain.ScanResult, error) {
	s := sess.scanner
	host := hostOf(pageURL)
	result := domain.ScanResult{URL: pageURL, Domain: host}

	if !settings.Enabled {
		s.metrics.IncScan("disabled")
		result.Skipped = "disabled"
		return result, nil
	}
	if sess.isWhitelisted(ctx, host, settings) {
		s.log.Info("domain whitelisted, skipping scan", zap.String("domain", host))
		s.metrics.IncScan("whitelisted")
		result.Skipped = "whitelisted"
		return result, nil
	}

	sess.mu.Lock()
	cands := Extract(sess.doc, 0, s.kw, s.cfg)
	sess.mu.Unlock()
	result.TotalScanned = len(cands)

	if len(cands) == 0 {
		s.metrics.IncScan("completed")
		sess.emitStats(result, settings)
		return result, nil
	}

	feats := make([]domain.Features, len(cands))
	for i, c := range cands {
		feats[i] = c.Wire()
	}

	start := time.Now()
	resp, err := s.classifier.Predict(ctx, feats)
	s.metrics.ObserveClassifierLatency(time.Since(start))

	if err != nil {
		sess.logClassifierFailure(err)
		result.Fallback = true
		result.AdsBlocked = sess.runFallback(cands, settings)
		s.metrics.IncScan("fallback")
	} else {
		result.AdsBlocked = sess.applyPredictions(cands, resp.Predictions, settings)
		s.metrics.IncScan("completed")
	}

	s.metrics.AddAdsBlocked(result.AdsBlocked)
	sess.emitStats(result, settings)
	return result, nil
}

// applyPredictions walks predictions strictly in list order; the index
// correspondence was fixed at batch-send time.
func (sess *Session) applyPredictions(cands []Candidate, preds []domain.Prediction, settings domain.Settings) int {
	s := sess.scanner
	blocked := 0
	for _, p := range preds {
		if p.Index < 0 || p.Index >= len(cands) {
			s.log.Warn("prediction index out of range", zap.Int("index", p.Index))
			continue
		}
		cand := cands[p.Index]
		if sess.alreadyRemoved(cand.El) {
			continue
		}
		d := Decide(cand.Candidate, p, settings, s.cfg)
		s.metrics.IncDecision(d.Reason)
		if !d.Remove {
			s.log.Debug("keeping element",
				zap.String("selector", p.Selector), zap.String("reason", d.Reason),
				zap.Int("confidence", p.Confidence))
			continue
		}
		if sess.removeCandidate(cand, p.Selector, settings) {
			blocked++
		}
	}
	return blocked
}

// runFallback applies pure local-heuristic decisions when the remote call
// failed for the cycle.
func (sess *Session) runFallback(cands []Candidate, settings domain.Settings) int {
	s := sess.scanner
	blocked := 0
	for _, cand := range cands {
		if sess.alreadyRemoved(cand.El) {
			continue
		}
		d := DecideFallback(cand.Candidate)
		s.metrics.IncDecision(d.Reason)
		if !d.Remove {
			continue
		}
		if sess.removeCandidate(cand, "", settings) {
			blocked++
		}
	}
	return blocked
}

// ProcessInserted runs the single-candidate path for one element inserted
// after the initial scan. Failures are logged, never surfaced: high-churn
// pages would otherwise cascade noise.
func (sess *Session) ProcessInserted(ctx context.Context, el dom.Element, settings domain.Settings) int {
	s := sess.scanner
	if !settings.Enabled || el == nil {
		return 0
	}
	if sess.alreadyRemoved(el) || !el.IsAttached() {
		return 0
	}

	sess.mu.Lock()
	cand := Build(el, s.kw)
	sess.mu.Unlock()

	resp, err := s.classifier.Predict(ctx, []domain.Features{cand.Wire()})
	if err != nil {
		sess.logClassifierFailure(err)
		d := DecideFallback(cand.Candidate)
		s.metrics.IncDecision(d.Reason)
		if !d.Remove {
			return 0
		}
		if sess.removeCandidate(cand, "", settings) {
			s.metrics.AddAdsBlocked(1)
			return 1
		}
		return 0
	}
	if len(resp.Predictions) == 0 {
		return 0
	}

	d := Decide(cand.Candidate, resp.Predictions[0], settings, s.cfg)
	s.metrics.IncDecision(d.Reason)
	if !d.Remove {
		return 0
	}
	if sess.removeCandidate(cand, resp.Predictions[0].Selector, settings) {
		s.metrics.AddAdsBlocked(1)
		return 1
	}
	return 0
}

// ExpandInserted collects an inserted element plus its frame and
// ad-pattern-matching descendants into a deduplicated working set.
func (sess *Session) ExpandInserted(els []dom.Element) []dom.Element {
	seen := make(map[dom.Element]struct{})
	var out []dom.Element
	add := func(el dom.Element) {
		if el == nil {
			return
		}
		if _, dup := seen[el]; dup {
			return
		}
		seen[el] = struct{}{}
		out = append(out, el)
	}
	sub := "iframe, frame, embed, " + strings.Join(adPatternSelectors, ", ")
	sess.mu.Lock()
	defer sess.mu.Unlock()
	for _, el := range els {
		add(el)
		for _, d := range el.Find(sub) {
			add(d)
		}
	}
	return out
}

func (sess *Session) removeCandidate(cand Candidate, selector string, settings domain.Settings) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	// Inserted subtrees carry their own document; resolve there, not in the
	// stale full-page snapshot.
	doc := sess.doc
	if cand.El != nil && cand.El.Owner() != nil {
		doc = cand.El.Owner()
	}
	n := sess.remover.Remove(doc, cand, selector, settings.ShowVisualFeedback)
	if n == 0 {
		return false
	}
	if cand.El != nil {
		sess.removed[cand.El] = struct{}{}
	}
	return true
}

func (sess *Session) alreadyRemoved(el dom.Element) bool {
	if el == nil {
		return false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	_, ok := sess.removed[el]
	return ok
}

func (sess *Session) isWhitelisted(ctx context.Context, host string, settings domain.Settings) bool {
	for _, d := range settings.Whitelist {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	s := sess.scanner
	if s.whitelist == nil {
		return false
	}
	ok, err := s.whitelist.IsWhitelisted(ctx, host)
	if err != nil {
		// An unreachable whitelist store must not block scanning.
		s.log.Warn("whitelist lookup failed", zap.String("domain", host), zap.Error(err))
		return false
	}
	return ok
}

func (sess *Session) logClassifierFailure(err error) {
	s := sess.scanner
	switch {
	case errors.Is(err, classify.ErrTimeout):
		s.log.Warn("classifier timeout, using local heuristics", zap.Error(err))
		s.metrics.IncError("classifier_timeout")
	case errors.Is(err, classify.ErrNoCandidates):
		// Empty batch; nothing to score.
	default:
		s.log.Warn("classifier unavailable, using local heuristics", zap.Error(err))
		s.metrics.IncError("classifier_failed")
	}
}

func (sess *Session) emitStats(result domain.ScanResult, settings domain.Settings) {
	s := sess.scanner
	if !settings.TrackStatistics || s.stats == nil {
		return
	}
	rec := domain.ScanRecord{
		URL:          result.URL,
		Domain:       result.Domain,
		AdsBlocked:   result.AdsBlocked,
		TotalScanned: result.TotalScanned,
		Fallback:     result.Fallback,
		CreatedAt:    time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.stats.Record(ctx, rec); err != nil {
			s.log.Warn("failed to record statistics", zap.Error(err))
			s.metrics.IncError("stats_failed")
		}
	}()
}

func hostOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return pageURL
	}
	return u.Hostname()
}
