package browser

import (
	"context"
	"time"

	"go.uber.org/zap"

	"adscrub/internal/config"
	"adscrub/internal/dom"
	"adscrub/internal/domain"
	"adscrub/internal/scan"
)

// Runner executes full scan cycles against live pages: open, snapshot,
// scan, mirror removals back into the tab, then keep watching the DOM for
// late insertions until the watch window closes.
type Runner struct {
	cfg     *config.Config
	driver  *Driver
	scanner *scan.Scanner
	log     *zap.Logger
}

func NewRunner(cfg *config.Config, driver *Driver, scanner *scan.Scanner, log *zap.Logger) *Runner {
	return &Runner{cfg: cfg, driver: driver, scanner: scanner, log: log}
}

// ScanURL runs one page scan end to end and returns the cycle result.
func (r *Runner) ScanURL(ctx context.Context, pageURL string, settings domain.Settings) (domain.ScanResult, error) {
	scanTimeout := time.Duration(r.cfg.ScanTimeout) * time.Second

	page, err := r.driver.Open(ctx, pageURL, scanTimeout)
	if err != nil {
		return domain.ScanResult{URL: pageURL}, err
	}
	defer page.Close()

	pageHTML, err := page.Snapshot(scanTimeout)
	if err != nil {
		return domain.ScanResult{URL: pageURL}, err
	}
	snap, err := dom.Parse(pageHTML)
	if err != nil {
		return domain.ScanResult{URL: pageURL}, err
	}

	hooks := scan.Hooks{
		Apply: func(sel string) {
			if err := page.Remove(sel); err != nil {
				r.log.Debug("live removal failed", zap.String("selector", sel), zap.Error(err))
			}
		},
		Overlay: func(sel string, _ dom.Rect) {
			if err := page.Overlay(sel); err != nil {
				r.log.Debug("overlay failed", zap.String("selector", sel), zap.Error(err))
			}
		},
	}
	sess := r.scanner.NewSession(snap, hooks)

	result, err := sess.Run(ctx, pageURL, settings)
	if err != nil || result.Skipped != "" {
		return result, err
	}

	if r.cfg.WatchWindowMs > 0 {
		r.watch(ctx, page, sess, settings)
	}
	return result, nil
}

// watch keeps the tab open for the configured window, feeding inserted
// subtrees through the debounced watcher into the single-candidate path.
func (r *Runner) watch(ctx context.Context, page *Page, sess *scan.Session, settings domain.Settings) {
	debounce := time.Duration(r.cfg.DebounceMs) * time.Millisecond

	watcher := scan.NewWatcher(debounce, func(batch []dom.Element) {
		for _, el := range sess.ExpandInserted(batch) {
			pctx, cancel := context.WithTimeout(context.Background(),
				time.Duration(r.cfg.ClassifierTimeout+5)*time.Second)
			sess.ProcessInserted(pctx, el, settings)
			cancel()
		}
	}, r.log)
	defer watcher.Close()

	stop, err := page.WatchInsertions(func(nodeHTML string) {
		mini, err := dom.Parse(nodeHTML)
		if err != nil {
			r.log.Debug("failed to parse inserted subtree", zap.Error(err))
			return
		}
		// The fragment parser wraps the node in html/body; the inserted
		// element is the body's first element child.
		children := mini.Root().Children()
		if len(children) == 0 {
			return
		}
		watcher.Enqueue(children[0])
	})
	if err != nil {
		r.log.Warn("could not watch DOM insertions", zap.Error(err))
		return
	}
	defer stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(r.cfg.WatchWindowMs) * time.Millisecond):
	}
	// Give the last debounced batch a chance to dispatch before the page
	// closes.
	time.Sleep(debounce)
}
