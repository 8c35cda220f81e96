// Package browser drives headless page sessions and bridges the live DOM to
// the scan engine: snapshots flow in, removals and overlays flow back out,
// and CDP insertion events feed the mutation watcher.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// annotateJS stamps snapshot geometry onto every element the extractor may
// consider, so the parsed snapshot carries real layout data.
const annotateJS = `(() => {
	const els = document.querySelectorAll('div, iframe, aside, img, section');
	for (const el of els) {
		const r = el.getBoundingClientRect();
		el.setAttribute('data-rect', Math.round(r.width) + 'x' + Math.round(r.height));
	}
	return els.length;
})()`

// Driver owns the browser allocator pool and opens page sessions.
type Driver struct {
	identity  *Identity
	log       *zap.Logger
	allocPool sync.Pool
}

func NewDriver(log *zap.Logger) *Driver {
	d := &Driver{
		identity: NewIdentity(),
		log:      log,
	}
	d.allocPool.New = func() interface{} {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", ""),
			chromedp.Flag("disable-dev-shm-usage", ""),
			chromedp.UserAgent(d.identity.UserAgent()),
		)
		allocCtx, _ := chromedp.NewExecAllocator(context.Background(), opts...)
		return allocCtx
	}
	return d
}

// Page is one live browser tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	alloc  context.Context
	driver *Driver
	log    *zap.Logger
}

// Open navigates a fresh tab to the URL and waits for the body to render.
func (d *Driver) Open(ctx context.Context, url string, timeout time.Duration) (*Page, error) {
	allocCtx := d.allocPool.Get().(context.Context)
	taskCtx, cancel := chromedp.NewContext(allocCtx)

	navCtx, navCancel := context.WithTimeout(taskCtx, timeout)
	defer navCancel()
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
	)
	if err != nil {
		cancel()
		d.allocPool.Put(allocCtx)
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	return &Page{ctx: taskCtx, cancel: cancel, alloc: allocCtx, driver: d, log: d.log}, nil
}

// Close tears the tab down and returns the allocator to the pool.
func (p *Page) Close() {
	p.cancel()
	p.driver.allocPool.Put(p.alloc)
}

// Snapshot annotates geometry and captures the page's outer HTML.
func (p *Page) Snapshot(timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()

	var pageHTML string
	err := chromedp.Run(ctx,
		chromedp.Evaluate(annotateJS, nil),
		chromedp.OuterHTML("html", &pageHTML),
	)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	return pageHTML, nil
}

// Remove deletes the first element matching the selector from the live page.
func (p *Page) Remove(selector string) error {
	sel, _ := json.Marshal(selector)
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.remove();
		return true;
	})()`, sel)

	ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()
	return chromedp.Run(ctx, chromedp.Evaluate(js, nil))
}

// Overlay renders the transient removal-feedback rectangle over the element,
// fading out over half a second. Best effort only.
func (p *Page) Overlay(selector string) error {
	sel, _ := json.Marshal(selector)
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		const r = el.getBoundingClientRect();
		const o = document.createElement('div');
		o.style.cssText = 'position:fixed;pointer-events:none;z-index:2147483647;'
			+ 'background:rgba(220,53,69,0.35);border:1px solid rgba(220,53,69,0.8);'
			+ 'transition:opacity 0.5s ease-out;'
			+ 'left:' + r.left + 'px;top:' + r.top + 'px;'
			+ 'width:' + r.width + 'px;height:' + r.height + 'px;';
		document.body.appendChild(o);
		requestAnimationFrame(() => { o.style.opacity = '0'; });
		setTimeout(() => o.remove(), 600);
		return true;
	})()`, sel)

	ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()
	return chromedp.Run(ctx, chromedp.Evaluate(js, nil))
}

// WatchInsertions subscribes to DOM child insertions. Each inserted node's
// outer HTML is fetched and handed to onInsert on its own goroutine. The
// returned stop function detaches the subscription; there is no
// finer-grained cancellation.
func (p *Page) WatchInsertions(onInsert func(nodeHTML string)) (func(), error) {
	err := chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := cdpdom.Enable().Do(ctx); err != nil {
			return err
		}
		// Nodes must be known to the DOM agent before insertion events fire
		// for them.
		_, err := cdpdom.GetDocument().WithDepth(-1).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("enable dom events: %w", err)
	}

	watchCtx, stop := context.WithCancel(p.ctx)
	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		ins, ok := ev.(*cdpdom.EventChildNodeInserted)
		if !ok || ins.Node == nil {
			return
		}
		if ins.Node.NodeType != 1 { // elements only
			return
		}
		nodeID := ins.Node.NodeID
		go p.fetchInserted(watchCtx, nodeID, onInsert)
	})
	return stop, nil
}

func (p *Page) fetchInserted(watchCtx context.Context, nodeID cdp.NodeID, onInsert func(string)) {
	if watchCtx.Err() != nil {
		return
	}
	var nodeHTML string
	err := chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		nodeHTML, err = cdpdom.GetOuterHTML().WithNodeID(nodeID).Do(ctx)
		return err
	}))
	if err != nil {
		// Inserted nodes are frequently re-removed by the page before we can
		// read them; that is not worth surfacing.
		p.log.Debug("failed to fetch inserted node", zap.Error(err))
		return
	}
	if watchCtx.Err() != nil {
		return
	}
	onInsert(nodeHTML)
}
