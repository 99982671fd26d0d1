package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"imgscraper/pkg/logger"
	"imgscraper/pkg/page"
)

var _ page.Page = (*Page)(nil)

// Page is a loaded Chrome tab. All DOM access goes through Runtime.evaluate
// so element handles never outlive a single call.
type Page struct {
	rp     *rod.Page
	log    logger.Logger
	router *rod.HijackRouter

	mu      sync.Mutex
	watches map[string]chan struct{}
	nextID  int
	bound   bool
	stop    context.CancelFunc
}

func newPage(rp *rod.Page, log logger.Logger) *Page {
	return &Page{rp: rp, log: log, watches: make(map[string]chan struct{})}
}

// Close stops mutation delivery, the request router and the tab.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
	p.watches = make(map[string]chan struct{})
	p.mu.Unlock()

	if p.router != nil {
		_ = p.router.Stop()
	}
	return p.rp.Close()
}

const (
	jsURL   = `() => location.href`
	jsTitle = `() => document.title`

	jsImage = `(sel) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		return {
			src: el.src || "",
			dataSrc: el.getAttribute("data-src") || "",
			complete: !!el.complete,
			naturalWidth: el.naturalWidth || 0,
			naturalHeight: el.naturalHeight || 0,
		};
	}`

	jsImages = `(sel) => Array.from(document.querySelectorAll(sel)).map(el => ({
		src: el.src || "",
		dataSrc: el.getAttribute("data-src") || "",
		complete: !!el.complete,
		naturalWidth: el.naturalWidth || 0,
		naturalHeight: el.naturalHeight || 0,
	}))`

	jsCount = `(sel) => document.querySelectorAll(sel).length`

	jsInView = `(el) => {
		const r = el.getBoundingClientRect();
		return r.top >= 0 && r.left >= 0 &&
			r.bottom <= (window.innerHeight || document.documentElement.clientHeight) &&
			r.right <= (window.innerWidth || document.documentElement.clientWidth);
	}`

	jsViewport = `() => ({
		height: window.innerHeight,
		scrollY: Math.round(window.scrollY),
		documentHeight: document.body ? document.body.offsetHeight : 0,
	})`

	jsClick = `(sel) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		el.click();
		return true;
	}`

	jsScrollIntoView = `(sel, margin) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		const top = el.getBoundingClientRect().top + window.scrollY - margin;
		window.scrollTo(0, top);
		return true;
	}`

	jsScrollBy = `(dy) => window.scrollBy(0, dy)`
	jsScrollTo = `(y) => window.scrollTo(0, y)`
)

type imageJSON struct {
	Src           string  `json:"src"`
	DataSrc       string  `json:"dataSrc"`
	Complete      bool    `json:"complete"`
	NaturalWidth  float64 `json:"naturalWidth"`
	NaturalHeight float64 `json:"naturalHeight"`
}

func (j imageJSON) image() page.Image {
	return page.Image{
		Src:           j.Src,
		DataSrc:       j.DataSrc,
		Complete:      j.Complete,
		NaturalWidth:  int(j.NaturalWidth),
		NaturalHeight: int(j.NaturalHeight),
	}
}

func (p *Page) eval(ctx context.Context, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	res, err := p.rp.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, fmt.Errorf("browser: eval: %w", err)
	}
	return res, nil
}

func (p *Page) evalInto(ctx context.Context, dst interface{}, js string, args ...interface{}) error {
	res, err := p.eval(ctx, js, args...)
	if err != nil {
		return err
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("browser: read result: %w", err)
	}
	return json.Unmarshal(raw, dst)
}

func (p *Page) URL(ctx context.Context) (string, error) {
	res, err := p.eval(ctx, jsURL)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	res, err := p.eval(ctx, jsTitle)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (p *Page) QueryImage(ctx context.Context, selector string) (*page.Image, error) {
	var img *imageJSON
	if err := p.evalInto(ctx, &img, jsImage, selector); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, nil
	}
	out := img.image()
	return &out, nil
}

func (p *Page) QueryImages(ctx context.Context, selector string) ([]page.Image, error) {
	var imgs []imageJSON
	if err := p.evalInto(ctx, &imgs, jsImages, selector); err != nil {
		return nil, err
	}
	out := make([]page.Image, len(imgs))
	for i, img := range imgs {
		out[i] = img.image()
	}
	return out, nil
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	res, err := p.eval(ctx, jsCount, selector)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (p *Page) CountInViewport(ctx context.Context, selector string) (int, error) {
	js := `(sel) => { const inView = ` + jsInView + `;
		return Array.from(document.querySelectorAll(sel)).filter(inView).length; }`
	res, err := p.eval(ctx, js, selector)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (p *Page) InViewport(ctx context.Context, selector string) (bool, error) {
	js := `(sel) => { const inView = ` + jsInView + `;
		const el = document.querySelector(sel);
		return el ? inView(el) : false; }`
	res, err := p.eval(ctx, js, selector)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (p *Page) Viewport(ctx context.Context) (page.Viewport, error) {
	var v struct {
		Height         float64 `json:"height"`
		ScrollY        float64 `json:"scrollY"`
		DocumentHeight float64 `json:"documentHeight"`
	}
	if err := p.evalInto(ctx, &v, jsViewport); err != nil {
		return page.Viewport{}, err
	}
	return page.Viewport{
		Height:         int(v.Height),
		ScrollY:        int(v.ScrollY),
		DocumentHeight: int(v.DocumentHeight),
	}, nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	res, err := p.eval(ctx, jsClick, selector)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return fmt.Errorf("browser: click: no element matches %q", selector)
	}
	return nil
}

func (p *Page) ScrollIntoView(ctx context.Context, selector string, margin int) error {
	res, err := p.eval(ctx, jsScrollIntoView, selector, margin)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return fmt.Errorf("browser: scroll: no element matches %q", selector)
	}
	return nil
}

func (p *Page) ScrollBy(ctx context.Context, dy int) error {
	_, err := p.eval(ctx, jsScrollBy, dy)
	return err
}

func (p *Page) ScrollTo(ctx context.Context, y int) error {
	_, err := p.eval(ctx, jsScrollTo, y)
	return err
}
