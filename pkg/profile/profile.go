package profile

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"imgscraper/pkg/page"
)

// Role names a selector's purpose within a profile.
type Role string

const (
	PrimaryImage     Role = "primaryImage"
	NextControl      Role = "nextControl"
	ImageList        Role = "imageList"
	ImageContainer   Role = "imageContainer"
	LoadMoreControl  Role = "loadMoreControl"
	LoadingIndicator Role = "loadingIndicator"
	LoadingImage     Role = "loadingImage"
)

var knownRoles = map[Role]bool{
	PrimaryImage: true, NextControl: true, ImageList: true, ImageContainer: true,
	LoadMoreControl: true, LoadingIndicator: true, LoadingImage: true,
}

// Selectors maps roles to CSS selectors.
type Selectors map[Role]string

// StrategyName selects a traversal strategy.
type StrategyName string

const (
	SequentialPagination StrategyName = "singleImagePaging"
	IncrementalScroll    StrategyName = "multipleImagesScroll"
)

// ParseStrategy accepts the canonical names and the short aliases
// "sequential" and "scroll".
func ParseStrategy(s string) (StrategyName, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case strings.ToLower(string(SequentialPagination)), "sequential", "paging":
		return SequentialPagination, nil
	case strings.ToLower(string(IncrementalScroll)), "scroll":
		return IncrementalScroll, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// NormalizeFunc turns a discovered image into the URL that is
// deduplicated and downloaded.
type NormalizeFunc func(img page.Image, pageURL string) string

// Options tunes strategy timing. Zero durations are legal and mean "no
// wait".
type Options struct {
	ImageTimeout      time.Duration
	PageChangeTimeout time.Duration
	DownloadDelay     time.Duration
	// PollInterval spaces readiness checks.
	PollInterval time.Duration
	// SettleDelay follows a detected page change.
	SettleDelay time.Duration

	// ScrollStep is the scroll distance in pixels; 0 means viewport
	// height minus 100. The effective step never exceeds ScrollStepCap.
	ScrollStep     int
	ScrollStepCap  int
	ScrollInterval time.Duration
	MaxWait        time.Duration
	LoadMoreWait   time.Duration
	InitialDelay   time.Duration
	LoadMoreSettle time.Duration
	BottomWait     time.Duration
	ViewportMargin int
	// ScrollSettle follows scrolling the load-more control into view.
	ScrollSettle time.Duration

	Normalize     NormalizeFunc
	NormalizeName string
}

// SiteProfile is the per-site configuration a traversal runs with.
type SiteProfile struct {
	MatchKey  string
	Selectors Selectors
	Strategy  StrategyName
	Options   Options
}

// Selector returns the selector for role, or "" when unset.
func (p SiteProfile) Selector(r Role) string {
	return p.Selectors[r]
}

// NormalizeURL applies the profile normalizer, defaulting to Absolute.
func (p SiteProfile) NormalizeURL(img page.Image, pageURL string) string {
	if p.Options.Normalize == nil {
		return Absolute(img, pageURL)
	}
	return p.Options.Normalize(img, pageURL)
}

// clone returns a copy whose selector map is not shared.
func (p SiteProfile) clone() SiteProfile {
	sel := make(Selectors, len(p.Selectors))
	for k, v := range p.Selectors {
		sel[k] = v
	}
	p.Selectors = sel
	return p
}

// Validate checks that the strategy's required selectors are present.
func (p SiteProfile) Validate() error {
	var required []Role
	switch p.Strategy {
	case SequentialPagination:
		required = []Role{PrimaryImage, NextControl}
	case IncrementalScroll:
		required = []Role{ImageList}
	default:
		return fmt.Errorf("profile %q: unknown strategy %q", p.MatchKey, p.Strategy)
	}
	for _, r := range required {
		if strings.TrimSpace(p.Selectors[r]) == "" {
			return fmt.Errorf("profile %q: %s selector is required for %s", p.MatchKey, r, p.Strategy)
		}
	}
	return nil
}

// Absolute resolves the image's src against the page URL.
func Absolute(img page.Image, pageURL string) string {
	return resolve(img.Src, pageURL)
}

// DataSrc prefers the lazy-load data-src attribute over src.
func DataSrc(img page.Image, pageURL string) string {
	src := img.DataSrc
	if src == "" {
		src = img.Src
	}
	return resolve(src, pageURL)
}

var normalizers = map[string]NormalizeFunc{
	"absolute": Absolute,
	"data-src": DataSrc,
}

// Normalizer looks up a normalizer by name. Empty means "absolute".
func Normalizer(name string) (NormalizeFunc, error) {
	if name == "" {
		name = "absolute"
	}
	fn, ok := normalizers[name]
	if !ok {
		return nil, fmt.Errorf("unknown normalizer %q", name)
	}
	return fn, nil
}

func resolve(src, pageURL string) string {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}
