package profile

import "time"

// DefaultKey names the fallback profile.
const DefaultKey = "default"

func imagefap() SiteProfile {
	return SiteProfile{
		MatchKey: "www.imagefap.com",
		Selectors: Selectors{
			PrimaryImage: "#slideshow > center > div.image-wrapper > span > img",
			NextControl:  "#controls > div > a.next",
		},
		Strategy: SequentialPagination,
		Options:  SequentialDefaults(),
	}
}

func knitBid() SiteProfile {
	opts := ScrollDefaults()
	opts.Normalize = DataSrc
	opts.NormalizeName = "data-src"
	return SiteProfile{
		MatchKey: "xx.knit.bid",
		Selectors: Selectors{
			ImageContainer:   ".article-content",
			ImageList:        ".article-content .item-image img",
			LoadMoreControl:  ".ias_trigger a",
			LoadingIndicator: ".pagination-loading",
			LoadingImage:     `img[src$="static/zde/timg.gif"]`,
		},
		Strategy: IncrementalScroll,
		Options:  opts,
	}
}

// SequentialDefaults are the paging timings used by imagefap.
func SequentialDefaults() Options {
	return Options{
		ImageTimeout:      10 * time.Second,
		PageChangeTimeout: 15 * time.Second,
		DownloadDelay:     500 * time.Millisecond,
		PollInterval:      500 * time.Millisecond,
		SettleDelay:       500 * time.Millisecond,
		Normalize:         Absolute,
		NormalizeName:     "absolute",
	}
}

// ScrollDefaults are the infinite-scroll timings used by knit.bid.
func ScrollDefaults() Options {
	return Options{
		PollInterval:   200 * time.Millisecond,
		ScrollStepCap:  300,
		ScrollInterval: 200 * time.Millisecond,
		MaxWait:        5 * time.Second,
		LoadMoreWait:   10 * time.Second,
		InitialDelay:   1 * time.Second,
		LoadMoreSettle: 1 * time.Second,
		BottomWait:     2 * time.Second,
		ViewportMargin: 100,
		ScrollSettle:   500 * time.Millisecond,
		Normalize:      Absolute,
		NormalizeName:  "absolute",
	}
}

// Builtins returns the compiled-in profiles keyed by match key.
func Builtins() map[string]SiteProfile {
	def := imagefap()
	def.MatchKey = DefaultKey
	return map[string]SiteProfile{
		"www.imagefap.com": imagefap(),
		"xx.knit.bid":      knitBid(),
		DefaultKey:         def,
	}
}
