package profile

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"imgscraper/pkg/config"
)

// Resolver maps origin keys to site profiles. It is safe for concurrent
// reads once registration is done.
type Resolver struct {
	profiles map[string]SiteProfile
}

// NewResolver returns a resolver seeded with the built-in profiles.
func NewResolver() *Resolver {
	r := &Resolver{profiles: make(map[string]SiteProfile)}
	for _, p := range Builtins() {
		r.profiles[p.MatchKey] = p
	}
	return r
}

// Register adds or replaces a profile after validating it.
func (r *Resolver) Register(p SiteProfile) error {
	p.MatchKey = MatchKey(p.MatchKey)
	if p.MatchKey == "" {
		return fmt.Errorf("profile match key is required")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	r.profiles[p.MatchKey] = p.clone()
	return nil
}

// Resolve returns the profile for key, or the default profile. Keys
// are compared after MatchKey normalization; there is no wildcarding.
func (r *Resolver) Resolve(key string) SiteProfile {
	if p, ok := r.profiles[MatchKey(key)]; ok {
		return p.clone()
	}
	return r.profiles[DefaultKey].clone()
}

// ResolveURL resolves the profile for a page URL's host.
func (r *Resolver) ResolveURL(rawURL string) (SiteProfile, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SiteProfile{}, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Hostname() == "" {
		return SiteProfile{}, fmt.Errorf("url %q has no host", rawURL)
	}
	return r.Resolve(u.Hostname()), nil
}

// Has reports whether key has its own profile.
func (r *Resolver) Has(key string) bool {
	_, ok := r.profiles[MatchKey(key)]
	return ok
}

// Profiles lists registered profiles sorted by key.
func (r *Resolver) Profiles() []SiteProfile {
	out := make([]SiteProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchKey < out[j].MatchKey })
	return out
}

// MatchKey normalizes a profile key: lowercase hostname, with any scheme,
// port or path removed. "default" is kept as is.
func MatchKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || key == DefaultKey {
		return key
	}
	if strings.Contains(key, "://") {
		if u, err := url.Parse(key); err == nil {
			return u.Hostname()
		}
	}
	if i := strings.IndexAny(key, "/:"); i >= 0 {
		key = key[:i]
	}
	return key
}

// FromConfig builds a profile from its config file entry. Unset timings
// fall back to the strategy defaults.
func FromConfig(key string, pc config.ProfileConfig) (SiteProfile, error) {
	strategy, err := ParseStrategy(pc.Strategy)
	if err != nil {
		return SiteProfile{}, fmt.Errorf("profile %q: %w", key, err)
	}

	opts := SequentialDefaults()
	if strategy == IncrementalScroll {
		opts = ScrollDefaults()
	}
	if pc.Normalize != "" {
		fn, err := Normalizer(pc.Normalize)
		if err != nil {
			return SiteProfile{}, fmt.Errorf("profile %q: %w", key, err)
		}
		opts.Normalize = fn
		opts.NormalizeName = pc.Normalize
	}

	o := pc.Options
	setDur(&opts.ImageTimeout, o.ImageTimeout)
	setDur(&opts.PageChangeTimeout, o.PageChangeTimeout)
	setDur(&opts.DownloadDelay, o.DownloadDelay)
	setDur(&opts.ScrollInterval, o.ScrollInterval)
	setDur(&opts.MaxWait, o.MaxWait)
	setDur(&opts.LoadMoreWait, o.LoadMoreWait)
	setDur(&opts.BottomWait, o.BottomWait)
	if o.ScrollStep > 0 {
		opts.ScrollStep = o.ScrollStep
	}

	sel := make(Selectors, len(pc.Selectors))
	for role, css := range pc.Selectors {
		if !knownRoles[Role(role)] {
			return SiteProfile{}, fmt.Errorf("profile %q: unknown selector role %q", key, role)
		}
		sel[Role(role)] = css
	}

	p := SiteProfile{
		MatchKey:  MatchKey(key),
		Selectors: sel,
		Strategy:  strategy,
		Options:   opts,
	}
	return p, p.Validate()
}

func setDur(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// LoadConfig registers every profile from the config file.
func (r *Resolver) LoadConfig(profiles map[string]config.ProfileConfig) error {
	keys := make([]string, 0, len(profiles))
	for k := range profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		p, err := FromConfig(k, profiles[k])
		if err != nil {
			return err
		}
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}
