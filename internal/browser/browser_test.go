package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgscraper/pkg/config"
	"imgscraper/pkg/logger"
)

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"fonts": true, "stylesheets": true, "images": true}

	assert.True(t, shouldBlock(set, "Font"))
	assert.True(t, shouldBlock(set, "Stylesheet"))
	assert.False(t, shouldBlock(set, "Media"))
	assert.False(t, shouldBlock(set, "Image"), "images are never blocked")
	assert.False(t, shouldBlock(set, "Document"))
}

func TestCookieParams(t *testing.T) {
	cookies := []*http.Cookie{
		{Name: "sid", Value: "abc", Domain: ".example.com", Path: "/"},
		{Name: "pref", Value: "1"},
	}
	params := cookieParams(cookies, "https://example.com/gallery/1")
	require.Len(t, params, 2)

	assert.Equal(t, "sid", params[0].Name)
	assert.Equal(t, ".example.com", params[0].Domain)
	assert.Empty(t, params[0].URL)

	assert.Equal(t, "pref", params[1].Name)
	assert.Equal(t, "https://example.com/gallery/1", params[1].URL)
}

func TestFromConfig(t *testing.T) {
	bc := config.BrowserConfig{
		RemoteURL:      "ws://127.0.0.1:9222/devtools/browser/x",
		Headless:       true,
		Stealth:        true,
		UserAgent:      "ua",
		BlockResources: []string{"fonts"},
	}
	cfg := FromConfig(bc, logger.NewNopLogger())
	assert.Equal(t, bc.RemoteURL, cfg.RemoteURL)
	assert.True(t, cfg.Stealth)

	m := NewManager(cfg)
	assert.Equal(t, 30*time.Second, m.cfg.NavigationTimeout)
	assert.Nil(t, m.Browser())
}

func TestClosedManagerRefusesStart(t *testing.T) {
	m := NewManager(Config{Logger: logger.NewNopLogger()})
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err := m.Start(context.Background())
	assert.Error(t, err)
}

const galleryHTML = `<!doctype html>
<html><head><title>Rod Gallery</title></head>
<body style="margin:0">
<div class="grid"><img src="/img/1.png" width="10" height="10"></div>
<a class="more" href="#" onclick="add(); return false;">more</a>
<div style="height:3000px"></div>
<script>
function add() {
	const img = document.createElement("img");
	img.src = "/img/2.png";
	img.setAttribute("data-src", "/full/2.png");
	document.querySelector(".grid").appendChild(img);
}
</script>
</body></html>`

// 1x1 transparent PNG.
var pixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// TestRodPage drives a real Chrome. Set IMGSCRAPER_ROD_TESTS=1 to run it.
func TestRodPage(t *testing.T) {
	if os.Getenv("IMGSCRAPER_ROD_TESTS") == "" {
		t.Skip("set IMGSCRAPER_ROD_TESTS=1 to run browser tests")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, galleryHTML)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(pixel)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	m := NewManager(Config{Headless: true, Logger: logger.NewNopLogger()})
	defer m.Close()

	p, err := m.Open(ctx, srv.URL+"/", OpenOptions{})
	require.NoError(t, err)
	defer p.Close()

	title, err := p.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Rod Gallery", title)

	img, err := p.QueryImage(ctx, ".grid img")
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, srv.URL+"/img/1.png", img.Src)
	assert.True(t, img.Ready())

	missing, err := p.QueryImage(ctx, ".nothing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	vp, err := p.Viewport(ctx)
	require.NoError(t, err)
	assert.False(t, vp.AtBottom())

	sub, err := p.Observe(ctx, ".grid")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, p.Click(ctx, ".more"))
	select {
	case <-sub.C:
	case <-ctx.Done():
		t.Fatal("no mutation notification after click")
	}

	imgs, err := p.QueryImages(ctx, ".grid img")
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, "/full/2.png", imgs[1].DataSrc)

	require.NoError(t, p.ScrollTo(ctx, 100000))
	vp, err = p.Viewport(ctx)
	require.NoError(t, err)
	assert.True(t, vp.AtBottom())

	assert.Error(t, p.Click(ctx, ".absent"))
}
