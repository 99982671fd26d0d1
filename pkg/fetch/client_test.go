package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "imgscraper/pkg/errors"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/retry"
)

func fastRetry(max int) *retry.Config {
	return &retry.Config{
		MaxAttempts: max,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     retry.DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpegdata"))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, nil, logger.NewNopLogger())
	c.SetHeader("X-Extra", "1")
	u, _ := url.Parse(srv.URL)
	c.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc"}})

	data, err := c.Fetch(context.Background(), srv.URL+"/a.jpg", "https://gallery.example/page/1")
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(data))
	assert.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
	assert.Equal(t, "https://gallery.example/page/1", got.Get("Referer"))
	assert.Equal(t, "1", got.Get("X-Extra"))
	assert.Contains(t, got.Get("Cookie"), "session=abc")
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, fastRetry(3), logger.NewNopLogger())
	data, err := c.Fetch(context.Background(), srv.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, fastRetry(3), logger.NewNopLogger())
	_, err := c.Fetch(context.Background(), srv.URL+"/missing.jpg", "")

	var apiErr *errs.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, errs.ErrorTypeNotFound, apiErr.Type)
	assert.Equal(t, 404, apiErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClient(time.Second, nil, logger.NewNopLogger())
	_, err := c.Fetch(context.Background(), addr+"/a.jpg", "")

	var apiErr *errs.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, errs.ErrorTypeNetwork, apiErr.Type)
}

func TestFetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClient(5*time.Second, fastRetry(3), logger.NewNopLogger())
	_, err := c.Fetch(ctx, srv.URL, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
