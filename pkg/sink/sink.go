// Package sink defines where discovered images go once traversal has
// named them.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Request is one image handed off for download.
type Request struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	// Referer is the page the image was found on.
	Referer string `json:"referer,omitempty"`
}

// Sink receives download requests. Emit must not block on the download
// itself.
type Sink interface {
	Emit(ctx context.Context, req Request) error
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, req Request) error

func (f Func) Emit(ctx context.Context, req Request) error { return f(ctx, req) }

// Submitter queues work on a download backend.
type Submitter interface {
	Submit(ctx context.Context, req Request) error
}

// PoolSink forwards requests to a download worker pool.
type PoolSink struct {
	pool Submitter
}

func NewPoolSink(pool Submitter) *PoolSink {
	return &PoolSink{pool: pool}
}

func (s *PoolSink) Emit(ctx context.Context, req Request) error {
	if err := s.pool.Submit(ctx, req); err != nil {
		return fmt.Errorf("failed to queue %s: %w", req.URL, err)
	}
	return nil
}

// Format selects the ListSink line format.
type Format string

const (
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
)

// ListSink writes one line per request instead of downloading.
type ListSink struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
}

func NewListSink(w io.Writer, format Format) *ListSink {
	if format == "" {
		format = FormatTSV
	}
	return &ListSink{w: w, format: format}
}

func (s *ListSink) Emit(_ context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == FormatJSON {
		return json.NewEncoder(s.w).Encode(req)
	}
	_, err := fmt.Fprintf(s.w, "%s\t%s\n", req.URL, req.Filename)
	return err
}

// Recorder keeps every request in memory.
type Recorder struct {
	mu       sync.Mutex
	requests []Request
	// Err, when set, is returned from every Emit after recording.
	Err error
}

func (r *Recorder) Emit(_ context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return r.Err
}

// Requests returns a copy of everything emitted so far.
func (r *Recorder) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}

// URLs returns the emitted URLs in order.
func (r *Recorder) URLs() []string {
	reqs := r.Requests()
	urls := make([]string, len(reqs))
	for i, req := range reqs {
		urls[i] = req.URL
	}
	return urls
}

// Tee emits to every sink in order and returns the first error.
func Tee(sinks ...Sink) Sink {
	return Func(func(ctx context.Context, req Request) error {
		var first error
		for _, s := range sinks {
			if err := s.Emit(ctx, req); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
