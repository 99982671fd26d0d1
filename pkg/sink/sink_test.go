package sink

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePool struct {
	got []Request
	err error
}

func (p *fakePool) Submit(_ context.Context, req Request) error {
	p.got = append(p.got, req)
	return p.err
}

func TestPoolSink(t *testing.T) {
	pool := &fakePool{}
	s := NewPoolSink(pool)

	req := Request{URL: "https://e.com/a.jpg", Filename: "T/a.jpg", Referer: "https://e.com/p"}
	require.NoError(t, s.Emit(context.Background(), req))
	assert.Equal(t, []Request{req}, pool.got)

	pool.err = errors.New("pool is shutting down")
	err := s.Emit(context.Background(), req)
	assert.ErrorIs(t, err, pool.err)
	assert.Contains(t, err.Error(), "https://e.com/a.jpg")
}

func TestListSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewListSink(&buf, "")
	require.NoError(t, s.Emit(context.Background(), Request{URL: "u1", Filename: "f/1.jpg"}))
	require.NoError(t, s.Emit(context.Background(), Request{URL: "u2", Filename: "f/2.jpg"}))
	assert.Equal(t, "u1\tf/1.jpg\nu2\tf/2.jpg\n", buf.String())

	buf.Reset()
	js := NewListSink(&buf, FormatJSON)
	require.NoError(t, js.Emit(context.Background(), Request{URL: "u1", Filename: "f/1.jpg"}))
	assert.JSONEq(t, `{"url":"u1","filename":"f/1.jpg"}`, buf.String())
}

func TestRecorderAndTee(t *testing.T) {
	a := &Recorder{}
	b := &Recorder{Err: errors.New("full")}
	s := Tee(a, b)

	err := s.Emit(context.Background(), Request{URL: "x"})
	assert.EqualError(t, err, "full")
	assert.Equal(t, []string{"x"}, a.URLs())
	assert.Equal(t, []string{"x"}, b.URLs())
}
