package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTarget(t *testing.T) {
	got, err := normalizeTarget("  www.imagefap.com/photo/1/ ")
	require.NoError(t, err)
	assert.Equal(t, "https://www.imagefap.com/photo/1/", got)

	got, err = normalizeTarget("http://xx.knit.bid/article/42/")
	require.NoError(t, err)
	assert.Equal(t, "http://xx.knit.bid/article/42/", got)

	_, err = normalizeTarget("ftp://example.com/x")
	assert.Error(t, err)
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "xx.knit.bid", hostOf("https://xx.knit.bid:443/a"))
	assert.Equal(t, "", hostOf("::bad"))
}

func TestChangedFlagsOnlyIncludesSetFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	f := cmd.Flags()
	f.String("output", "", "")
	f.String("engine", "", "")
	f.Int("concurrent", 3, "")
	f.Bool("dry-run", false, "")
	f.Duration("download-timeout", 30*time.Second, "")

	require.NoError(t, f.Parse([]string{"--engine", "static", "--dry-run", "--download-timeout", "5s"}))

	flags := changedFlags(cmd)
	assert.Equal(t, "static", flags["engine"])
	assert.Equal(t, true, flags["dry-run"])
	assert.Equal(t, 5*time.Second, flags["download-timeout"])
	assert.NotContains(t, flags, "output")
	assert.NotContains(t, flags, "concurrent")
}

func TestExitError(t *testing.T) {
	assert.Equal(t, "exit status 1", exitError{code: 1}.Error())
}
