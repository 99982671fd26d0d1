package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"imgscraper/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
	verbose    bool
)

// exitError ends the process with code after the command has already
// reported the failure.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "imgscraper",
	Short: "Download every image of a web gallery",
	Long: `imgscraper walks an image gallery in a headless browser and downloads
each image once.

Galleries are handled per site:
  - singleImagePaging sites show one image and a "next" control; the
    scraper clicks through until an image repeats.
  - multipleImagesScroll sites show a grid; the scraper scrolls and
    clicks "load more" until no new image appears.

Site profiles are built in and can be added in the config file.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || cmd.Name() == "help" || cmd.Name() == "version" {
			return
		}
		if cmd.Name() == "scrape" && (useTUI || dryRun) {
			return
		}
		ui.PrintLogo()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var ee exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	ui.PrintError(err.Error())
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.imgscraper.yaml or ~/.config/imgscraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress the logo and progress output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print one line per event instead of a progress bar")

	rootCmd.SetVersionTemplate(`imgscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
