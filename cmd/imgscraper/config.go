package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"imgscraper/pkg/config"
	"imgscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage imgscraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IMGSCRAPER_*, .env files included)
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create an example configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging flags, environment, the config
file and defaults. Header values are masked.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const configHeader = `# imgscraper configuration
#
# Every value can also be set with an IMGSCRAPER_ environment variable,
# for example IMGSCRAPER_OUTPUT_DIR or IMGSCRAPER_ENGINE.

`

const profileExample = `
# Extra site profiles, keyed by hostname:
#
# profiles:
#   gallery.example.com:
#     strategy: multipleImagesScroll
#     selectors:
#       imageList: ".grid img"
#       loadMoreControl: ".more a"
#       loadingIndicator: ".spinner"
#     normalize: data-src
#     options:
#       max_wait: 10s
`

// loadConfig loads configuration, applying only the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, changedFlags(cmd))
}

func changedFlags(cmd *cobra.Command) map[string]interface{} {
	fs := cmd.Flags()
	flags := make(map[string]interface{})

	for _, name := range []string{"output", "engine", "remote-url", "user-agent", "log-level"} {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			flags[name] = v
		}
	}
	for _, name := range []string{"headless", "respect-robots", "dry-run", "overwrite", "notifications"} {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			flags[name] = v
		}
	}
	for _, name := range []string{"concurrent", "rate-limit", "max-retries"} {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			flags[name] = v
		}
	}
	if fs.Changed("download-timeout") {
		v, _ := fs.GetDuration("download-timeout")
		flags["download-timeout"] = v
	}
	return flags
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := ".imgscraper.yaml"
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	content := configHeader + string(data) + profileExample
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.PrintSuccess("Configuration file created")
	ui.PrintInfo("Path", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if len(cfg.Download.Headers) > 0 {
		masked := make(map[string]string, len(cfg.Download.Headers))
		for k := range cfg.Download.Headers {
			masked[k] = "********"
		}
		cfg.Download.Headers = masked
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(defaults)"
	}
	ui.PrintInfo("Config file", source)
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return fmt.Errorf("no configuration file found")
	}

	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		ui.PrintError("Configuration is invalid", path)
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Printf("  - %s\n", line)
		}
		return exitError{code: 1}
	}
	if err := validateProfiles(cfg); err != nil {
		ui.PrintError("Configuration is invalid", path)
		fmt.Printf("  - %s\n", err)
		return exitError{code: 1}
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Path", path)
	return nil
}
