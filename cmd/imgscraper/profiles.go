package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"imgscraper/pkg/config"
	"imgscraper/pkg/profile"
	"imgscraper/pkg/ui"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect site profiles",
	Long: `Inspect the site profile table: the built-in profiles plus any
declared under "profiles" in the config file. A page uses the profile
whose key equals its lowercase hostname, or "default".`,
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known site profiles",
	RunE:  runProfilesList,
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <host|url>",
	Short: "Show the profile a host or URL resolves to",
	Example: `  imgscraper profiles show xx.knit.bid
  imgscraper profiles show https://www.imagefap.com/photo/123/`,
	Args: cobra.ExactArgs(1),
	RunE: runProfilesShow,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
}

// loadResolver builds the profile table from the built-ins and the
// config file.
func loadResolver(cfg *config.Config) (*profile.Resolver, error) {
	r := profile.NewResolver()
	if err := r.LoadConfig(cfg.Profiles); err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	return r, nil
}

func validateProfiles(cfg *config.Config) error {
	_, err := loadResolver(cfg)
	return err
}

func runProfilesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	r, err := loadResolver(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSTRATEGY\tNORMALIZE\tSOURCE")
	builtins := profile.Builtins()
	for _, p := range r.Profiles() {
		source := "config"
		if _, ok := builtins[p.MatchKey]; ok {
			if _, overridden := cfg.Profiles[p.MatchKey]; !overridden {
				source = "builtin"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.MatchKey, p.Strategy, p.Options.NormalizeName, source)
	}
	return w.Flush()
}

func runProfilesShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	r, err := loadResolver(cfg)
	if err != nil {
		return err
	}

	key := profile.MatchKey(args[0])
	p := r.Resolve(key)
	if !r.Has(key) {
		ui.PrintWarning("No profile for host, using default", key)
	}
	printProfile(p)
	return nil
}

func printProfile(p profile.SiteProfile) {
	ui.PrintInfo("Profile", p.MatchKey)
	ui.PrintInfo("Strategy", string(p.Strategy))
	ui.PrintInfo("Normalize", p.Options.NormalizeName)

	fmt.Println(ui.Cyan("Selectors:"))
	roles := make([]string, 0, len(p.Selectors))
	for role := range p.Selectors {
		roles = append(roles, string(role))
	}
	sort.Strings(roles)
	for _, role := range roles {
		fmt.Printf("  %-20s %s\n", role, p.Selectors[profile.Role(role)])
	}

	fmt.Println(ui.Cyan("Timing:"))
	o := p.Options
	timings := []struct {
		name string
		d    time.Duration
	}{
		{"image_timeout", o.ImageTimeout},
		{"page_change_timeout", o.PageChangeTimeout},
		{"download_delay", o.DownloadDelay},
		{"scroll_interval", o.ScrollInterval},
		{"max_wait", o.MaxWait},
		{"load_more_wait", o.LoadMoreWait},
		{"bottom_wait", o.BottomWait},
	}
	for _, t := range timings {
		if t.d > 0 {
			fmt.Printf("  %-20s %s\n", t.name, t.d)
		}
	}
	if o.ScrollStepCap > 0 {
		fmt.Printf("  %-20s %d px\n", "scroll_step_cap", o.ScrollStepCap)
	}
}
