package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/lpgsim/app"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List sites and routes of the household topology",
	RunE:  runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	hh, err := app.LoadHousehold(cfg)
	if err != nil {
		return err
	}
	topo := hh.Topology
	out := cmd.OutOrStdout()
	for _, s := range topo.Sites() {
		fmt.Fprintf(out, "site %s (%s): %s\n", s.Name, s.GUID, strings.Join(s.Locations, ", "))
	}
	for _, r := range topo.Routes() {
		steps := make([]string, len(r.Steps))
		for i, st := range r.Steps {
			steps[i] = fmt.Sprintf("%s:%s/%.0fm", st.Name, st.CategoryGUID, st.Distance)
		}
		fmt.Fprintf(out, "route %s %s -> %s weight=%.2f [%s]\n", r.Name, r.FromSite, r.ToSite, r.Weight, strings.Join(steps, " "))
	}
	for _, d := range topo.Devices() {
		fmt.Fprintf(out, "device %s (%s) at %s\n", d.Name, d.CategoryGUID, d.CurrentSite)
	}
	return nil
}
