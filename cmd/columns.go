package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/lpgsim/app"
)

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "List the output columns of every load type",
	RunE:  runColumns,
}

func init() {
	rootCmd.AddCommand(columnsCmd)
}

func runColumns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	hh, err := app.LoadHousehold(cfg)
	if err != nil {
		return err
	}
	reg, err := app.Columns(hh)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, lt := range reg.LoadTypes() {
		fmt.Fprintf(out, "%s [%s]\n", lt.Name, lt.UnitOfPower)
		for _, e := range reg.Entries(lt.GUID) {
			fmt.Fprintf(out, "  %3d  %-24s %-16s %s\n", e.Column, e.Name, e.LocationName, e.Key.DeviceType)
		}
	}
	return nil
}
