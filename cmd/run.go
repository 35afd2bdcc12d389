package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/lpgsim/app"
	"github.com/kilianp07/lpgsim/infra/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate the configured household",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	summary, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d steps, %d activations in %s\n", summary.RunID, summary.Steps, summary.Activations, summary.Elapsed)
	for _, lt := range summary.LoadTypes {
		fmt.Fprintf(out, "  %-20s total=%.3f mean=%.3f peak=%.3f energy=%.3f\n", lt.Name, lt.Total, lt.Mean, lt.Peak, lt.Energy)
	}
	fmt.Fprintf(out, "  trips: routed=%d same_site=%d blocked=%d abandoned=%d\n",
		summary.TripsRouted, summary.TripsSameSite, summary.TripsBlocked, summary.TripsAbandoned)
	return nil
}
