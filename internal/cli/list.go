package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/refcheck/internal/config"
	"github.com/raphaelgruber/refcheck/internal/db"
	"github.com/raphaelgruber/refcheck/internal/metrics"
	"github.com/raphaelgruber/refcheck/internal/service"
)

type listOptions struct {
	database string
	side     string
	counts   bool
}

func newListCmd(a *app) *cobra.Command {
	var lo listOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the reference databases of one snapshot",
		Long: `List the reference databases of one snapshot by canonical name, in the
order a comparison visits them.

The snapshot's connection settings are taken from the current or previous
keys of config.properties, selected with --side.

Examples:
  refcheck list --database test_reactome_91
  refcheck list --database test_reactome_90 --side previous --counts`,
		Args: cobra.NoArgs,
		RunE: a.withCleanup(func(cmd *cobra.Command, args []string) error {
			return a.runList(cmd, lo)
		}),
	}

	cmd.Flags().StringVarP(&lo.database, "database", "d", "", "snapshot name")
	cmd.Flags().StringVar(&lo.side, "side", string(config.Current), "settings to use: current or previous")
	cmd.Flags().BoolVar(&lo.counts, "counts", false, "also print referrer counts")
	_ = cmd.MarkFlagRequired("database")
	return cmd
}

func (a *app) runList(cmd *cobra.Command, lo listOptions) error {
	ctx := cmd.Context()

	side, err := config.ParseSide(lo.side)
	if err != nil {
		return &config.ConfigurationError{Source: "--side", Err: err}
	}
	snapCfg, err := a.cfg.Snapshot(side, lo.database)
	if err != nil {
		return err
	}

	snap, err := db.Open(ctx, snapCfg, a.logger)
	if err != nil {
		return err
	}
	defer a.closeSnapshot(ctx, snap)

	collector := metrics.NewCollector()
	svc := service.NewComparisonService(snap, snap, service.Options{Metrics: collector, Logger: a.logger})
	catalog, err := svc.LoadCatalog(ctx, snap)
	if err != nil {
		return err
	}

	if catalog.Len() == 0 {
		fmt.Fprintln(a.stdout, "No reference databases found.")
		return nil
	}

	fmt.Fprintf(a.stdout, "Reference databases in %s (%d):\n\n", snap.Name(), catalog.Len())
	for _, name := range catalog.Names() {
		rd, _ := catalog.Get(name)
		label, err := service.DisplayLabel(rd)
		if err != nil {
			return err
		}
		if !lo.counts {
			fmt.Fprintf(a.stdout, "- %s\n", label)
			continue
		}
		n, err := svc.ReferrerCount(ctx, snap, rd)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "- %s (%d)\n", label, n)
	}

	a.logger.Debug("query metrics", "metrics", collector.Snapshot())
	return nil
}
