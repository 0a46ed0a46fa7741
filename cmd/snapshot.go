package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/chxlky/trello-citydash/internal/dashboard"
	"github.com/chxlky/trello-citydash/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	snapshotCity     string
	snapshotText     string
	snapshotDesigner string
	snapshotFilter   string
	snapshotCompact  bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Run the pipeline once and print the snapshot as JSON",
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotCity, "city", "", "Only include this city")
	snapshotCmd.Flags().StringVarP(&snapshotText, "query", "q", "", "Free text filter")
	snapshotCmd.Flags().StringVar(&snapshotDesigner, "designer", "", "Designer filter")
	snapshotCmd.Flags().StringVar(&snapshotFilter, "filter", "all", "Quick filter: all|overdue|upcoming|noDue|undefined")
	snapshotCmd.Flags().BoolVar(&snapshotCompact, "compact", false, "Print JSON on a single line")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	quick, err := dashboard.ParseQuickFilter(snapshotFilter)
	if err != nil {
		return err
	}

	m := metrics.NewWithRegistry(prometheus.NewRegistry(), logger)
	producer := dashboard.NewProducer(newTrelloClient(cfg, m, logger), cfg.DashboardOptions(), logger.Named("pipeline"))

	snap, err := producer.Produce(cmd.Context())
	if err != nil {
		return fmt.Errorf("building snapshot: %w", err)
	}

	query := dashboard.Query{Text: snapshotText, Designer: snapshotDesigner, Quick: quick, City: snapshotCity}
	if !query.IsZero() {
		view := dashboard.Filter(snap, query)
		snap.Cities = view.Cities
		snap.Totals = view.Totals
		snap.LabelCounters = view.LabelCounters
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if !snapshotCompact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(snap)
}
