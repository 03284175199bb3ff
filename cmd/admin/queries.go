package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"econgrid.ai/internal/persistence/indexdb"
)

func newOverviewCmd(flags *indexFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Summarize the indexed run",
		RunE: run(flags, func(cmd *cobra.Command, r *indexdb.Reader) error {
			o, err := r.Overview(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printHeader(cmd, "Index overview")
			if !o.LastTick.Valid {
				warn.Fprintln(out, "no ticks indexed")
				return nil
			}
			fmt.Fprintf(out, "ticks:         %s (%d..%d)\n", humanize.Comma(int64(o.Ticks)), o.FirstTick.Int64, o.LastTick.Int64)
			fmt.Fprintf(out, "last digest:   %s\n", o.LastDigest.String)
			fmt.Fprintf(out, "trades:        %s\n", humanize.Comma(int64(o.Trades)))
			fmt.Fprintf(out, "harvests:      %s\n", humanize.Comma(int64(o.Harvests)))
			fmt.Fprintf(out, "markets:       %d formed, %d dissolved\n", o.Formations, o.Dissolutions)
			if o.Rejected > 0 {
				warn.Fprintf(out, "rejected:      %s\n", humanize.Comma(int64(o.Rejected)))
			}
			if o.ConvergeFails > 0 {
				warn.Fprintf(out, "convergence failures: %d\n", o.ConvergeFails)
			}
			return nil
		}),
	}
}

func newTicksCmd(flags *indexFlags) *cobra.Command {
	var from uint64
	var limit int
	cmd := &cobra.Command{
		Use:   "ticks",
		Short: "List per-tick summaries",
		RunE: run(flags, func(cmd *cobra.Command, r *indexdb.Reader) error {
			rows, err := r.Ticks(cmd.Context(), from, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TICK\tMODE\tPAIRS\tMARKETS\tTRADES\tHARVESTS\tMOVED\tREJECTED\tDIGEST")
			for _, t := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
					t.Tick, t.Mode, t.ActivePairs, t.Markets, t.Trades, t.Harvests, t.Moved, t.Rejected, shortDigest(t.Digest))
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().Uint64Var(&from, "from", 0, "first tick")
	cmd.Flags().IntVar(&limit, "limit", 50, "result limit")
	return cmd
}

func newTradesCmd(flags *indexFlags) *cobra.Command {
	var (
		agent uint32
		from  uint64
		limit int
	)
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List executed trades",
		RunE: run(flags, func(cmd *cobra.Command, r *indexdb.Reader) error {
			rows, err := r.Trades(cmd.Context(), agent, from, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TICK\tORIGIN\tMARKET\tBUYER\tSELLER\tGOOD\tQTY\tPRICE\tPAYMENT")
			for _, t := range rows {
				market := "-"
				if t.Market != 0 {
					market = fmt.Sprint(t.Market)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
					t.Tick, t.Origin, market, t.Buyer, t.Seller, t.Good, t.Qty, t.Price, t.Payment)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().Uint32Var(&agent, "agent", 0, "only trades involving this agent")
	cmd.Flags().Uint64Var(&from, "from", 0, "first tick")
	cmd.Flags().IntVar(&limit, "limit", 50, "result limit")
	return cmd
}

func newMarketsCmd(flags *indexFlags) *cobra.Command {
	var (
		market uint32
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "markets",
		Short: "List market formations, clears and dissolutions",
		RunE: run(flags, func(cmd *cobra.Command, r *indexdb.Reader) error {
			rows, err := r.MarketEvents(cmd.Context(), market, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TICK\tMARKET\tKIND\tGOOD\tPRICE\tQTY\tPARTICIPANTS\tREASON")
			for _, e := range rows {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
					e.Tick, e.Market, e.Kind, dash(e.Good), dash(e.Price), dash(e.Qty), e.Participants, dash(e.Reason))
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().Uint32Var(&market, "market", 0, "only events for this market")
	cmd.Flags().IntVar(&limit, "limit", 50, "result limit")
	return cmd
}

func newSnapshotsCmd(flags *indexFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List recorded snapshots",
		RunE: run(flags, func(cmd *cobra.Command, r *indexdb.Reader) error {
			rows, err := r.Snapshots(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TICK\tAGENTS\tMARKETS\tCELLS\tSIZE\tPATH")
			for _, s := range rows {
				size := "missing"
				if fi, err := os.Stat(s.Path); err == nil {
					size = humanize.Bytes(uint64(fi.Size()))
				}
				fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%s\t%s\n", s.Tick, s.Agents, s.Markets, s.Cells, size, s.Path)
			}
			return tw.Flush()
		}),
	}
}

func newRunsCmd(flags *indexFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List server runs recorded in the index",
		RunE: run(flags, func(cmd *cobra.Command, r *indexdb.Reader) error {
			rows, err := r.Runs(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tWORLD\tSEED\tSTART TICK\tSTARTED")
			for _, rr := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", rr.RunID, rr.WorldID, rr.Seed, rr.StartTick, startedAgo(rr.StartedAt))
			}
			return tw.Flush()
		}),
	}
}

func startedAgo(s string) string {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return humanize.Time(t)
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
