package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/signalsense/pkg/core"
	"github.com/raykavin/signalsense/pkg/metric"
	"github.com/raykavin/signalsense/pkg/series"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	historyRange string
	historyRows  int
)

func buildHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:     "history TICKER",
		Short:   "Show the normalized price history of a ticker",
		Example: "signalsense history AAPL --range 6mo",
		Args:    cobra.ExactArgs(1),
		RunE:    runHistory,
	}

	historyCmd.Flags().StringVarP(&historyRange, "range", "r", string(core.DefaultRange), "History window (1mo, 3mo, 6mo, ytd, 1y)")
	historyCmd.Flags().IntVarP(&historyRows, "rows", "n", 20, "Number of most recent candles to print")

	return historyCmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	rng, err := core.ParseRange(historyRange)
	if err != nil {
		return err
	}

	points, err := newClient().FetchHistory(cmd.Context(), args[0], rng)
	if err != nil {
		return err
	}

	set := series.Normalize(points)
	if set.Empty() {
		fmt.Println("No price history available.")
		return nil
	}

	sma := lookup(set.Overlay(core.SMA20))
	rsi := lookup(set.Overlay(core.RSI))

	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Date", "Open", "High", "Low", "Close", "SMA20", "RSI"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	candles := set.Candles
	if historyRows > 0 && len(candles) > historyRows {
		candles = candles[len(candles)-historyRows:]
	}
	for _, c := range candles {
		table.Append([]string{
			time.Unix(c.Time, 0).UTC().Format(time.DateOnly),
			fmt.Sprintf("%.2f", c.Open),
			fmt.Sprintf("%.2f", c.High),
			fmt.Sprintf("%.2f", c.Low),
			fmt.Sprintf("%.2f", c.Close),
			optional(sma, c.Time, "%.2f"),
			optional(rsi, c.Time, "%.1f"),
		})
	}
	table.SetFooter([]string{
		fmt.Sprintf("%d candles", len(set.Candles)), "", "", "", "",
		fmt.Sprintf("%d", len(sma)), fmt.Sprintf("%d", len(rsi)),
	})
	table.Render()
	fmt.Println(buffer.String())

	closes := lo.Map(set.Candles, func(c core.CandlePoint, _ int) float64 { return c.Close })
	returns := lo.Map(metric.DailyReturns(closes), func(r float64, _ int) float64 { return r * 100 })
	if len(returns) < 2 {
		return nil
	}

	fmt.Println("------ DAILY RETURN (%) -------")
	hist := histogram.Hist(15, returns)
	histogram.Fprint(os.Stdout, hist, histogram.Linear(10))
	fmt.Println()
	return nil
}

func lookup(points []core.SeriesPoint) map[int64]float64 {
	return lo.SliceToMap(points, func(p core.SeriesPoint) (int64, float64) { return p.Time, p.Value })
}

func optional(values map[int64]float64, t int64, format string) string {
	v, ok := values[t]
	if !ok {
		return "-"
	}
	return fmt.Sprintf(format, v)
}
