package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/signalsense/pkg/animation"
	"github.com/raykavin/signalsense/pkg/core"
	"github.com/raykavin/signalsense/pkg/upstream"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var noAnimate bool

func buildPredictCmd() *cobra.Command {
	predictCmd := &cobra.Command{
		Use:     "predict TICKER",
		Short:   "Request a prediction for a ticker",
		Example: "signalsense predict AAPL",
		Args:    cobra.ExactArgs(1),
		RunE:    runPredict,
	}

	predictCmd.Flags().BoolVar(&noAnimate, "no-animate", false, "Print the result without the confidence animation")

	return predictCmd
}

func runPredict(cmd *cobra.Command, args []string) error {
	prediction, err := newClient().FetchSignal(cmd.Context(), args[0])
	if err != nil {
		log.WithError(err).Debug("prediction failed")
		return errors.New(upstream.MessageOf(err))
	}

	if !noAnimate {
		animateConfidence(cmd.Context(), prediction)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Ticker", "Signal", "Confidence", "Tone"})
	table.Append([]string{
		prediction.Ticker,
		string(prediction.Signal),
		core.FormatPercent(prediction.Confidence) + " %",
		string(prediction.Signal.Tone(prediction.Confidence)),
	})
	table.Render()

	if hint := prediction.Signal.Hint(); hint != "" {
		fmt.Println(hint)
	}
	if prediction.Explanation != "" {
		fmt.Println()
		fmt.Println(prediction.Explanation)
	}
	return nil
}

// animateConfidence runs the same counter the dashboard uses on a
// progress bar and returns once it settles.
func animateConfidence(ctx context.Context, prediction core.Prediction) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := animation.NewLoop(cfg.UI.FrameInterval)
	go loop.Run(ctx)

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription(prediction.Ticker+" confidence"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	var (
		once sync.Once
		done = make(chan struct{})
	)
	counter := animation.NewCounter(loop, func(g animation.Gauge) {
		if err := bar.Set(int(math.Round(g.Percent))); err != nil {
			log.Warnf("update progressbar fail: %v", err)
		}
		if g.Done {
			once.Do(func() { close(done) })
		}
	})
	if !loop.Call(func() { counter.Start(prediction.Ticker, prediction.Confidence) }) {
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
	if !loop.Call(counter.Stop) {
		counter.Stop()
	}
	_ = bar.Finish()
}
