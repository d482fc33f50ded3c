package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/raykavin/signalsense/pkg/animation"
	"github.com/raykavin/signalsense/pkg/chart"
	"github.com/raykavin/signalsense/pkg/core"
	"github.com/raykavin/signalsense/pkg/dashboard"
	"github.com/raykavin/signalsense/pkg/metric"
	"github.com/raykavin/signalsense/pkg/notification"
	"github.com/raykavin/signalsense/pkg/plot"
	"github.com/raykavin/signalsense/pkg/poller"
	"github.com/raykavin/signalsense/pkg/prefs"
	"github.com/raykavin/signalsense/pkg/upstream"
	"github.com/spf13/cobra"
)

func buildServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard",
		RunE:  runServe,
	}

	serveCmd.Flags().IntP("port", "p", 0, "HTTP port (default 8080)")
	serveCmd.Flags().Bool("debug", false, "Serve the page script unminified")
	serveCmd.Flags().Bool("poll", false, "Refresh the latest price of the current ticker")
	for key, name := range map[string]string{"server.port": "port", "server.debug": "debug", "features.polling": "poll"} {
		if err := settings.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	return serveCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := metric.NewMetrics(registry)

	loop := animation.NewLoop(cfg.UI.FrameInterval)
	go loop.Run(ctx)

	client := newClient(
		upstream.WithHistoryTTL(cfg.API.HistoryCacheTTL),
		upstream.WithMetrics(metrics),
	)

	store, err := prefs.NewStore(cfg.Prefs.Path, log)
	if err != nil {
		return err
	}
	defer store.Close()

	preferences, err := store.Load()
	if err != nil {
		return err
	}

	hub := plot.NewHub(log, metrics)
	factory := plot.NewRemoteFactory(hub)
	manager := chart.NewManager(factory, log,
		chart.WithDriver(animation.NewDriver(loop)),
		chart.WithMetrics(metrics),
	)

	var board *dashboard.Dashboard
	watcher := poller.New(client, loop, func(symbol string, price core.LatestPrice) {
		board.OnLatestPrice(symbol, price)
	}, log, poller.WithInterval(cfg.Poll.Interval), poller.WithRetries(cfg.Poll.Retries))

	board = dashboard.New(client, manager, loop, log,
		dashboard.WithPreferences(preferences),
		dashboard.WithDefaultRange(cfg.UI.DefaultRange),
		dashboard.WithWatcher(watcher),
		dashboard.WithMetrics(metrics),
		dashboard.WithFeatures(dashboard.Features{
			Splash:        cfg.Features.Splash,
			Glossary:      cfg.Features.Glossary,
			AnimateSeries: cfg.Features.AnimateSeries,
			Polling:       cfg.Features.Polling,
		}),
		dashboard.WithLayout(dashboard.Layout{
			Container: cfg.UI.Container,
			Width:     cfg.UI.ChartWidth,
			Height:    cfg.UI.ChartHeight,
			Step:      cfg.UI.AnimateStep,
		}),
	)
	defer board.Close()

	board.Preferences.Subscribe(func(p prefs.Preferences) {
		if err := store.Save(p); err != nil {
			log.WithError(err).Error("failed to save preferences")
		}
	})

	if cfg.Telegram.Enabled {
		bot, err := notification.NewTelegram(board, notification.TelegramSettings{
			Token:   cfg.Telegram.Token,
			Users:   cfg.Telegram.Users,
			Timeout: cfg.Server.RequestTimeout,
		})
		if err != nil {
			return err
		}
		bot.Start()
		defer bot.Stop()
		board.Predictions.Subscribe(bot.OnPrediction)
	}

	if cfg.Mail.Enabled {
		mail := notification.NewMail(notification.MailParams{
			SMTPServerAddress: cfg.Mail.SMTPHost,
			SMTPServerPort:    cfg.Mail.SMTPPort,
			From:              cfg.Mail.From,
			To:                cfg.Mail.To,
			Password:          cfg.Mail.Password,
		})
		board.Predictions.Subscribe(func(entry core.HistoryEntry) {
			go mail.OnPrediction(entry)
		})
	}

	options := []plot.Option{
		plot.WithPort(cfg.Server.Port),
		plot.WithTitle(cfg.Server.Title),
		plot.WithGatherer(registry),
		plot.WithRequestTimeout(cfg.Server.RequestTimeout),
	}
	if cfg.Server.Debug {
		options = append(options, plot.WithDebug())
	}

	server, err := plot.NewServer(board, hub, factory, log, options...)
	if err != nil {
		return err
	}

	watcher.Start()
	defer watcher.Stop()

	return server.Start(ctx)
}
