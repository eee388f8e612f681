package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"schoolcal/internal/config"
	"schoolcal/internal/feed"
	"schoolcal/internal/ics"
	appLog "schoolcal/internal/log"
	"schoolcal/internal/normalize"
	"schoolcal/internal/probe"
	"schoolcal/internal/upstream"
	"schoolcal/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	envFile    string
	listen     string

	once  bool
	start string
	end   string
	out   string
	check bool
}

func main() {
	flags := parseFlags()
	if err := run(flags, os.Stdout); err != nil {
		appLog.Error("schoolcal exiting with error", err)
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Sync()
}

func run(flags flagConfig, stdout io.Writer) error {
	appLog.Info("schoolcal starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if err := conf.ApplyEnv(flags.envFile); err != nil {
		return err
	}
	// CLI --listen overrides config file and environment.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"feed_path", conf.FeedPath,
		"uid_domain", conf.UIDDomain,
		"probe_cron", conf.ProbeCron,
		"upstream_timeout", conf.Upstream.Timeout().String(),
		"basic_auth", conf.BasicAuth != nil,
		"once", flags.once,
	)

	svc := newService(conf)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.once {
		return renderOnce(ctx, svc, flags, stdout)
	}

	if conf.ProbeCron != "" {
		sched, err := probe.New(conf.ProbeCron, svc, conf.Upstream.Timeout())
		if err != nil {
			return err
		}
		sched.Start(ctx)
	}

	if err := web.NewServer(conf, svc).ListenAndServe(ctx); err != nil {
		return err
	}
	appLog.Info("schoolcal exiting")
	return nil
}

func newService(conf *config.Config) *feed.Service {
	fetcher := upstream.NewFetcher(upstream.Config{
		URL:            conf.Upstream.URL,
		Params:         conf.Upstream.Params,
		StartParam:     conf.Upstream.StartParam,
		EndParam:       conf.Upstream.EndParam,
		CacheBustParam: conf.Upstream.CacheBustParam,
		Timeout:        conf.Upstream.Timeout(),
	})
	return feed.New(fetcher,
		normalize.Normalizer{UIDDomain: conf.UIDDomain},
		ics.Serializer{ProdID: conf.ProdID, CalendarName: conf.CalendarName},
	)
}

// renderOnce builds a single document and writes it to flags.out or stdout.
func renderOnce(ctx context.Context, svc *feed.Service, flags flagConfig, stdout io.Writer) error {
	res, err := svc.Build(ctx, flags.start, flags.end)
	if err != nil {
		return err
	}

	if flags.check {
		parsed, err := ics.Parse(res.Document)
		if err != nil {
			return fmt.Errorf("rendered document failed validation: %w", err)
		}
		if len(parsed) != res.EventCount {
			return errors.New("rendered document lost events during validation")
		}
		appLog.Info("rendered document validated", "event_count", len(parsed))
	}

	if flags.out == "" {
		_, err = io.WriteString(stdout, res.Document)
		return err
	}
	if err := os.WriteFile(flags.out, []byte(res.Document), 0o644); err != nil {
		return err
	}
	appLog.Info("feed written", "path", flags.out, "event_count", res.EventCount, "dropped_count", res.Dropped)
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/schoolcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env", ".env", "Optional .env file with SCHOOLCAL_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Render the feed once and exit instead of serving HTTP")
	flag.StringVar(&cfg.start, "start", "", "Window start for -once (YYYY-MM-DD)")
	flag.StringVar(&cfg.end, "end", "", "Window end for -once (YYYY-MM-DD)")
	flag.StringVar(&cfg.out, "out", "", "Output file for -once (default stdout)")
	flag.BoolVar(&cfg.check, "check", false, "With -once, validate the output with an iCalendar parser")

	flag.Parse()

	return cfg
}
