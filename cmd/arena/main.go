// Command arena runs a timed NPC battle on a square map: actors wander,
// fight whoever comes within kill range, and the survivors are listed when
// time runs out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/npc-arena/internal/config"
	"github.com/signalsfoundry/npc-arena/internal/logging"
	"github.com/signalsfoundry/npc-arena/internal/notify"
	"github.com/signalsfoundry/npc-arena/internal/observability"
	"github.com/signalsfoundry/npc-arena/internal/records"
	"github.com/signalsfoundry/npc-arena/internal/sim"
	"github.com/signalsfoundry/npc-arena/kb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "arena: %v\n", err)
		os.Exit(1)
	}
}

// options carries flag values that are not part of the config file.
type options struct {
	configPath string
	promReg    prometheus.Registerer
}

// run is main without process exits, so it can be driven from tests.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, opts, err := parseConfig(args, stderr)
	if err != nil {
		return err
	}
	return runWith(ctx, cfg, opts, stdout, stderr)
}

// parseConfig loads the config file named by -config, then applies every
// flag the user actually set on top of it.
func parseConfig(args []string, stderr io.Writer) (config.Config, options, error) {
	fs := flag.NewFlagSet("arena", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		opts        options
		count       = fs.Int("count", 0, "number of NPCs to spawn when no -load file is given")
		duration    = fs.Duration("duration", 0, "game length")
		tick        = fs.Duration("tick", 0, "scanner interval between movement passes")
		status      = fs.Duration("status", 0, "interval between census log lines")
		seed        = fs.Uint64("seed", 0, "seed for the random spawn layout (0 = random)")
		load        = fs.String("load", "", "load NPC records from this file instead of spawning")
		save        = fs.String("save", "", "save survivors to this file when the game ends")
		battleLog   = fs.String("battle-log", "", "append battle messages to this file (default log.txt)")
		metricsAddr = fs.String("metrics-addr", "", "serve Prometheus /metrics on this address")
		quiet       = fs.Bool("quiet", false, "do not print battle messages to stdout")
		showMap     = fs.Bool("map", false, "draw the map on stdout at every status tick")
	)
	fs.StringVar(&opts.configPath, "config", "", "YAML config file")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, opts, err
	}
	if fs.NArg() > 0 {
		return config.Config{}, opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, opts, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "count":
			cfg.Count = *count
		case "duration":
			cfg.Duration = *duration
		case "tick":
			cfg.TickInterval = *tick
		case "status":
			cfg.StatusInterval = *status
		case "seed":
			cfg.Seed = *seed
		case "load":
			cfg.LoadPath = *load
		case "save":
			cfg.SavePath = *save
		case "battle-log":
			cfg.BattleLog = *battleLog
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "quiet":
			cfg.Console = !*quiet
		case "map":
			cfg.ShowMap = *showMap
		}
	})
	if err := cfg.Validate(); err != nil {
		return config.Config{}, opts, err
	}
	return cfg, opts, nil
}

func runWith(ctx context.Context, cfg config.Config, opts options, stdout, stderr io.Writer) error {
	logCfg := cfg.LoggingConfig()
	logCfg.Output = stderr
	ctx, log := logging.WithRunLogger(ctx, logging.New(logCfg))

	collector, err := observability.NewSimCollector(opts.promReg)
	if err != nil {
		return fmt.Errorf("initialise metrics: %w", err)
	}
	if metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log); metricsSrv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("initialise tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := kb.NewRegistry(cfg.Factory(), kb.WithAliveRecorder(collector))
	defer reg.Clear()
	if err := populate(ctx, reg, cfg, log); err != nil {
		return err
	}

	console := notify.NewWriterSink(stdout)
	subject, closeSinks, err := buildSinks(cfg, console, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	game := sim.New(reg, subject,
		sim.WithTickInterval(cfg.TickInterval),
		sim.WithLogger(log),
		sim.WithMetrics(collector),
	)

	log.Info(ctx, "game starting",
		logging.Int("npcs", reg.Len()),
		logging.Duration("duration", cfg.Duration),
		logging.String("census", sim.FormatCensus(reg.Census())),
	)
	err = game.Run(ctx, cfg.Duration, cfg.StatusInterval, func(elapsed time.Duration) {
		log.Info(ctx, "status",
			logging.Duration("elapsed", elapsed),
			logging.String("census", sim.FormatCensus(reg.Census())),
			logging.Int("queued", game.Queue().Len()),
		)
		if cfg.ShowMap {
			if err := sim.WriteMap(console, reg, elapsed); err != nil {
				log.Warn(ctx, "drawing map failed", logging.Err(err))
			}
		}
	})
	if err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if ctx.Err() != nil {
		log.Warn(ctx, "game interrupted")
	}

	survivors, err := sim.WriteSurvivors(stdout, reg, cfg.Duration)
	if err != nil {
		return fmt.Errorf("write survivors: %w", err)
	}
	log.Info(ctx, "game over",
		logging.Int("survivors", survivors),
		logging.String("census", sim.FormatCensus(reg.Census())),
	)

	if cfg.SavePath != "" {
		n, err := records.SaveFile(cfg.SavePath, reg)
		if err != nil {
			return fmt.Errorf("save survivors: %w", err)
		}
		log.Info(ctx, "survivors saved", logging.String("path", cfg.SavePath), logging.Int("records", n))
	}
	return nil
}

// populate fills reg from cfg.LoadPath, or with cfg.Count random NPCs.
func populate(ctx context.Context, reg *kb.Registry, cfg config.Config, log logging.Logger) error {
	if cfg.LoadPath != "" {
		actors, err := records.LoadFile(cfg.LoadPath, reg.Factory())
		if err != nil {
			return fmt.Errorf("load %s: %w", cfg.LoadPath, err)
		}
		if err := reg.Load(actors); err != nil {
			return fmt.Errorf("load %s: %w", cfg.LoadPath, err)
		}
		log.Info(ctx, "npcs loaded", logging.String("path", cfg.LoadPath), logging.Int("count", len(actors)))
		return nil
	}

	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	}
	if err := reg.SpawnRandom(cfg.Count, rng); err != nil {
		return fmt.Errorf("spawn npcs: %w", err)
	}
	log.Debug(ctx, "npcs spawned", logging.Int("count", cfg.Count), logging.Any("seed", cfg.Seed))
	return nil
}

// buildSinks fans battle messages out to the console, the battle log file
// and, at debug level, the structured log.
func buildSinks(cfg config.Config, console *notify.WriterSink, log logging.Logger) (*notify.Subject, func(), error) {
	subject := notify.NewSubject()
	if cfg.Console {
		subject.Attach(console)
	}

	closeFn := func() {}
	if cfg.BattleLog != "" {
		fileSink, err := notify.OpenFileSink(cfg.BattleLog, log)
		if err != nil {
			return nil, nil, err
		}
		subject.Attach(fileSink)
		closeFn = func() {
			if err := fileSink.Close(); err != nil {
				log.Warn(context.Background(), "closing battle log failed", logging.Err(err))
			}
		}
	}

	if strings.EqualFold(cfg.Log.Level, "debug") {
		subject.Attach(notify.NewLogSink(log))
	}
	return subject, closeFn, nil
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
