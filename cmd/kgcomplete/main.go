package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"github.com/agenthands/kgcomplete/internal/config"
	"github.com/agenthands/kgcomplete/internal/core"
	"github.com/agenthands/kgcomplete/internal/core/model"
	"github.com/agenthands/kgcomplete/internal/core/summary"
	"github.com/agenthands/kgcomplete/internal/core/transfer"
	"github.com/agenthands/kgcomplete/internal/driver"
	"github.com/agenthands/kgcomplete/internal/loader"
	"github.com/agenthands/kgcomplete/internal/metrics"
	"github.com/agenthands/kgcomplete/internal/server"
	"github.com/agenthands/kgcomplete/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (default: built-in settings)")
	ratio := flag.Float64("ratio", 0, "entity seed ratio, overrides data.train_ratio")
	pair := flag.String("pair", "", "only run the pair folder with this name")
	addr := flag.String("addr", "", "serve reports on this address after the batch, overrides server.addr")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *ratio != 0 {
		cfg.Data.TrainRatio = *ratio
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := setupLogging(cfg.Log); err != nil {
		log.Fatalf("Invalid log settings: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewRecorder(reg)

	policy, err := transfer.PolicyFor(cfg.Completion.TransferPolicy, cfg.Completion.TransferDiscount)
	if err != nil {
		log.Fatalf("Invalid transfer policy: %v", err)
	}
	completer := core.NewCompleter(core.Options{
		Policy:             policy,
		ParallelDirections: cfg.Completion.ParallelDirections,
		StrictRules:        cfg.Completion.StrictRules,
		Logger:             log.StandardLogger(),
		Metrics:            rec,
	})
	summarizer := summary.NewSummarizer(cfg.Report.SampleSize, log.StandardLogger())

	var exporter *driver.Exporter
	if cfg.Memgraph.Enabled {
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
		if err != nil {
			log.Fatalf("Failed to connect to Memgraph: %v", err)
		}
		defer d.Close(context.Background())
		exporter = driver.NewExporter(d, cfg.Memgraph.BatchSize, log.StandardLogger())
	}

	srv := server.NewServer(reg, log.StandardLogger())

	var history *store.Store
	if cfg.Store.Path != "" {
		history, err = store.NewStore(cfg.Store.Path)
		if err != nil {
			log.Fatalf("Failed to open run history: %v", err)
		}
		defer history.Close()
		srv.History = history
	}

	dirs, err := loader.Discover(cfg.Data.Root, cfg.Data.PairGlob)
	if err != nil {
		log.Fatalf("Failed to list pairs: %v", err)
	}
	if len(dirs) == 0 {
		log.WithFields(log.Fields{"root": cfg.Data.Root, "glob": cfg.Data.PairGlob}).Warn("no pair folders found")
	}

	failed := 0
	for _, dir := range dirs {
		if *pair != "" && filepath.Base(dir) != *pair {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		res, err := runPair(ctx, dir, cfg, completer, exporter)
		if err != nil {
			failed++
			log.WithError(err).WithField("dir", dir).Error("pair failed")
			continue
		}
		summarizer.Summarize(res)
		srv.Publish(res)
		if history != nil {
			if err := history.SaveRun(ctx, res.Report); err != nil {
				log.WithError(err).WithField("run_id", res.Report.RunID).Error("failed to store run")
			}
		}
	}

	if cfg.Server.Addr != "" && ctx.Err() == nil {
		if err := srv.Serve(ctx, cfg.Server.Addr, nil); err != nil {
			log.Fatal(err)
		}
	}
	if failed > 0 {
		log.Fatalf("%d pair(s) failed", failed)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(lc config.LogConfig) error {
	level, err := log.ParseLevel(lc.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if lc.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func runPair(ctx context.Context, dir string, cfg *config.Config, c *core.Completer, exp *driver.Exporter) (*core.Result, error) {
	in, stats, err := loader.LoadPair(dir, cfg.Data.TrainRatio, cfg.Data.ConfidenceColumn)
	if err != nil {
		return nil, err
	}
	for _, side := range model.Sides {
		rs := stats.Rules[side]
		if rs.UnknownRelation > 0 {
			log.WithFields(log.Fields{"pair": in.Pair, "side": side, "skipped": rs.UnknownRelation}).Warn("rules with unknown relations skipped")
		}
		if rs.Unsupported > 0 {
			log.WithFields(log.Fields{"pair": in.Pair, "side": side, "skipped": rs.Unsupported}).Warn("rules with constant atoms skipped")
		}
	}

	res, err := c.Complete(ctx, in)
	if err != nil {
		return nil, err
	}
	if exp != nil {
		if _, err := exp.Export(ctx, res); err != nil {
			return res, err
		}
	}
	return res, nil
}
