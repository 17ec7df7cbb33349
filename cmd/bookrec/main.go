// Package main is the bookrec CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/bookrec/internal/bootstrap"
	"github.com/hyperjump/bookrec/internal/cli"
	"github.com/hyperjump/bookrec/internal/config"
	"github.com/hyperjump/bookrec/internal/embedding"
	"github.com/hyperjump/bookrec/internal/indexer"
	"github.com/hyperjump/bookrec/internal/keyword"
	"github.com/hyperjump/bookrec/internal/loader"
	"github.com/hyperjump/bookrec/internal/models"
	"github.com/hyperjump/bookrec/internal/search"
	"github.com/hyperjump/bookrec/internal/server"
	"github.com/hyperjump/bookrec/internal/store"
	"github.com/hyperjump/bookrec/internal/watcher"
	"github.com/hyperjump/bookrec/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/bookrec/config.yaml"

// demoBookIDs are queried by recommend when no --book is given.
var demoBookIDs = []string{"26415", "9"}

// errUsage is returned after usage has been printed.
var errUsage = errors.New("invalid usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "bookrec: %v\n", err)
		}
		os.Exit(1)
	}
}

// run dispatches a subcommand. With no command, or when the first argument is
// a flag, recommend is run.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	command := "recommend"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}
	switch command {
	case "recommend":
		return runRecommend(ctx, args, stdout, stderr)
	case "serve", "server":
		return runServe(ctx, args, stderr)
	case "find":
		return runFind(ctx, args, stdout, stderr)
	case "status":
		return runStatus(ctx, args, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "bookrec version %s\n", version)
		return nil
	case "help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return errUsage
	}
}

// loadConfig loads config from path. When path is the default and missing, a
// config.yaml in the current directory is tried, then built-in defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); err != nil {
			if cwd, cwdErr := os.Getwd(); cwdErr == nil {
				fallback := filepath.Join(cwd, "config.yaml")
				if _, statErr := os.Stat(fallback); statErr == nil {
					path = fallback
				}
			}
		}
		cfg, err := config.LoadOrDefault(path)
		return cfg, path, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// commonFlags are shared by every subcommand that touches the index.
type commonFlags struct {
	configPath *string
	debug      *bool
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
}

func (c commonFlags) load() (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(*c.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || *c.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errUsage
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func runRecommend(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("recommend", stderr)
	common := addCommonFlags(fs)
	load := fs.Bool("load", false, "rebuild the index from the data path before querying (cold start)")
	book := fs.String("book", "", "book id to recommend for (default: demo ids "+strings.Join(demoBookIDs, ", ")+")")
	k := fs.Int("k", 0, "number of recommendations (default from config)")
	radius := fs.Float64("radius", -1, "cosine distance radius for range recommendations (default from config)")
	output := fs.String("output", "text", "output format: text, table or json")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}

	cfg, logger, err := common.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if *k == 0 {
		*k = cfg.Query.DefaultK
	}
	if *radius < 0 {
		*radius = cfg.Query.Radius
	}

	app, err := newApp(ctx, cfg, logger, *load)
	if err != nil {
		return err
	}
	defer app.Close()

	mode := bootstrap.ModeFromLoadFlag(*load)
	logger.Debug("starting", zap.Stringer("mode", mode))
	report, err := app.runner.Start(ctx, mode)
	if report != nil {
		if werr := cli.WriteBuildReport(stdout, report, format); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}

	ids := demoBookIDs
	if *book != "" {
		ids = []string{*book}
	}
	for _, id := range ids {
		knn, err := app.engine.QueryByID(ctx, id, *k)
		if err != nil {
			return err
		}
		if err := cli.WriteQueryResult(stdout, "Recommendations for "+id, knn, format); err != nil {
			return err
		}
		within, err := app.engine.RangeByID(ctx, id, *radius, *k)
		if err != nil {
			return err
		}
		heading := fmt.Sprintf("Range recommendations for %s (radius %g)", id, *radius)
		if err := cli.WriteQueryResult(stdout, heading, within, format); err != nil {
			return err
		}
	}
	return nil
}

func runFind(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("find", stderr)
	common := addCommonFlags(fs)
	limit := fs.Int("limit", 10, "maximum number of books")
	output := fs.String("output", "text", "output format: text, table or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: bookrec find [flags] <title, author or genre words>\n\n")
		fs.PrintDefaults()
	}
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fs.Usage()
		return errUsage
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	cfg, logger, err := common.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	kw, err := keyword.NewBleveIndex(cfg.Data.KeywordIndexPath)
	if err != nil {
		return fmt.Errorf("failed to open keyword index: %w", err)
	}
	defer kw.Close()

	hits, err := keyword.Find(ctx, kw, query, *limit)
	if err != nil {
		return err
	}
	return cli.WriteKeywordResults(stdout, query, hits, format)
}

func runStatus(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("status", stderr)
	common := addCommonFlags(fs)
	output := fs.String("output", "text", "output format: text, table or json")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	cfg, logger, err := common.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.Open(ctx, &cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	engine := search.NewEngine(st, cfg.Index.Name, &cfg.Query,
		search.WithLogger(logger), search.WithKeys(store.Keys{Namespace: cfg.Store.KeyPrefix}))
	status, err := engine.Status(ctx)
	if err != nil {
		return err
	}
	diskBytes, err := store.DiskUsageBytes(diskPaths(cfg)...)
	if err != nil {
		logger.Warn("disk usage unavailable", zap.Error(err))
	}
	view := &cli.StatusView{Status: status, Backend: cfg.Store.Backend, DiskBytes: diskBytes}
	return cli.WriteStatus(stdout, view, format)
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	common := addCommonFlags(fs)
	load := fs.Bool("load", false, "rebuild the index from the data path at startup (cold start)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cfg, logger, err := common.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	app, err := newApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.runner.Start(ctx, bootstrap.ModeFromLoadFlag(*load))
	if err != nil {
		return err
	}
	if report != nil {
		logger.Info("index built",
			zap.String("build_id", report.BuildID),
			zap.Int("written", report.Written),
			zap.Int("failed", report.Failed))
	} else if err := app.engine.Refresh(ctx); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return err
		}
		logger.Warn("serving without a built index", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Watch.Enabled {
		w := watcher.NewWatcher(cfg.Data.Path, func(ctx context.Context) {
			report, err := app.runner.Rebuild(ctx)
			if err != nil {
				logger.Warn("rebuild after data change failed", zap.Error(err))
				return
			}
			logger.Info("index rebuilt after data change",
				zap.String("build_id", report.BuildID), zap.Int("written", report.Written))
		}, watcher.WithLogger(logger), watcher.WithDebounce(cfg.Watch.Debounce))
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
	}

	srv := server.NewServer(app.engine, app.runner, cfg, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// app holds the initialized services.
type app struct {
	store   store.Store
	keyword keyword.KeywordIndex
	engine  *search.Engine
	runner  *bootstrap.Runner
}

// newApp connects to the store and wires the builder, engine and runner. The
// keyword index is opened only when withKeyword is set because its files
// are locked by the process holding it.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, withKeyword bool) (*app, error) {
	st, err := store.Open(ctx, &cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	enc, err := embedding.NewEncoder(&cfg.Encoding, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	a := &app{store: st}
	keys := store.Keys{Namespace: cfg.Store.KeyPrefix}
	builderOpts := []indexer.BuilderOption{indexer.WithLogger(logger), indexer.WithKeys(keys)}
	engineOpts := []search.EngineOption{search.WithLogger(logger), search.WithKeys(keys)}
	if withKeyword {
		kw, err := keyword.NewBleveIndex(cfg.Data.KeywordIndexPath)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to open keyword index: %w", err)
		}
		a.keyword = kw
		builderOpts = append(builderOpts, indexer.WithKeywordIndex(kw))
		engineOpts = append(engineOpts, search.WithKeywordIndex(kw))
	}

	builder := indexer.NewBuilder(st, enc, &cfg.Index, builderOpts...)
	a.engine = search.NewEngine(st, cfg.Index.Name, &cfg.Query, engineOpts...)
	a.runner = bootstrap.NewRunner(cfg.Data.Path, builder, a.engine,
		bootstrap.WithLogger(logger), bootstrap.WithLoader(loader.Load))
	return a, nil
}

func (a *app) Close() {
	if a.keyword != nil {
		_ = a.keyword.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

func diskPaths(cfg *config.Config) []string {
	paths := []string{cfg.Data.KeywordIndexPath}
	if cfg.Store.Backend == store.BackendSQLite {
		paths = append(paths, cfg.Store.SQLitePath)
	}
	return paths
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `bookrec - book recommendations by vector similarity

Usage:
  bookrec [recommend] [flags]      Recommend similar books (default command)
  bookrec serve [flags]            Start the HTTP API
  bookrec find [flags] <words>     Look up book ids by title, author or genre
  bookrec status [flags]           Show index and store status
  bookrec version                  Show version
  bookrec help                     Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/bookrec/config.yaml, then ./config.yaml)
  --debug            Enable debug logging

Recommend Flags:
  --load             Rebuild the index from the data path first (cold start)
  --book string      Book id to query (default: the demo ids 26415 and 9)
  --k int            Number of recommendations (default from config)
  --radius float     Cosine distance radius for range recommendations (default from config)
  --output string    Output format: text, table or json (default: text)

Serve Flags:
  --load             Rebuild the index at startup

Environment:
  BOOKREC_REDIS_ADDR, BOOKREC_REDIS_PASSWORD, BOOKREC_STORE_BACKEND, BOOKREC_DATA_PATH

Examples:
  bookrec --load --config config.yaml
  bookrec --book 26415 --k 5 --output table
  bookrec find pride and prejudice
  bookrec serve --load
`)
}
