package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/issueforge/jira-harvest/internal/config"
	"github.com/issueforge/jira-harvest/pkg/client"
	"github.com/issueforge/jira-harvest/pkg/logging"
	"github.com/issueforge/jira-harvest/pkg/output"
	"github.com/issueforge/jira-harvest/pkg/scraper"
	"github.com/issueforge/jira-harvest/pkg/state"
	"github.com/issueforge/jira-harvest/pkg/transform"
)

type scrapeOptions struct {
	projects    []string
	outputDir   string
	concurrency int
	rateLimit   float64
	timeout     int
	maxRetries  int
	limit       int
	resume      bool
	stateFile   string
	configFile  string
	redisAddr   string
	metricsAddr string
	logLevel    string
	pretty      bool
}

func newScrapeCommand() *cobra.Command {
	opts := &scrapeOptions{}

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape one or more Jira projects into a training dataset",
		Long: `Scrape discovers every issue of the given projects through the Jira
search API, fetches full issue details under a bounded concurrency, and
writes one training record per issue as JSONL.

A fresh run removes any previous state file. With --resume, previously
completed issues are skipped without a network call.`,
		Example: `  jira-harvest scrape -p KAFKA -p SPARK -o ./dataset
  jira-harvest scrape -p HADOOP --limit 500 --resume`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.projects, "projects", "p", nil, "Project keys to scrape (repeatable)")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory for dataset files")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 0, "Max concurrent issue fetches")
	cmd.Flags().Float64VarP(&opts.rateLimit, "rate-limit", "r", 0, "Seconds between requests (fractional allowed)")
	cmd.Flags().IntVar(&opts.timeout, "timeout", 0, "Per-request timeout in seconds")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", 0, "Max attempts per request")
	cmd.Flags().IntVarP(&opts.limit, "limit", "l", 0, "Max successful issues per project (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Resume from the previous state file")
	cmd.Flags().StringVar(&opts.stateFile, "state-file", "", "Path of the completion state file")
	cmd.Flags().StringVar(&opts.configFile, "config", "", "Path of a YAML config file")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "Redis address enabling the response cache")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Listen address for the Prometheus /metrics endpoint")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Human-readable console logs instead of JSON")

	cmd.MarkFlagRequired("projects")

	return cmd
}

func runScrape(cmd *cobra.Command, opts *scrapeOptions) error {
	cfg, err := buildConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(opts.logLevel),
		Pretty: opts.pretty,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.metricsAddr != "" {
		go serveMetrics(opts.metricsAddr)
		logger.Info().Str("addr", opts.metricsAddr).Msg("Serving Prometheus metrics")
	}

	clientCfg := client.Config{
		BaseURL:           cfg.Jira.BaseURL,
		UserAgent:         cfg.Jira.UserAgent,
		RateLimitInterval: cfg.RateLimitInterval(),
		RequestTimeout:    cfg.RequestTimeout(),
		PoolSize:          cfg.Scrape.Concurrency * 2,
		PageSize:          cfg.Scrape.PageSize,
		Retry: client.Policy{
			MaxAttempts: cfg.Jira.MaxRetries,
			BaseBackoff: time.Second,
			MaxBackoff:  30 * time.Second,
			JitterMax:   500 * time.Millisecond,
		},
		CacheTTL: cfg.CacheTTL(),
	}
	if cfg.Cache.RedisAddr != "" {
		clientCfg.Redis = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		defer clientCfg.Redis.Close()
	}

	jiraClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create jira client: %w", err)
	}
	defer jiraClient.Close()

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	writer, err := output.NewFileWriter(filepath.Join(cfg.Output.Dir, "issues.jsonl"))
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer writer.Close()

	sink := transform.NewTransformer(writer, logging.NewLogger("transform"))
	store := state.NewStore(cfg.Scrape.StateFile, logging.NewLogger("state"))

	limits := make(map[string]int, len(cfg.Projects))
	for project, pc := range cfg.Projects {
		if pc.Limit > 0 {
			limits[project] = pc.Limit
		}
	}

	orch, err := scraper.New(scraper.Config{
		Projects:    opts.projects,
		Concurrency: cfg.Scrape.Concurrency,
		Limit:       opts.limit,
		Limits:      limits,
		Resume:      opts.resume,
		SaveEvery:   cfg.Scrape.SaveEvery,
	}, jiraClient, store, sink)
	if err != nil {
		return err
	}

	stats, runErr := orch.Run(ctx)

	// The summary and dataset statistics are written even when the run
	// was interrupted, reflecting the work completed so far.
	if err := sink.WriteStats(filepath.Join(cfg.Output.Dir, "stats.json")); err != nil {
		logger.Error().Err(err).Msg("Failed to write dataset statistics")
	}

	printSummary(cmd, stats, sink.Emitted(), cfg.Output.Dir)
	return runErr
}

// buildConfig loads the config file and layers changed flags on top.
func buildConfig(cmd *cobra.Command, opts *scrapeOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("rate-limit") {
		cfg.Jira.RateLimit = opts.rateLimit
	}
	if flags.Changed("timeout") {
		cfg.Jira.Timeout = opts.timeout
	}
	if flags.Changed("max-retries") {
		cfg.Jira.MaxRetries = opts.maxRetries
	}
	if flags.Changed("concurrency") {
		cfg.Scrape.Concurrency = opts.concurrency
	}
	if flags.Changed("state-file") {
		cfg.Scrape.StateFile = opts.stateFile
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir = opts.outputDir
	}
	if flags.Changed("redis") {
		cfg.Cache.RedisAddr = opts.redisAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
	}
}

func printSummary(cmd *cobra.Command, stats scraper.Stats, emitted int, outputDir string) {
	out := cmd.ErrOrStderr()
	fmt.Fprintln(out, "Scrape complete:")
	fmt.Fprintf(out, "  Attempted: %d\n", stats.Attempted)
	fmt.Fprintf(out, "  Succeeded: %d\n", stats.Succeeded)
	fmt.Fprintf(out, "  Failed:    %d\n", stats.Failed)
	fmt.Fprintf(out, "  Skipped:   %d\n", stats.Skipped)
	fmt.Fprintf(out, "  Retries:   %d\n", stats.Retries)
	fmt.Fprintf(out, "  Records:   %d\n", emitted)
	fmt.Fprintf(out, "Dataset written to %s\n", outputDir)
}
