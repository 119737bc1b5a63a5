// Package scraper orchestrates a scrape run: sequential key discovery per
// project, bounded-concurrency detail fetches, schema validation, ordered
// handoff to the downstream sink, and durable completion tracking.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/issueforge/jira-harvest/pkg/client"
	"github.com/issueforge/jira-harvest/pkg/logging"
	"github.com/issueforge/jira-harvest/pkg/models"
	"github.com/issueforge/jira-harvest/pkg/state"
)

// Prometheus metrics for scrape orchestration.
var (
	jiraIssuesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_issues_processed_total",
		Help: "Issues processed by project and result",
	}, []string{"project", "result"})

	jiraFetchesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jira_fetches_in_flight",
		Help: "Detail fetches currently in flight",
	})

	jiraStateSavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jira_state_saves_total",
		Help: "Completion-state saves during scraping",
	})
)

// Sink receives validated issues. Within one project, issues arrive in
// discovery order even though their fetches complete out of order.
type Sink interface {
	Consume(issue *models.Issue) error
}

// ProjectError reports a failed key discovery for one project. The run
// continues with the remaining projects; the error is surfaced alongside
// the final statistics.
type ProjectError struct {
	Project string
	Err     error
}

func (e *ProjectError) Error() string {
	return fmt.Sprintf("project %s: %v", e.Project, e.Err)
}

func (e *ProjectError) Unwrap() error {
	return e.Err
}

// Config holds the orchestrator configuration.
type Config struct {
	// Projects to scrape, in order.
	Projects []string

	// Concurrency bounds in-flight detail fetches across the whole run,
	// not per project (default: 5).
	Concurrency int

	// Limit stops scheduling new fetches for a project once this many
	// successes were recorded for it. Zero means unlimited. In-flight
	// fetches at the moment the limit is reached still complete.
	Limit int

	// Limits overrides Limit for individual projects.
	Limits map[string]int

	// Resume loads prior completion state instead of starting fresh.
	// A fresh run removes any existing state file.
	Resume bool

	// SaveEvery persists completion state after this many successes
	// (default: 20). The final save at run end is unconditional.
	SaveEvery int
}

// DefaultConfig returns an orchestrator configuration with sensible
// defaults and no projects.
func DefaultConfig() Config {
	return Config{
		Concurrency: 5,
		SaveEvery:   20,
	}
}

// Orchestrator drives a scrape run end to end. It exclusively owns the
// completion state and the statistics accumulator for the run's duration.
type Orchestrator struct {
	config Config
	client *client.Client
	store  *state.Store
	sink   Sink
	logger zerolog.Logger

	sem chan struct{}

	// mu serializes completion processing: statistics, state mutation,
	// and the downstream handoff.
	mu        sync.Mutex
	stats     Stats
	successes map[string]int
}

// New creates an orchestrator. All collaborators are required.
func New(cfg Config, c *client.Client, store *state.Store, sink Sink) (*Orchestrator, error) {
	if len(cfg.Projects) == 0 {
		return nil, fmt.Errorf("at least one project is required")
	}
	if c == nil || store == nil || sink == nil {
		return nil, fmt.Errorf("client, store, and sink are required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.SaveEvery <= 0 {
		cfg.SaveEvery = 20
	}

	return &Orchestrator{
		config:    cfg,
		client:    c,
		store:     store,
		sink:      sink,
		logger:    logging.NewLogger("scraper"),
		successes: make(map[string]int),
	}, nil
}

// Run executes the scrape and returns the final statistics. Statistics are
// returned even when err is non-nil, reflecting work completed up to the
// interruption point. The completion state is saved unconditionally before
// returning, including on cancellation.
func (o *Orchestrator) Run(ctx context.Context) (Stats, error) {
	if err := o.prepareState(); err != nil {
		return o.snapshot(), err
	}

	o.sem = make(chan struct{}, o.config.Concurrency)

	var runErr error
	for _, project := range o.config.Projects {
		if ctx.Err() != nil {
			if runErr == nil {
				runErr = ctx.Err()
			}
			break
		}

		o.logger.Info().
			Str("project", project).
			Msg("Scraping project")

		err := o.runProject(ctx, project)
		if err == nil {
			continue
		}

		var perr *ProjectError
		if errors.As(err, &perr) {
			// Discovery failed for this project; the rest still run.
			o.logger.Error().
				Err(perr.Err).
				Str("project", perr.Project).
				Msg("Project discovery failed")
			if runErr == nil {
				runErr = err
			}
			continue
		}

		runErr = err
		break
	}

	if err := o.store.Save(); err != nil {
		o.logger.Error().Err(err).Msg("Final state save failed")
		if runErr == nil {
			runErr = fmt.Errorf("final state save: %w", err)
		}
	} else {
		jiraStateSavesTotal.Inc()
	}

	stats := o.snapshot()
	o.logger.Info().
		Int("attempted", stats.Attempted).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Int("retries", stats.Retries).
		Msg("Scrape run finished")

	return stats, runErr
}

// prepareState loads prior completion state on resume or removes it for a
// fresh run. A corrupt state file is fatal on resume; discarding prior
// work silently is never the right default.
func (o *Orchestrator) prepareState() error {
	if o.config.Resume {
		if err := o.store.Load(); err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		o.logger.Info().
			Int("completed", o.store.Count()).
			Msg("Resuming from prior state")
		return nil
	}

	if err := o.store.Delete(); err != nil {
		return fmt.Errorf("start fresh: %w", err)
	}
	return nil
}

// fetchResult pairs a completed detail fetch with its discovery sequence
// number, used to restore discovery order at handoff time.
type fetchResult struct {
	seq     int
	key     string
	outcome client.Outcome
}

// runProject discovers a project's keys sequentially and fans detail
// fetches out to the shared worker pool. Completions funnel through a
// single collector so downstream handoff stays in discovery order.
func (o *Orchestrator) runProject(ctx context.Context, project string) error {
	results := make(chan fetchResult)
	collectorDone := make(chan error, 1)
	go func() {
		collectorDone <- o.collect(project, results)
	}()

	var wg sync.WaitGroup
	seq := 0

	searchErr := o.client.ForEachIssueKey(ctx, project, func(key string) error {
		// Resumption fast path: no fetch is scheduled for completed keys.
		if o.store.IsDone(key) {
			o.skip(project, key, "already_done")
			return nil
		}

		select {
		case o.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		// The slot is held, so every completion that freed one has been
		// fully processed and the success count is current.
		if o.limitReached(project) {
			<-o.sem
			o.logger.Info().
				Str("project", project).
				Int("limit", o.limitFor(project)).
				Msg("Success limit reached, stopping discovery")
			return client.ErrStopPagination
		}

		s := seq
		seq++
		wg.Add(1)
		jiraFetchesInFlight.Inc()
		go func() {
			defer wg.Done()
			defer jiraFetchesInFlight.Dec()
			results <- fetchResult{seq: s, key: key, outcome: o.client.FetchIssue(ctx, key)}
		}()
		return nil
	})

	wg.Wait()
	close(results)

	if err := <-collectorDone; err != nil {
		return err
	}
	if searchErr != nil {
		if errors.Is(searchErr, context.Canceled) || errors.Is(searchErr, context.DeadlineExceeded) {
			return searchErr
		}
		return &ProjectError{Project: project, Err: searchErr}
	}
	return nil
}

// collect processes fetch completions in discovery order. Out-of-order
// completions park in a pending map until their predecessors arrive.
// A fetch's pool slot is released only after its completion is processed
// here, so the concurrency bound covers the whole fetch-to-handoff path.
// After the first fatal error it keeps draining so no worker blocks.
func (o *Orchestrator) collect(project string, results <-chan fetchResult) error {
	pending := make(map[int]fetchResult)
	next := 0

	var firstErr error
	for res := range results {
		pending[res.seq] = res
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if firstErr == nil {
				if err := o.complete(project, r); err != nil {
					firstErr = err
				}
			}
			<-o.sem
		}
	}
	return firstErr
}

// complete handles one fetch outcome: classify, validate, hand off, mark
// done, and save periodically. Runs under o.mu so state mutation and the
// downstream handoff never race across projects or completions.
func (o *Orchestrator) complete(project string, r fetchResult) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stats.Attempted++
	if r.outcome.Attempts > 1 {
		o.stats.Retries += r.outcome.Attempts - 1
	}

	if !r.outcome.Success() {
		o.stats.Failed++
		jiraIssuesProcessed.WithLabelValues(project, "failed").Inc()
		o.logger.Warn().
			Str("issue", r.key).
			Str("outcome", r.outcome.Kind.String()).
			Int("status_code", r.outcome.StatusCode).
			Int("attempts", r.outcome.Attempts).
			Msg("Issue fetch failed")
		return nil
	}

	issue, err := models.DecodeIssue(r.outcome.Body)
	if err != nil {
		// Not marked done: a later run may see repaired data.
		o.stats.Skipped++
		jiraIssuesProcessed.WithLabelValues(project, "validation_failed").Inc()
		o.logger.Warn().
			Err(err).
			Str("issue", r.key).
			Msg("Issue failed validation, not marked done")
		return nil
	}

	if err := o.sink.Consume(issue); err != nil {
		return fmt.Errorf("handoff %s: %w", r.key, err)
	}

	o.store.MarkDone(r.key)
	o.stats.Succeeded++
	o.successes[project]++
	jiraIssuesProcessed.WithLabelValues(project, "success").Inc()
	o.logger.Debug().
		Str("issue", r.key).
		Msg("Issue scraped")

	if o.store.MarkedSinceSave() >= o.config.SaveEvery {
		if err := o.store.Save(); err != nil {
			return fmt.Errorf("periodic state save: %w", err)
		}
		jiraStateSavesTotal.Inc()
	}
	return nil
}

func (o *Orchestrator) skip(project, key, reason string) {
	o.mu.Lock()
	o.stats.Skipped++
	o.mu.Unlock()
	jiraIssuesProcessed.WithLabelValues(project, reason).Inc()
	o.logger.Debug().
		Str("issue", key).
		Msg("Issue already completed, skipping")
}

func (o *Orchestrator) limitFor(project string) int {
	if limit, ok := o.config.Limits[project]; ok && limit > 0 {
		return limit
	}
	return o.config.Limit
}

func (o *Orchestrator) limitReached(project string) bool {
	limit := o.limitFor(project)
	if limit <= 0 {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.successes[project] >= limit
}

func (o *Orchestrator) snapshot() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}
