package transform

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/issueforge/jira-harvest/pkg/models"
	"github.com/issueforge/jira-harvest/pkg/output"
)

// DatasetStats summarizes the emitted dataset.
type DatasetStats struct {
	TotalIssues         int            `json:"total_issues"`
	Projects            map[string]int `json:"projects"`
	Statuses            map[string]int `json:"statuses"`
	Priorities          map[string]int `json:"priorities"`
	TotalComments       int            `json:"total_comments"`
	AvgCommentsPerIssue float64        `json:"avg_comments_per_issue"`
}

// Transformer consumes validated issues from the scrape engine, writes
// training records as JSONL, and accumulates dataset statistics. It is
// the downstream collaborator of the scrape orchestrator.
type Transformer struct {
	writer *output.Writer
	logger zerolog.Logger

	mu         sync.Mutex
	total      int
	projects   map[string]int
	statuses   map[string]int
	priorities map[string]int
	comments   int
}

// NewTransformer creates a transformer writing records to w.
func NewTransformer(w *output.Writer, logger zerolog.Logger) *Transformer {
	return &Transformer{
		writer:     w,
		logger:     logger,
		projects:   make(map[string]int),
		statuses:   make(map[string]int),
		priorities: make(map[string]int),
	}
}

// Consume handles one validated issue. Issues without any trainable text
// still count toward the dataset statistics but produce no record.
func (t *Transformer) Consume(issue *models.Issue) error {
	t.mu.Lock()
	t.total++
	t.projects[issue.Project]++
	t.statuses[issue.Status]++
	if issue.Priority != "" {
		t.priorities[issue.Priority]++
	}
	t.comments += len(issue.Comments)
	t.mu.Unlock()

	if !issue.HasContent() {
		t.logger.Debug().
			Str("issue", issue.Key).
			Msg("Issue has no description or comments, record not emitted")
		return nil
	}

	if err := t.writer.Write(NewRecord(issue)); err != nil {
		return fmt.Errorf("emit record for %s: %w", issue.Key, err)
	}
	return nil
}

// Emitted returns the number of records written so far.
func (t *Transformer) Emitted() int {
	return t.writer.Count()
}

// Stats returns a snapshot of the accumulated dataset statistics.
func (t *Transformer) Stats() DatasetStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := DatasetStats{
		TotalIssues:   t.total,
		Projects:      make(map[string]int, len(t.projects)),
		Statuses:      make(map[string]int, len(t.statuses)),
		Priorities:    make(map[string]int, len(t.priorities)),
		TotalComments: t.comments,
	}
	for k, v := range t.projects {
		stats.Projects[k] = v
	}
	for k, v := range t.statuses {
		stats.Statuses[k] = v
	}
	for k, v := range t.priorities {
		stats.Priorities[k] = v
	}
	if t.total > 0 {
		stats.AvgCommentsPerIssue = float64(t.comments) / float64(t.total)
	}
	return stats
}

// WriteStats writes the dataset statistics to path as indented JSON.
func (t *Transformer) WriteStats(path string) error {
	data, err := json.MarshalIndent(t.Stats(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write stats file: %w", err)
	}
	return nil
}
