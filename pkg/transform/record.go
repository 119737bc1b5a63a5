// Package transform converts validated Jira issues into LLM training
// records and accumulates dataset-level statistics.
package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/issueforge/jira-harvest/pkg/models"
)

// TrainingRecord is one line of the training dataset.
type TrainingRecord struct {
	IssueKey    string   `json:"issue_key"`
	Project     string   `json:"project"`
	Metadata    Metadata `json:"metadata"`
	TextContent string   `json:"text_content"`
	Tasks       Tasks    `json:"tasks"`
}

// Metadata carries the issue fields preserved alongside the text.
type Metadata struct {
	Summary      string   `json:"summary"`
	Status       string   `json:"status"`
	Priority     string   `json:"priority,omitempty"`
	Assignee     string   `json:"assignee,omitempty"`
	Reporter     string   `json:"reporter"`
	Created      string   `json:"created"`
	Updated      string   `json:"updated"`
	Resolved     string   `json:"resolved,omitempty"`
	Labels       []string `json:"labels,omitempty"`
	Components   []string `json:"components,omitempty"`
	CommentCount int      `json:"comment_count"`
}

// Tasks holds the derived training tasks.
type Tasks struct {
	Summarization  SummarizationTask  `json:"summarization"`
	Classification ClassificationTask `json:"classification"`
	QA             QATask             `json:"qa"`
}

type SummarizationTask struct {
	Input  string `json:"input"`
	Target string `json:"target"`
}

type ClassificationTask struct {
	Input  string               `json:"input"`
	Target ClassificationTarget `json:"target"`
}

type ClassificationTarget struct {
	Status   string   `json:"status"`
	Priority string   `json:"priority,omitempty"`
	Labels   []string `json:"labels,omitempty"`
}

type QATask struct {
	Context   string   `json:"context"`
	Questions []string `json:"questions"`
}

// NewRecord builds a training record from a validated issue.
func NewRecord(issue *models.Issue) TrainingRecord {
	var parts []string
	if issue.Description != "" {
		parts = append(parts, "Description: "+issue.Description)
	}
	for _, comment := range issue.Comments {
		parts = append(parts, fmt.Sprintf("Comment by %s: %s", comment.Author, comment.Body))
	}
	text := strings.Join(parts, "\n\n")

	metadata := Metadata{
		Summary:      issue.Summary,
		Status:       issue.Status,
		Priority:     issue.Priority,
		Assignee:     issue.Assignee,
		Reporter:     issue.Reporter,
		Created:      issue.Created.Format(time.RFC3339),
		Updated:      issue.Updated.Format(time.RFC3339),
		Labels:       issue.Labels,
		Components:   issue.Components,
		CommentCount: len(issue.Comments),
	}
	if !issue.Resolved.IsZero() {
		metadata.Resolved = issue.Resolved.Format(time.RFC3339)
	}

	return TrainingRecord{
		IssueKey:    issue.Key,
		Project:     issue.Project,
		Metadata:    metadata,
		TextContent: text,
		Tasks: Tasks{
			Summarization: SummarizationTask{
				Input:  text,
				Target: issue.Summary,
			},
			Classification: ClassificationTask{
				Input: text,
				Target: ClassificationTarget{
					Status:   issue.Status,
					Priority: issue.Priority,
					Labels:   issue.Labels,
				},
			},
			QA: QATask{
				Context: text,
				Questions: []string{
					fmt.Sprintf("What is the status of issue %s?", issue.Key),
					fmt.Sprintf("Who reported issue %s?", issue.Key),
					"What is the priority of this issue?",
				},
			},
		},
	}
}
