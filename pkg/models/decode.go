package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// jiraTimeLayout is the timestamp format used by Jira REST API v2,
// e.g. "2024-03-01T12:30:45.000+0000".
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// ValidationError describes why a fetched payload failed schema
// validation. Field is the JSON path of the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed at %s: %s", e.Field, e.Reason)
}

// Wire types mirror the subset of the Jira API v2 response we consume.
// Pointers distinguish absent objects from empty ones.
type wireIssue struct {
	Key    string      `json:"key"`
	ID     string      `json:"id"`
	Fields *wireFields `json:"fields"`
}

type wireFields struct {
	Project        *wireProject  `json:"project"`
	Summary        string        `json:"summary"`
	Description    string        `json:"description"`
	Status         *wireNamed    `json:"status"`
	Priority       *wireNamed    `json:"priority"`
	Assignee       *wireUser     `json:"assignee"`
	Reporter       *wireUser     `json:"reporter"`
	Created        string        `json:"created"`
	Updated        string        `json:"updated"`
	ResolutionDate string        `json:"resolutiondate"`
	Labels         []string      `json:"labels"`
	Components     []wireNamed   `json:"components"`
	Comment        *wireComments `json:"comment"`
}

type wireProject struct {
	Key string `json:"key"`
}

type wireNamed struct {
	Name string `json:"name"`
}

type wireUser struct {
	DisplayName string `json:"displayName"`
}

type wireComments struct {
	Comments []wireComment `json:"comments"`
}

type wireComment struct {
	ID      string    `json:"id"`
	Author  *wireUser `json:"author"`
	Body    string    `json:"body"`
	Created string    `json:"created"`
	Updated string    `json:"updated"`
}

// DecodeIssue parses and validates a single-issue response body.
// The returned error is a *ValidationError for schema problems, so callers
// can distinguish a malformed payload from infrastructure failures.
func DecodeIssue(data []byte) (*Issue, error) {
	var raw wireIssue
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Field: "$", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if raw.Key == "" {
		return nil, &ValidationError{Field: "key", Reason: "missing or empty"}
	}
	if raw.Fields == nil {
		return nil, &ValidationError{Field: "fields", Reason: "missing"}
	}
	f := raw.Fields

	if f.Project == nil || f.Project.Key == "" {
		return nil, &ValidationError{Field: "fields.project.key", Reason: "missing or empty"}
	}
	if f.Summary == "" {
		return nil, &ValidationError{Field: "fields.summary", Reason: "missing or empty"}
	}
	if f.Status == nil || f.Status.Name == "" {
		return nil, &ValidationError{Field: "fields.status.name", Reason: "missing or empty"}
	}
	if f.Reporter == nil || f.Reporter.DisplayName == "" {
		return nil, &ValidationError{Field: "fields.reporter.displayName", Reason: "missing or empty"}
	}

	created, err := parseJiraTime(f.Created)
	if err != nil {
		return nil, &ValidationError{Field: "fields.created", Reason: err.Error()}
	}
	updated, err := parseJiraTime(f.Updated)
	if err != nil {
		return nil, &ValidationError{Field: "fields.updated", Reason: err.Error()}
	}

	issue := &Issue{
		Key:         raw.Key,
		ID:          raw.ID,
		Project:     f.Project.Key,
		Summary:     f.Summary,
		Description: f.Description,
		Status:      f.Status.Name,
		Created:     created,
		Updated:     updated,
		Labels:      f.Labels,
	}

	if f.Priority != nil {
		issue.Priority = f.Priority.Name
	}
	if f.Assignee != nil {
		issue.Assignee = f.Assignee.DisplayName
	}
	if f.ResolutionDate != "" {
		// Resolution date is optional; an unparsable value does not fail
		// the whole issue.
		if resolved, err := parseJiraTime(f.ResolutionDate); err == nil {
			issue.Resolved = resolved
		}
	}
	for _, c := range f.Components {
		if c.Name != "" {
			issue.Components = append(issue.Components, c.Name)
		}
	}
	if f.Comment != nil {
		issue.Comments = decodeComments(f.Comment.Comments)
	}

	return issue, nil
}

// decodeComments converts wire comments, silently dropping malformed ones.
// A single broken comment must not discard an otherwise valid issue.
func decodeComments(raw []wireComment) []Comment {
	var comments []Comment
	for _, c := range raw {
		if c.ID == "" || c.Author == nil || c.Author.DisplayName == "" || c.Body == "" {
			continue
		}
		created, err := parseJiraTime(c.Created)
		if err != nil {
			continue
		}
		comment := Comment{
			ID:      c.ID,
			Author:  c.Author.DisplayName,
			Body:    c.Body,
			Created: created,
		}
		if c.Updated != "" {
			if updated, err := parseJiraTime(c.Updated); err == nil {
				comment.Updated = updated
			}
		}
		comments = append(comments, comment)
	}
	return comments
}

type wireSearch struct {
	StartAt    int             `json:"startAt"`
	MaxResults int             `json:"maxResults"`
	Total      *int            `json:"total"`
	Issues     []wireSearchRef `json:"issues"`
}

type wireSearchRef struct {
	Key string `json:"key"`
}

// DecodeSearchPage parses one page of a JQL search response.
func DecodeSearchPage(data []byte) (*SearchPage, error) {
	var raw wireSearch
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Field: "$", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if raw.Issues == nil {
		return nil, &ValidationError{Field: "issues", Reason: "missing"}
	}

	page := &SearchPage{
		StartAt:    raw.StartAt,
		MaxResults: raw.MaxResults,
	}
	if raw.Total != nil {
		page.Total = *raw.Total
		page.TotalKnown = true
	}
	for _, ref := range raw.Issues {
		if ref.Key == "" {
			continue
		}
		page.Issues = append(page.Issues, IssueRef{Key: ref.Key})
	}
	return page, nil
}

// parseJiraTime parses Jira's millisecond-precision timestamp format,
// falling back to RFC3339 for instances behind normalizing proxies.
func parseJiraTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	if t, err := time.Parse(jiraTimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
	}
	return t, nil
}
