// Package models defines the typed data model for scraped Jira issues and
// the validating decode from Jira REST API v2 JSON.
package models

import (
	"time"
)

// Comment is a single comment on a Jira issue.
type Comment struct {
	ID      string    `json:"id"`
	Author  string    `json:"author"`
	Body    string    `json:"body"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated,omitzero"`
}

// Issue is a validated Jira issue. Only issues that passed Decode's schema
// checks are handed downstream, so every Issue carries a non-empty Key,
// Project, Status and Reporter.
type Issue struct {
	Key         string    `json:"key"`
	ID          string    `json:"id"`
	Project     string    `json:"project"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority,omitempty"`
	Assignee    string    `json:"assignee,omitempty"`
	Reporter    string    `json:"reporter"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	Resolved    time.Time `json:"resolved,omitzero"`
	Labels      []string  `json:"labels,omitempty"`
	Components  []string  `json:"components,omitempty"`
	Comments    []Comment `json:"comments,omitempty"`
}

// HasContent reports whether the issue carries any trainable text beyond
// its metadata. Issues without a description and without comments produce
// empty training records and are not emitted.
func (i *Issue) HasContent() bool {
	return i.Description != "" || len(i.Comments) > 0
}

// IssueRef is one entry of a paginated search response. Search requests
// project only the issue key; details are fetched separately.
type IssueRef struct {
	Key string `json:"key"`
}

// SearchPage is one page of a paginated JQL search.
type SearchPage struct {
	StartAt    int
	MaxResults int
	Issues     []IssueRef

	// Total is the server-reported total match count. Jira omits it on
	// some instances; TotalKnown distinguishes "0 matches" from "not
	// reported".
	Total      int
	TotalKnown bool
}
