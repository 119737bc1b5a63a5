// Package testutil provides testing utilities for the Jira harvest engine.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	searchPath  = "/rest/api/2/search"
	issuePrefix = "/rest/api/2/issue/"
)

var projectPattern = regexp.MustCompile(`project = (\S+)`)

// MockResponse defines the behavior for a mock Jira endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockJira is a configurable mock Jira server. It serves a paginated JQL
// search over per-project key lists and full issue documents per key, and
// supports failure injection for both.
type MockJira struct {
	server *httptest.Server

	mu       sync.RWMutex
	projects map[string][]string
	issues   map[string]MockResponse
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	SearchCount  int
	FetchCounts  map[string]int
}

// NewMockJira creates a new mock Jira server.
func NewMockJira() *MockJira {
	mock := &MockJira{
		projects:    make(map[string][]string),
		issues:      make(map[string]MockResponse),
		handlers:    make(map[string]func(w http.ResponseWriter, r *http.Request)),
		FetchCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		if r.URL.Path == searchPath {
			mock.SearchCount++
		}
		if key, ok := strings.CutPrefix(r.URL.Path, issuePrefix); ok {
			mock.FetchCounts[key]++
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockJira) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockJira) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockJira) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.SearchCount = 0
	m.FetchCounts = make(map[string]int)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockJira) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetFetchCount returns how often the issue endpoint was hit for key.
func (m *MockJira) GetFetchCount(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.FetchCounts[key]
}

// SetProject registers the ordered key list the search endpoint pages
// through for a project.
func (m *MockJira) SetProject(project string, keys []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project] = keys
}

// SetIssue registers the canned response for one issue key.
func (m *MockJira) SetIssue(key string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues[key] = resp
}

// SetValidIssue registers a well-formed issue document for key, built by
// IssueJSON.
func (m *MockJira) SetValidIssue(project, key string) {
	m.SetIssue(key, MockResponse{StatusCode: http.StatusOK, Body: IssueJSON(project, key)})
}

// SetHandler sets a custom handler for a specific path, overriding the
// built-in search and issue behavior.
func (m *MockJira) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockJira) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

func (m *MockJira) defaultHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == searchPath {
		m.handleSearch(w, r)
		return
	}
	if key, ok := strings.CutPrefix(r.URL.Path, issuePrefix); ok {
		m.handleIssue(w, key)
		return
	}
	http.NotFound(w, r)
}

func (m *MockJira) handleSearch(w http.ResponseWriter, r *http.Request) {
	match := projectPattern.FindStringSubmatch(r.URL.Query().Get("jql"))
	if match == nil {
		http.Error(w, `{"errorMessages":["jql must filter on a project"]}`, http.StatusBadRequest)
		return
	}

	m.mu.RLock()
	keys := m.projects[match[1]]
	m.mu.RUnlock()

	startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
	maxResults, err := strconv.Atoi(r.URL.Query().Get("maxResults"))
	if err != nil || maxResults <= 0 {
		maxResults = 50
	}

	end := min(startAt+maxResults, len(keys))
	issues := make([]map[string]string, 0, maxResults)
	for _, key := range keys[max(startAt, 0):end] {
		issues = append(issues, map[string]string{"key": key})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"startAt":    startAt,
		"maxResults": maxResults,
		"total":      len(keys),
		"issues":     issues,
	})
}

func (m *MockJira) handleIssue(w http.ResponseWriter, key string) {
	m.mu.RLock()
	resp, ok := m.issues[key]
	m.mu.RUnlock()

	if !ok {
		http.Error(w, `{"errorMessages":["Issue does not exist"]}`, http.StatusNotFound)
		return
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// IssueJSON builds a minimal but schema-valid Jira issue document.
func IssueJSON(project, key string) string {
	return fmt.Sprintf(`{
		"key": %q,
		"id": "10001",
		"fields": {
			"project": {"key": %q},
			"summary": "Sample issue %s",
			"description": "A reproducible description for %s.",
			"status": {"name": "Open"},
			"priority": {"name": "Major"},
			"reporter": {"displayName": "Test Reporter"},
			"created": "2024-01-15T10:30:00.000+0000",
			"updated": "2024-01-16T11:00:00.000+0000",
			"labels": ["test"],
			"comment": {"comments": [
				{"id": "200", "author": {"displayName": "Commenter"},
				 "body": "Looking into it.",
				 "created": "2024-01-15T12:00:00.000+0000"}
			]}
		}
	}`, key, project, key, key)
}

// InvalidIssueJSON builds an issue document missing a required field
// (status), which fails schema validation after a successful fetch.
func InvalidIssueJSON(project, key string) string {
	return fmt.Sprintf(`{
		"key": %q,
		"fields": {
			"project": {"key": %q},
			"summary": "Broken issue",
			"reporter": {"displayName": "Test Reporter"},
			"created": "2024-01-15T10:30:00.000+0000",
			"updated": "2024-01-16T11:00:00.000+0000"
		}
	}`, key, project)
}
