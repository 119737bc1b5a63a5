package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/issueforge/jira-harvest/pkg/models"
)

const (
	searchEndpoint = "/rest/api/2/search"
	issuePrefix    = "/rest/api/2/issue/"
)

// ErrStopPagination stops ForEachIssueKey early without reporting an
// error to the caller.
var ErrStopPagination = errors.New("stop pagination")

// ForEachIssueKey streams every issue key of a project in creation-date
// order (newest first), fetching search pages lazily as the cursor
// advances. The callback runs once per key, in page order; returning
// ErrStopPagination ends the stream cleanly, any other error aborts and
// is returned as-is.
//
// A page fetch whose retries are exhausted ends the stream early and
// surfaces the failure; the stream never silently truncates.
func (c *Client) ForEachIssueKey(ctx context.Context, project string, fn func(key string) error) error {
	pageSize := c.config.PageSize
	startAt := 0

	for {
		params := url.Values{
			"jql":        []string{fmt.Sprintf("project = %s ORDER BY created DESC", project)},
			"startAt":    []string{strconv.Itoa(startAt)},
			"maxResults": []string{strconv.Itoa(pageSize)},
			"fields":     []string{"key"},
		}

		outcome := c.Do(ctx, Request{Endpoint: searchEndpoint, Params: params, Op: OpSearch})
		if !outcome.Success() {
			return fmt.Errorf("search %s at offset %d: %w",
				project, startAt, failureError(searchEndpoint, outcome))
		}

		page, err := models.DecodeSearchPage(outcome.Body)
		if err != nil {
			return fmt.Errorf("search %s at offset %d: %w", project, startAt, err)
		}

		for _, ref := range page.Issues {
			if err := fn(ref.Key); err != nil {
				if errors.Is(err, ErrStopPagination) {
					return nil
				}
				return err
			}
		}

		// Exhaustion: a short page, or the cursor passing the server-
		// reported total.
		if len(page.Issues) < pageSize {
			return nil
		}
		startAt += pageSize
		if page.TotalKnown && startAt >= page.Total {
			return nil
		}

		c.logger.Debug().
			Str("project", project).
			Int("start_at", startAt).
			Msg("Advancing search cursor")
	}
}

// FetchIssue fetches full details for one issue, comments included.
func (c *Client) FetchIssue(ctx context.Context, key string) Outcome {
	params := url.Values{
		"expand": []string{"comments"},
		"fields": []string{"*all"},
	}
	return c.Do(ctx, Request{Endpoint: issuePrefix + key, Params: params, Op: OpIssue})
}
