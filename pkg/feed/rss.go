package feed

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/umputun/newsrelay/pkg/domain"
)

// RSSSource fetches RSS/Atom feeds. Item html is reduced to plain text so it can go through
// the bracket markup transcoder like any other body.
type RSSSource struct {
	client    *http.Client
	userAgent string
	policy    *bluemonday.Policy
}

// NewRSSSource makes an rss/atom feed source
func NewRSSSource(timeout time.Duration, userAgent string) *RSSSource {
	return &RSSSource{client: newHTTPClient(timeout), userAgent: userAgent, policy: bluemonday.StrictPolicy()}
}

// Fetch retrieves and parses the feed, all failures are returned as *domain.FetchError
func (s *RSSSource) Fetch(ctx context.Context, url string) ([]domain.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	addBrowserHeaders(req, acceptFeed)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{URL: url, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: fmt.Errorf("parse feed: %w", err)}
	}

	res := make([]domain.Event, 0, len(feed.Items))
	for _, item := range feed.Items {
		ev := domain.Event{GID: item.GUID, Headline: strings.TrimSpace(item.Title)}
		if ev.GID == "" {
			ev.GID = item.Link
		}

		raw := item.Content
		if raw == "" {
			raw = item.Description
		}
		if raw != "" {
			body := s.plainText(raw)
			ev.Body = &body
		}

		if item.PublishedParsed != nil {
			ev.Posted = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			ev.Posted = *item.UpdatedParsed
		}
		res = append(res, ev)
	}
	return res, nil
}

// lineBreaks keeps paragraph and line breaks when html tags are stripped
var lineBreaks = strings.NewReplacer("</p>", "</p>\n", "<br>", "\n", "<br/>", "\n", "<br />", "\n")

// plainText strips all html tags and decodes entities
func (s *RSSSource) plainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(lineBreaks.Replace(raw))))
}
