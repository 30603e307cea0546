package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/umputun/newsrelay/pkg/domain"
)

// maxDocumentSize limits the feed response body
const maxDocumentSize = 16 * 1024 * 1024

// JSONSource fetches Steam-style event lists, i.e. {"events":[{"announcement_body":{...}}]}
type JSONSource struct {
	client    *http.Client
	userAgent string
}

// NewJSONSource makes a json feed source
func NewJSONSource(timeout time.Duration, userAgent string) *JSONSource {
	return &JSONSource{client: newHTTPClient(timeout), userAgent: userAgent}
}

// Fetch retrieves the document and extracts events. Network, http and json syntax problems are
// returned as *domain.FetchError. A valid document without the events list gives an empty
// list and *domain.ParseError.
func (s *JSONSource) Fetch(ctx context.Context, url string) ([]domain.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	addBrowserHeaders(req, acceptJSON)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{URL: url, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	events, err := ParseEvents(data)
	if err != nil {
		var pe *domain.ParseError
		if errors.As(err, &pe) {
			return events, err
		}
		return nil, &domain.FetchError{URL: url, Err: err}
	}
	return events, nil
}

// ParseEvents extracts events from a Steam-style json document.
// Missing or mistyped fields of a single event degrade to empty values, the event keeps its
// position. A missing or non-array events field gives an empty list with *domain.ParseError.
func ParseEvents(data []byte) ([]domain.Event, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	rawEvents, ok := doc["events"]
	if !ok {
		return []domain.Event{}, &domain.ParseError{Field: "events", Err: errors.New("missing")}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawEvents, &items); err != nil {
		return []domain.Event{}, &domain.ParseError{Field: "events", Err: err}
	}

	res := make([]domain.Event, 0, len(items))
	for _, raw := range items {
		res = append(res, parseEvent(raw))
	}
	return res, nil
}

func parseEvent(raw json.RawMessage) domain.Event {
	var item struct {
		AnnouncementBody map[string]any `json:"announcement_body"`
	}
	if err := json.Unmarshal(raw, &item); err != nil || item.AnnouncementBody == nil {
		return domain.Event{}
	}

	ab := item.AnnouncementBody
	res := domain.Event{}
	res.Headline, _ = ab["headline"].(string)
	res.GID, _ = ab["gid"].(string)
	if body, ok := ab["body"].(string); ok {
		res.Body = &body
	}
	if ts, ok := ab["posttime"].(float64); ok && ts > 0 {
		res.Posted = time.Unix(int64(ts), 0).UTC()
	}
	return res
}
