// Package feed retrieves feed events over http. Steam-style JSON event lists and
// RSS/Atom feeds are supported, both produce domain events in feed order, newest first.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/umputun/newsrelay/pkg/domain"
)

// Format of the feed document
type Format string

// supported formats
const (
	FormatSteam Format = "steam"
	FormatRSS   Format = "rss"
)

// Source fetches events from the feed url
type Source interface {
	Fetch(ctx context.Context, url string) ([]domain.Event, error)
}

// NewSource makes a source for the given format, empty format means steam
func NewSource(format Format, timeout time.Duration, userAgent string) (Source, error) {
	switch format {
	case FormatSteam, "":
		return NewJSONSource(timeout, userAgent), nil
	case FormatRSS:
		return NewRSSSource(timeout, userAgent), nil
	default:
		return nil, fmt.Errorf("unsupported feed format %q", format)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
