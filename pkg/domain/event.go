package domain

import "time"

// Event represents a single feed entry
type Event struct {
	GID      string // feed-side identifier, informational only
	Headline string
	Body     *string   // nil if the entry has no body
	Posted   time.Time // zero if the feed doesn't report it
}

// BodyText returns event body or empty string if the event has no body
func (e Event) BodyText() string {
	if e.Body == nil {
		return ""
	}
	return *e.Body
}

// HasBody reports whether the event carries a body
func (e Event) HasBody() bool {
	return e.Body != nil
}

// Headlines returns headlines of all events, in feed order
func Headlines(events []Event) []string {
	res := make([]string, 0, len(events))
	for _, e := range events {
		res = append(res, e.Headline)
	}
	return res
}
