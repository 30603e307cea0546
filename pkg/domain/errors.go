package domain

import (
	"errors"
	"fmt"
)

// ErrSnapshotNotFound returned by snapshot stores when nothing was persisted yet
var ErrSnapshotNotFound = errors.New("snapshot not found")

// FetchError is a network, http or deserialization failure reaching the feed
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a feed document without the expected fields
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse feed: %v", e.Err)
	}
	return fmt.Sprintf("parse feed field %q: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError is a read or write failure of the persisted snapshot
type StorageError struct {
	Op  string // load or store
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("snapshot %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DeliveryError is a downstream send failure, Sent chunks were delivered before it happened
type DeliveryError struct {
	Sent  int
	Total int
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed after %d of %d chunks: %v", e.Sent, e.Total, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
