package domain

import (
	"encoding/json"
	"fmt"
)

// Snapshot is an ordered list of headlines observed in one poll cycle.
// It is immutable, use NewSnapshot to make one.
type Snapshot struct {
	headlines []string
}

// NewSnapshot makes a snapshot from headlines, the input slice is copied
func NewSnapshot(headlines []string) Snapshot {
	res := Snapshot{headlines: make([]string, len(headlines))}
	copy(res.headlines, headlines)
	return res
}

// SnapshotFromEvents makes a snapshot from events headlines
func SnapshotFromEvents(events []Event) Snapshot {
	return Snapshot{headlines: Headlines(events)}
}

// Headlines returns a copy of snapshot headlines
func (s Snapshot) Headlines() []string {
	res := make([]string, len(s.headlines))
	copy(res, s.headlines)
	return res
}

// Len returns number of headlines
func (s Snapshot) Len() int {
	return len(s.headlines)
}

// Equal compares snapshots by value, order matters
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.headlines) != len(other.headlines) {
		return false
	}
	for i := range s.headlines {
		if s.headlines[i] != other.headlines[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes snapshot as a JSON array of strings
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.headlines == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.headlines)
}

// UnmarshalJSON decodes snapshot from a JSON array of strings
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var headlines []string
	if err := json.Unmarshal(data, &headlines); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if headlines == nil {
		headlines = []string{}
	}
	s.headlines = headlines
	return nil
}
