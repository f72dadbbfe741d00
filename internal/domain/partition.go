package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Partition scopes contributions and their counter to one event in one year.
type Partition struct {
	EventID string
	Year    int
}

// NewPartition validates and builds a partition key.
func NewPartition(eventID string, year int) (Partition, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return Partition{}, fmt.Errorf("%w: event id required", ErrInvalidInput)
	}
	if year <= 0 {
		return Partition{}, fmt.Errorf("%w: year must be positive", ErrInvalidInput)
	}
	return Partition{EventID: eventID, Year: year}, nil
}

// ParsePartition parses the string form of event and year.
func ParsePartition(eventID, year string) (Partition, error) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return Partition{}, fmt.Errorf("%w: invalid year %q", ErrInvalidInput, year)
	}
	return NewPartition(eventID, y)
}

// Label is the stable string form used as storage key and audit label.
func (p Partition) Label() string {
	return fmt.Sprintf("%s-%d", p.EventID, p.Year)
}

func (p Partition) String() string { return p.Label() }

// CollectionPath is the document path of the partition contributions.
func (p Partition) CollectionPath() string {
	return "events/" + p.Label() + "/contributions"
}

// DocPath is the document path of a single contribution.
func (p Partition) DocPath(id string) string {
	return p.CollectionPath() + "/" + id
}

// CounterPath is the document path of the partition sequence counter.
func (p Partition) CounterPath() string {
	return "events/" + p.Label() + "/meta/counter"
}
