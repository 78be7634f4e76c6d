package models

import (
	"iter"
	"slices"
	"time"
)

// Engagement is one customer interaction inside a reporting window.
type Engagement struct {
	ID        string   `json:"id"`
	Customer  string   `json:"customer"`
	Date      Date     `json:"date"`
	Notes     string   `json:"notes"`
	Feedback  string   `json:"feedback,omitempty"`
	Status    string   `json:"status,omitempty"`
	Sentiment float64  `json:"sentiment"`
	Topics    []string `json:"topics"`
	AtRisk    bool     `json:"risk"`
}

// HasTopic reports whether topic is one of the engagement's labels.
func (e Engagement) HasTopic(topic string) bool {
	return slices.Contains(e.Topics, topic)
}

func (e Engagement) clone() Engagement {
	e.Topics = slices.Clone(e.Topics)
	return e
}

// Snapshot is the immutable, ordered set of engagements for one dashboard load.
// It is replaced wholesale on refresh and never modified in place.
type Snapshot struct {
	id          string
	source      string
	fetchedAt   time.Time
	engagements []Engagement
}

// NewSnapshot copies engagements into a new Snapshot.
func NewSnapshot(id, source string, fetchedAt time.Time, engagements []Engagement) Snapshot {
	copied := make([]Engagement, len(engagements))
	for i, e := range engagements {
		copied[i] = e.clone()
	}
	return Snapshot{id: id, source: source, fetchedAt: fetchedAt, engagements: copied}
}

// ID returns the snapshot identifier.
func (s Snapshot) ID() string { return s.id }

// Source names where the snapshot was loaded from.
func (s Snapshot) Source() string { return s.source }

// FetchedAt returns when the snapshot was materialised.
func (s Snapshot) FetchedAt() time.Time { return s.fetchedAt }

// Len returns the number of engagements.
func (s Snapshot) Len() int { return len(s.engagements) }

// IsZero reports whether the snapshot was never loaded.
func (s Snapshot) IsZero() bool { return s.id == "" && len(s.engagements) == 0 }

// At returns a copy of the i-th engagement.
func (s Snapshot) At(i int) Engagement { return s.engagements[i].clone() }

// All iterates engagements in snapshot order. Yielded topic slices are shared
// with the snapshot and must be treated as read-only.
func (s Snapshot) All() iter.Seq2[int, Engagement] {
	return func(yield func(int, Engagement) bool) {
		for i, e := range s.engagements {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Engagements returns a deep copy of the snapshot contents.
func (s Snapshot) Engagements() []Engagement {
	out := make([]Engagement, len(s.engagements))
	for i, e := range s.engagements {
		out[i] = e.clone()
	}
	return out
}
