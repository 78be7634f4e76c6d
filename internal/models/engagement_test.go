package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotIsolation(t *testing.T) {
	input := []Engagement{{ID: "a", Date: "2024-01-01", Topics: []string{"delta lake"}}}
	snap := NewSnapshot("s1", "test", time.Now(), input)

	input[0].Topics[0] = "mutated"
	assert.Equal(t, "delta lake", snap.At(0).Topics[0])

	copied := snap.Engagements()
	copied[0].Topics[0] = "mutated"
	assert.Equal(t, "delta lake", snap.At(0).Topics[0])
	assert.True(t, snap.At(0).HasTopic("delta lake"))
}

func TestSnapshotZero(t *testing.T) {
	assert.True(t, Snapshot{}.IsZero())
	assert.False(t, NewSnapshot("s", "test", time.Now(), nil).IsZero())
}

func TestParseDate(t *testing.T) {
	cases := map[string]Date{
		"2024-01-01":           "2024-01-01",
		" 2024-02-29 ":         "2024-02-29",
		"2024-03-05T23:59:00Z": "2024-03-05",
		"2024-03-05 08:00:00":  "2024-03-05",
	}
	for in, want := range cases {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "yesterday", "2023-02-29", "01/02/2024"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestDateOrdering(t *testing.T) {
	assert.True(t, Date("2023-12-31").Before("2024-01-01"))
	assert.False(t, Date("2024-01-01").Before("2024-01-01"))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Date("2024-01-02").Time())
}

func TestDistributionShares(t *testing.T) {
	d := SentimentDistribution{Positive: 1, Neutral: 1, Negative: 2}
	assert.Equal(t, 4, d.Total())
	assert.InDelta(t, 0.5, d.Share(SentimentNegative), 1e-9)
	assert.Equal(t, 0.0, SentimentDistribution{}.Share(SentimentPositive))
	assert.Equal(t, map[string]int{"positive": 1, "neutral": 1, "negative": 2}, d.Map())
}
