package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engagestack/engagement-intel/internal/models"
)

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	d, err := NewDecoder(nil)
	require.NoError(t, err)
	d.now = func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) }
	d.newID = func() string { return "snap-1" }
	return d
}

func rawRecords(t *testing.T, docs ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		out = append(out, json.RawMessage(d))
	}
	return out
}

func TestDecodeNormalisesShapes(t *testing.T) {
	d := newTestDecoder(t)
	res := d.Decode("test", rawRecords(t,
		`{"id":"ENG-001","customer":"Acme","date":"2024-01-01","notes":"Photon rollout","sentiment":0.8,"topics":["Photon"," delta lake ","photon"]}`,
		`{"id":2,"customer":"Globex","date":"2024-01-02T10:00:00Z","sentiment":{"sentiment_type":"negative"},"technologies":["Unity Catalog"],"status":"at-risk"}`,
		`{"id":"ENG-003","customer":"Initech","date":"2024-01-03","sentiment":{"sentiment_type":"positive","sentiment_score":0.9},"topic":{"topic":"Streaming","confidence":0.8},"risk":true}`,
	))

	require.Empty(t, res.Dropped)
	snap := res.Snapshot
	require.Equal(t, 3, snap.Len())
	assert.Equal(t, "snap-1", snap.ID())
	assert.Equal(t, "test", snap.Source())

	first := snap.At(0)
	assert.Equal(t, []string{"delta lake", "photon"}, first.Topics)
	assert.InDelta(t, 0.8, first.Sentiment, 1e-9)
	assert.False(t, first.AtRisk)

	second := snap.At(1)
	assert.Equal(t, "2", second.ID)
	assert.Equal(t, models.Date("2024-01-02"), second.Date)
	assert.InDelta(t, 0.3, second.Sentiment, 1e-9)
	assert.True(t, second.AtRisk)
	assert.Equal(t, []string{"unity catalog"}, second.Topics)

	third := snap.At(2)
	assert.InDelta(t, 0.9, third.Sentiment, 1e-9)
	assert.Equal(t, []string{"streaming"}, third.Topics)
	assert.True(t, third.AtRisk)
}

func TestDecodeDropsInvalidRecords(t *testing.T) {
	d := newTestDecoder(t)
	res := d.Decode("test", rawRecords(t,
		`{"id":"ok","customer":"Acme","date":"2024-01-01","sentiment":0.5}`,
		`{"id":"high","customer":"Acme","date":"2024-01-01","sentiment":1.2}`,
		`{"id":"nosentiment","customer":"Acme","date":"2024-01-01"}`,
		`{"id":"baddate","customer":"Acme","date":"2024-13-45","sentiment":0.5}`,
		`{"id":"ok","customer":"Other","date":"2024-01-02","sentiment":0.6}`,
		`not json`,
		`{"id":"blank","customer":"   ","date":"2024-01-01","sentiment":0.5}`,
	))

	assert.Equal(t, 1, res.Snapshot.Len())
	require.Len(t, res.Dropped, 6)

	kinds := make(map[string]string, len(res.Dropped))
	for _, drop := range res.Dropped {
		kinds[drop.ID] = drop.Kind
	}
	assert.Equal(t, models.InvalidSchema, kinds["high"])
	assert.Equal(t, models.InvalidSchema, kinds["nosentiment"])
	assert.Equal(t, models.InvalidDate, kinds["baddate"])
	assert.Equal(t, models.InvalidDuplicate, kinds["ok"])
	assert.Equal(t, models.InvalidMalformed, kinds[""])
	assert.Equal(t, models.InvalidSchema, kinds["blank"])
	assert.Equal(t, 5, res.Dropped[4].Index)
}

func TestDecodeRejectsBlankIDs(t *testing.T) {
	res := newTestDecoder(t).Decode("test", rawRecords(t,
		`{"id":"   ","customer":"Acme","date":"2024-01-01","sentiment":0.5}`,
		`{"id":" ","customer":"Globex","date":"2024-01-02","sentiment":0.6}`,
		`{"id":"keep","customer":"Initech","date":"2024-01-03","sentiment":0.7}`,
	))

	require.Equal(t, 1, res.Snapshot.Len())
	assert.Equal(t, "keep", res.Snapshot.At(0).ID)
	require.Len(t, res.Dropped, 2)
	for _, drop := range res.Dropped {
		assert.Equal(t, models.InvalidSchema, drop.Kind, "blank ids are invalid, not duplicates")
		assert.Contains(t, drop.Reason, "/id")
	}
}

func TestDecodeEmpty(t *testing.T) {
	res := newTestDecoder(t).Decode("test", nil)
	assert.Equal(t, 0, res.Snapshot.Len())
	assert.Empty(t, res.Dropped)
	assert.False(t, res.Snapshot.IsZero())
}

func TestNormalizeTopics(t *testing.T) {
	assert.Equal(t, []string{"mlflow", "pyspark"}, NormalizeTopics([]string{"PySpark", "", " MLflow", "pyspark"}))
	assert.Empty(t, NormalizeTopics(nil))
}
