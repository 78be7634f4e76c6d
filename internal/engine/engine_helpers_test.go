package engine

import (
	"time"

	"github.com/engagestack/engagement-intel/internal/models"
)

func snapshotOf(engagements ...models.Engagement) models.Snapshot {
	return models.NewSnapshot("snap-test", "test", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), engagements)
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
