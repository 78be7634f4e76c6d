package engine

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/engagestack/engagement-intel/internal/models"
)

// DefaultPageSize is used by Page when size is not positive.
const DefaultPageSize = 20

// Filter returns the engagements whose customer or notes contain query,
// compared case-insensitively as plain substrings. An empty query matches
// everything. Snapshot order is preserved and snap is never modified.
func Filter(snap models.Snapshot, query string) []models.Engagement {
	if query == "" {
		return snap.Engagements()
	}

	// Casers carry state and are not safe to share between goroutines.
	lower := cases.Lower(language.Und)
	needle := lower.String(query)

	matches := make([]models.Engagement, 0)
	for i, e := range snap.All() {
		if strings.Contains(lower.String(e.Customer), needle) || strings.Contains(lower.String(e.Notes), needle) {
			matches = append(matches, snap.At(i))
		}
	}
	return matches
}

// Page slices records into 1-based pages. Out-of-range pages are empty.
func Page(records []models.Engagement, page, size int) []models.Engagement {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	// Compare before multiplying so huge page numbers cannot overflow.
	if len(records) == 0 || page-1 > (len(records)-1)/size {
		return []models.Engagement{}
	}
	start := (page - 1) * size
	end := start + min(size, len(records)-start)
	return records[start:end]
}
