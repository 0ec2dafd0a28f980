package gallery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/weedbot/console/internal/models"
)

func TestVisible_SizeBoundaries(t *testing.T) {
	now := time.Now()
	images := []models.ImageRecord{
		{Filename: "tiny.jpg", SizeBytes: SmallMaxBytes - 1, Created: now.Unix()},
		{Filename: "at_small_edge.jpg", SizeBytes: SmallMaxBytes, Created: now.Unix()},
		{Filename: "at_large_edge.jpg", SizeBytes: MediumMaxBytes, Created: now.Unix()},
	}

	names := func(c Criteria) []string {
		var out []string
		for _, img := range Visible(images, c, now) {
			out = append(out, img.Filename)
		}
		return out
	}

	// Boundaries are half-open: 500KB exactly is medium, 2MB exactly is
	// large, and no file lands in two categories.
	assert.Equal(t, []string{"tiny.jpg"}, names(Criteria{Date: DateAll, Size: SizeSmall}))
	assert.Equal(t, []string{"at_small_edge.jpg"}, names(Criteria{Date: DateAll, Size: SizeMedium}))
	assert.Equal(t, []string{"at_large_edge.jpg"}, names(Criteria{Date: DateAll, Size: SizeLarge}))
}

func TestVisible_DateRanges(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.Local)
	images := []models.ImageRecord{
		{Filename: "today.jpg", Created: now.Add(-time.Hour).Unix()},
		{Filename: "this_week.jpg", Created: now.Add(-3 * 24 * time.Hour).Unix()},
		{Filename: "this_month.jpg", Created: now.Add(-20 * 24 * time.Hour).Unix()},
		{Filename: "ancient.jpg", Created: now.Add(-90 * 24 * time.Hour).Unix()},
	}

	cases := []struct {
		date DateRange
		want int
	}{
		{DateAll, 4},
		{DateToday, 1},
		{DateWeek, 2},
		{DateMonth, 3},
	}
	for _, tc := range cases {
		t.Run(string(tc.date), func(t *testing.T) {
			got := Visible(images, Criteria{Date: tc.date, Size: SizeAll}, now)
			assert.Len(t, got, tc.want)
		})
	}
}

func TestVisible_CombinesAxesWithAnd(t *testing.T) {
	now := time.Now()
	images := []models.ImageRecord{
		{Filename: "recent_large.jpg", SizeBytes: 3 * 1024 * 1024, Created: now.Unix()},
		{Filename: "recent_small.jpg", SizeBytes: 1024, Created: now.Unix()},
		{Filename: "old_large.jpg", SizeBytes: 3 * 1024 * 1024, Created: now.Add(-90 * 24 * time.Hour).Unix()},
	}

	got := Visible(images, Criteria{Date: DateToday, Size: SizeLarge}, now)

	assert.Len(t, got, 1)
	assert.Equal(t, "recent_large.jpg", got[0].Filename)
}

func TestVisible_PreservesOrderAndInput(t *testing.T) {
	now := time.Now()
	images := []models.ImageRecord{
		{Filename: "c.jpg", SizeBytes: 1, Created: now.Unix()},
		{Filename: "a.jpg", SizeBytes: 1, Created: now.Unix()},
		{Filename: "b.jpg", SizeBytes: 1, Created: now.Unix()},
	}

	got := Visible(images, DefaultCriteria(), now)

	assert.Equal(t, images, got, "derivation must not re-sort")
	assert.Equal(t, "c.jpg", images[0].Filename, "input slice is never mutated")
}

func TestDefaultCriteria(t *testing.T) {
	c := DefaultCriteria()
	assert.Equal(t, DateAll, c.Date)
	assert.Equal(t, SizeAll, c.Size)
}
