package gallery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/weedbot/console/internal/models"
)

func TestSelection_Basics(t *testing.T) {
	s := NewSelection()

	s.Add("a.jpg")
	s.Add("a.jpg")
	assert.Equal(t, 1, s.Len())

	s.Toggle("b.jpg")
	assert.True(t, s.Contains("b.jpg"))
	s.Toggle("b.jpg")
	assert.False(t, s.Contains("b.jpg"))

	s.Remove("a.jpg")
	assert.Equal(t, 0, s.Len())

	s.Add("c.jpg")
	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestSelection_Snapshot(t *testing.T) {
	s := NewSelection()
	s.Add("b.jpg")
	s.Add("a.jpg")

	snap := s.Snapshot()
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, snap)

	// The snapshot is detached from the selection.
	snap[0] = "mutated.jpg"
	assert.True(t, s.Contains("a.jpg"))
}

func TestSelection_Retain(t *testing.T) {
	s := NewSelection()
	s.Add("a.jpg")
	s.Add("b.jpg")
	s.Add("c.jpg")

	removed := s.Retain(map[string]struct{}{"a.jpg": {}})

	assert.Equal(t, []string{"b.jpg", "c.jpg"}, removed)
	assert.Equal(t, []string{"a.jpg"}, s.Snapshot())
}

func TestSelection_SelectByPredicate(t *testing.T) {
	images := []models.ImageRecord{
		{Filename: "big.jpg", SizeBytes: MediumMaxBytes},
		{Filename: "small.jpg", SizeBytes: 100},
	}

	s := NewSelection()
	s.Add("big.jpg")

	added := s.SelectByPredicate(images, LargeFiles())
	assert.Equal(t, 0, added, "already-selected matches do not count")
	assert.Equal(t, 1, s.Len())

	added = s.SelectByPredicate(images, func(models.ImageRecord) bool { return true })
	assert.Equal(t, 1, added)
	assert.Equal(t, 2, s.Len())
}

func TestSelectionPredicates(t *testing.T) {
	now := time.Date(2026, time.June, 15, 14, 30, 0, 0, time.Local)

	mk := func(created time.Time, size int64) models.ImageRecord {
		return models.ImageRecord{Created: created.Unix(), SizeBytes: size}
	}

	t.Run("captured today uses local midnight", func(t *testing.T) {
		today := CapturedToday(now)
		midnight := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.Local)

		assert.True(t, today(mk(midnight, 0)))
		assert.True(t, today(mk(now, 0)))
		assert.False(t, today(mk(midnight.Add(-time.Second), 0)))
	})

	t.Run("captured this week spans seven days", func(t *testing.T) {
		week := CapturedThisWeek(now)

		assert.True(t, week(mk(now.Add(-6*24*time.Hour), 0)))
		assert.True(t, week(mk(now.Add(-7*24*time.Hour), 0)))
		assert.False(t, week(mk(now.Add(-7*24*time.Hour-time.Second), 0)))
	})

	t.Run("large files start at 2MB exactly", func(t *testing.T) {
		large := LargeFiles()

		assert.False(t, large(mk(now, MediumMaxBytes-1)))
		assert.True(t, large(mk(now, MediumMaxBytes)))
	})
}
