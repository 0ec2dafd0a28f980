package gallery

import (
	"sort"
	"time"

	"github.com/weedbot/console/internal/models"
)

// Size category boundaries, half-open on the right: a file of exactly
// 500KB is medium, exactly 2MB is large.
const (
	SmallMaxBytes  = 500 * 1024
	MediumMaxBytes = 2 * 1024 * 1024
)

// Selection is a set of selected filenames. It has no server
// representation and no knowledge of the mirror; the synchronizer is
// responsible for pruning entries whose files disappear server-side.
type Selection struct {
	files map[string]struct{}
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{files: make(map[string]struct{})}
}

// Add puts filename into the selection.
func (s *Selection) Add(filename string) {
	s.files[filename] = struct{}{}
}

// Remove takes filename out of the selection.
func (s *Selection) Remove(filename string) {
	delete(s.files, filename)
}

// Toggle flips filename's membership.
func (s *Selection) Toggle(filename string) {
	if _, ok := s.files[filename]; ok {
		delete(s.files, filename)
	} else {
		s.files[filename] = struct{}{}
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.files = make(map[string]struct{})
}

// Contains reports membership.
func (s *Selection) Contains(filename string) bool {
	_, ok := s.files[filename]
	return ok
}

// Len returns the number of selected filenames.
func (s *Selection) Len() int {
	return len(s.files)
}

// SelectAll adds every visible filename.
func (s *Selection) SelectAll(visible []string) {
	for _, f := range visible {
		s.files[f] = struct{}{}
	}
}

// SelectByPredicate adds the filename of every image matching pred and
// returns how many were added that were not already selected.
// Evaluation order is irrelevant; this is a pure set union.
func (s *Selection) SelectByPredicate(images []models.ImageRecord, pred func(models.ImageRecord) bool) int {
	added := 0
	for _, img := range images {
		if !pred(img) {
			continue
		}
		if _, ok := s.files[img.Filename]; !ok {
			added++
		}
		s.files[img.Filename] = struct{}{}
	}
	return added
}

// Snapshot returns the selected filenames, sorted for determinism.
// Mutating the returned slice does not affect the selection, so an
// in-flight bulk operation keeps the membership it was invoked with.
func (s *Selection) Snapshot() []string {
	out := make([]string, 0, len(s.files))
	for f := range s.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Retain drops every filename not present in keep and returns the
// removed filenames. Used by the synchronizer to intersect the
// selection with a freshly mirrored list.
func (s *Selection) Retain(keep map[string]struct{}) []string {
	var removed []string
	for f := range s.files {
		if _, ok := keep[f]; !ok {
			removed = append(removed, f)
			delete(s.files, f)
		}
	}
	sort.Strings(removed)
	return removed
}

// CapturedToday matches images whose capture time falls on the current
// local calendar date. Wall-clock bucketing for display purposes only.
func CapturedToday(now time.Time) func(models.ImageRecord) bool {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return func(img models.ImageRecord) bool {
		return !img.CreatedAt().Before(midnight)
	}
}

// CapturedThisWeek matches images captured within the last 7 days.
func CapturedThisWeek(now time.Time) func(models.ImageRecord) bool {
	cutoff := now.Add(-7 * 24 * time.Hour)
	return func(img models.ImageRecord) bool {
		return !img.CreatedAt().Before(cutoff)
	}
}

// LargeFiles matches images of at least 2MB.
func LargeFiles() func(models.ImageRecord) bool {
	return func(img models.ImageRecord) bool {
		return img.SizeBytes >= MediumMaxBytes
	}
}
