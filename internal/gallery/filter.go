package gallery

import (
	"time"

	"github.com/weedbot/console/internal/models"
)

// DateRange narrows images by capture date.
type DateRange string

const (
	DateAll   DateRange = "all"
	DateToday DateRange = "today"
	DateWeek  DateRange = "week"
	DateMonth DateRange = "month"
)

// SizeRange narrows images by file size.
type SizeRange string

const (
	SizeAll    SizeRange = "all"
	SizeSmall  SizeRange = "small"  // [0, 500KB)
	SizeMedium SizeRange = "medium" // [500KB, 2MB)
	SizeLarge  SizeRange = "large"  // [2MB, inf)
)

// Criteria is the declarative filter configuration. Both axes combine
// with logical AND; "all" disables an axis.
type Criteria struct {
	Date DateRange
	Size SizeRange
}

// DefaultCriteria filters nothing.
func DefaultCriteria() Criteria {
	return Criteria{Date: DateAll, Size: SizeAll}
}

// Visible derives the visible subset of images under c. It is pure and
// order-preserving: the input slice is never mutated or re-sorted, so
// it is safe to call on every render.
func Visible(images []models.ImageRecord, c Criteria, now time.Time) []models.ImageRecord {
	out := make([]models.ImageRecord, 0, len(images))
	for _, img := range images {
		if matchesDate(img, c.Date, now) && matchesSize(img, c.Size) {
			out = append(out, img)
		}
	}
	return out
}

func matchesDate(img models.ImageRecord, dr DateRange, now time.Time) bool {
	switch dr {
	case DateToday:
		return CapturedToday(now)(img)
	case DateWeek:
		return CapturedThisWeek(now)(img)
	case DateMonth:
		return !img.CreatedAt().Before(now.Add(-30 * 24 * time.Hour))
	default:
		return true
	}
}

func matchesSize(img models.ImageRecord, sr SizeRange) bool {
	switch sr {
	case SizeSmall:
		return img.SizeBytes < SmallMaxBytes
	case SizeMedium:
		return img.SizeBytes >= SmallMaxBytes && img.SizeBytes < MediumMaxBytes
	case SizeLarge:
		return img.SizeBytes >= MediumMaxBytes
	default:
		return true
	}
}
