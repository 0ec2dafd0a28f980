package server

import (
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// captureTime returns the image's EXIF DateTimeOriginal when present,
// falling back to the file's modification time. The rover camera
// usually stamps EXIF, but files copied onto the SD card may not carry
// it.
func captureTime(path string, modTime time.Time) time.Time {
	f, err := os.Open(path)
	if err != nil {
		return modTime
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return modTime
	}
	taken, err := x.DateTime()
	if err != nil {
		return modTime
	}
	return taken
}
