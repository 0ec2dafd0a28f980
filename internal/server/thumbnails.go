package server

import (
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// Thumbnailer renders downscaled JPEG previews for the gallery grid so
// clients on the field network do not pull full captures just to show
// tiles.
type Thumbnailer struct {
	maxDim  int
	quality int
}

// NewThumbnailer creates a thumbnailer. Zero values fall back to a
// 200px bound at quality 80.
func NewThumbnailer(maxDim, quality int) *Thumbnailer {
	if maxDim <= 0 {
		maxDim = 200
	}
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &Thumbnailer{maxDim: maxDim, quality: quality}
}

// Render decodes the image at path, fits it into the configured
// bounding box and writes it as JPEG. EXIF orientation is applied
// during decode.
func (t *Thumbnailer) Render(w io.Writer, path string) error {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	thumb := imaging.Fit(img, t.maxDim, t.maxDim, imaging.Lanczos)
	if err := imaging.Encode(w, thumb, imaging.JPEG, imaging.JPEGQuality(t.quality)); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return nil
}
