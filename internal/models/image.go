package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ImageRecord represents one captured image as known to the console.
// Filenames are assigned by the server at capture time (img_<timestamp>.jpg)
// and are unique within a gallery listing.
type ImageRecord struct {
	Filename  string   `json:"filename"`
	SizeBytes int64    `json:"size"`
	Created   int64    `json:"created"` // Unix seconds, server clock
	Tags      []string `json:"tags,omitempty"`
	URL       string   `json:"url,omitempty"`
}

// CreatedAt returns the capture time as a time.Time.
func (r ImageRecord) CreatedAt() time.Time {
	return time.Unix(r.Created, 0)
}

// HasTag reports whether the record carries the given tag.
func (r ImageRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ListResponse is the payload of GET /api/gallery/images.
type ListResponse struct {
	Images      []ImageRecord `json:"images"`
	Count       int           `json:"count"`
	TotalSizeMB float64       `json:"total_size_mb"`
}

// BulkFilesRequest is the body of delete-selected and download-selected.
type BulkFilesRequest struct {
	Files []string `json:"files"`
}

// TagRequest is the body of tag-images.
type TagRequest struct {
	Files []string `json:"files"`
	Tag   string   `json:"tag"`
}

// DeleteResult is the response of delete-selected.
type DeleteResult struct {
	Deleted  int      `json:"deleted"`
	Failures []string `json:"failures,omitempty"`
}

// TagResult is the response of tag-images.
type TagResult struct {
	Tagged int `json:"tagged"`
}

// ClearResult is the response of clear.
type ClearResult struct {
	Deleted int `json:"deleted"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Errors
var (
	ErrEmptyFilename    = errors.New("filename cannot be empty")
	ErrImageNotFound    = errors.New("image not found")
	ErrInvalidImageName = errors.New("invalid image filename")
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// IsImageFilename reports whether filename has a recognized image extension.
func IsImageFilename(filename string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ValidateFilename rejects empty names, path traversal and non-image files.
// The server never accepts a client-invented path component.
func ValidateFilename(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return ErrEmptyFilename
	}
	if filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidImageName, filename)
	}
	if !IsImageFilename(filename) {
		return fmt.Errorf("%w: %q", ErrInvalidImageName, filename)
	}
	return nil
}
