package server

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/weedbot/console/internal/models"
)

// Store is the directory-backed image store. The rover camera writes
// img_<timestamp>.jpg files into the directory; the store only ever
// reads and deletes, it never invents filenames.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// List scans the directory and returns image records newest first,
// together with the total size in bytes. Files that disappear mid-scan
// are skipped.
func (s *Store) List() ([]models.ImageRecord, int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, 0, fmt.Errorf("read image directory: %w", err)
	}

	images := make([]models.ImageRecord, 0, len(entries))
	var totalSize int64
	for _, entry := range entries {
		if entry.IsDir() || !models.IsImageFilename(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		images = append(images, models.ImageRecord{
			Filename:  entry.Name(),
			SizeBytes: info.Size(),
			Created:   captureTime(path, info.ModTime()).Unix(),
		})
		totalSize += info.Size()
	}

	sort.Slice(images, func(i, j int) bool {
		if images[i].Created != images[j].Created {
			return images[i].Created > images[j].Created
		}
		return images[i].Filename > images[j].Filename
	})
	return images, totalSize, nil
}

// Path resolves filename inside the store, rejecting traversal and
// non-image names.
func (s *Store) Path(filename string) (string, error) {
	if err := models.ValidateFilename(filename); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, filename), nil
}

// Exists reports whether filename is present in the store.
func (s *Store) Exists(filename string) bool {
	path, err := s.Path(filename)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Delete removes a single image. Returns models.ErrImageNotFound when
// the file is already gone.
func (s *Store) Delete(filename string) error {
	path, err := s.Path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return models.ErrImageNotFound
		}
		return fmt.Errorf("delete %s: %w", filename, err)
	}
	return nil
}

// DeleteMany removes a batch of images, continuing past individual
// failures. It returns the deleted filenames and the failed ones.
func (s *Store) DeleteMany(filenames []string) (deleted, failures []string) {
	for _, f := range filenames {
		if err := s.Delete(f); err != nil {
			failures = append(failures, f)
			continue
		}
		deleted = append(deleted, f)
	}
	return deleted, failures
}

// Clear deletes every image and returns the removed filenames.
func (s *Store) Clear() ([]string, error) {
	images, _, err := s.List()
	if err != nil {
		return nil, err
	}
	removed := make([]string, 0, len(images))
	for _, img := range images {
		if s.Delete(img.Filename) == nil {
			removed = append(removed, img.Filename)
		}
	}
	return removed, nil
}

// WriteZip streams a deflated zip of the named images into w. An empty
// filenames slice means the whole gallery. Missing files are skipped;
// the number of archived files is returned.
func (s *Store) WriteZip(w io.Writer, filenames []string) (int, error) {
	if len(filenames) == 0 {
		images, _, err := s.List()
		if err != nil {
			return 0, err
		}
		for _, img := range images {
			filenames = append(filenames, img.Filename)
		}
	}

	zw := zip.NewWriter(w)
	added := 0
	for _, filename := range filenames {
		path, err := s.Path(filename)
		if err != nil {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		entry, err := zw.Create(filename)
		if err != nil {
			f.Close()
			zw.Close()
			return added, fmt.Errorf("add %s to archive: %w", filename, err)
		}
		if _, err := io.Copy(entry, f); err != nil {
			f.Close()
			zw.Close()
			return added, fmt.Errorf("write %s to archive: %w", filename, err)
		}
		f.Close()
		added++
	}
	return added, zw.Close()
}
