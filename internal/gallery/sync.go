package gallery

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/weedbot/console/internal/models"
	"github.com/weedbot/console/internal/observability"
)

// DefaultRefreshInterval is the periodic refresh cadence. The source
// system used anything from 10s to 60s across variants; one
// configurable interval replaces them all.
const DefaultRefreshInterval = 30 * time.Second

// connectionLostThreshold is the number of consecutive background
// refresh failures tolerated before the port is switched to the
// persistent connection-lost indicator.
const connectionLostThreshold = 3

// refreshCall tracks one in-flight list request so concurrent Refresh
// callers share a single network round trip.
type refreshCall struct {
	done chan struct{}
	err  error
}

// Synchronizer exclusively owns the mirrored image list. Every mutation
// of the mirror happens here: wholesale replacement on refresh, and
// removal of confirmed deletions reported by the bulk executor. The
// selection is pruned to the mirror in the same critical section as any
// replacement, so the invariant "selection is a subset of the mirror"
// holds at every observable point.
type Synchronizer struct {
	client   RemoteClient
	port     RenderPort
	log      *observability.Logger
	interval time.Duration
	now      func() time.Time

	mu           sync.Mutex
	mirror       []models.ImageRecord
	sel          *Selection
	criteria     Criteria
	inflight     *refreshCall
	generation   uint64 // assigned to each issued refresh
	applied      uint64 // generation of the last applied response
	failStreak   int
	lostNotified bool
	closed       bool

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithInterval overrides the periodic refresh interval.
func WithInterval(d time.Duration) SyncOption {
	return func(s *Synchronizer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) SyncOption {
	return func(s *Synchronizer) { s.now = now }
}

// WithLogger overrides the logger.
func WithLogger(log *observability.Logger) SyncOption {
	return func(s *Synchronizer) { s.log = log }
}

// NewSynchronizer creates a synchronizer with an empty mirror and an
// empty selection. Call Refresh or Start to populate it.
func NewSynchronizer(client RemoteClient, port RenderPort, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		client:   client,
		port:     port,
		log:      observability.GetLogger(),
		interval: DefaultRefreshInterval,
		now:      time.Now,
		sel:      NewSelection(),
		criteria: DefaultCriteria(),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh fetches the authoritative list and replaces the mirror. If a
// refresh is already in flight the call joins it instead of issuing a
// duplicate request. A failed refresh leaves the previous mirror
// untouched: stale-but-consistent beats clearing to empty.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return context.Canceled
	}
	if call := s.inflight; call != nil {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	s.inflight = call
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	images, err := s.client.List(ctx)

	s.mu.Lock()
	s.inflight = nil
	// A response superseded by teardown (or by an invalidated
	// generation) must be discarded, not applied.
	if s.closed || gen <= s.applied {
		s.mu.Unlock()
		call.err = err
		close(call.done)
		return call.err
	}
	s.applied = gen

	if err != nil {
		s.failStreak++
		streak := s.failStreak
		lost := streak >= connectionLostThreshold && !s.lostNotified
		if lost {
			s.lostNotified = true
		}
		s.mu.Unlock()

		s.log.Warnf("gallery refresh failed (streak %d): %v", streak, err)
		if lost {
			s.port.ConnectionLost(true)
		}
		call.err = err
		close(call.done)
		return err
	}

	s.mirror = images
	keep := make(map[string]struct{}, len(images))
	for _, img := range images {
		keep[img.Filename] = struct{}{}
	}
	pruned := s.sel.Retain(keep)
	recovered := s.lostNotified
	s.failStreak = 0
	s.lostNotified = false
	s.mu.Unlock()

	if len(pruned) > 0 {
		s.log.Infof("pruned %d stale selection entries", len(pruned))
	}
	if recovered {
		s.port.ConnectionLost(false)
	}
	s.render()

	call.err = nil
	close(call.done)
	return nil
}

// Start launches the periodic refresh loop. It performs an immediate
// refresh, then one per interval until Close or ctx cancellation.
func (s *Synchronizer) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := s.Refresh(ctx); err != nil && !IsRecoverable(err) {
			s.log.Errorf("initial gallery refresh: %v", err)
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				// Recoverable failures are already logged and counted;
				// the next tick is the retry policy.
				s.Refresh(ctx)
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()
}

// Close tears the synchronizer down: the refresh timer stops and any
// in-flight response becomes a no-op.
func (s *Synchronizer) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// Images returns a copy of the mirrored list.
func (s *Synchronizer) Images() []models.ImageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ImageRecord, len(s.mirror))
	copy(out, s.mirror)
	return out
}

// Visible returns a copy of the mirror narrowed by the current filter
// criteria.
func (s *Synchronizer) Visible() []models.ImageRecord {
	s.mu.Lock()
	mirror := make([]models.ImageRecord, len(s.mirror))
	copy(mirror, s.mirror)
	criteria := s.criteria
	s.mu.Unlock()
	return Visible(mirror, criteria, s.now())
}

// SetCriteria replaces the filter criteria and re-renders.
func (s *Synchronizer) SetCriteria(c Criteria) {
	s.mu.Lock()
	s.criteria = c
	s.mu.Unlock()
	s.render()
}

// Criteria returns the active filter criteria.
func (s *Synchronizer) Criteria() Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// Toggle flips a filename's selection membership. Unknown filenames are
// ignored so the selection can never grow beyond the mirror.
func (s *Synchronizer) Toggle(filename string) {
	s.mu.Lock()
	if s.inMirror(filename) {
		s.sel.Toggle(filename)
	}
	s.mu.Unlock()
	s.render()
}

// SelectAllVisible selects every image matching the current criteria.
func (s *Synchronizer) SelectAllVisible() int {
	s.mu.Lock()
	visible := Visible(s.mirror, s.criteria, s.now())
	names := make([]string, len(visible))
	for i, img := range visible {
		names[i] = img.Filename
	}
	s.sel.SelectAll(names)
	n := s.sel.Len()
	s.mu.Unlock()
	s.render()
	return n
}

// SelectWhere selects every mirrored image matching pred and returns
// the number of newly selected images.
func (s *Synchronizer) SelectWhere(pred func(models.ImageRecord) bool) int {
	s.mu.Lock()
	added := s.sel.SelectByPredicate(s.mirror, pred)
	s.mu.Unlock()
	s.render()
	return added
}

// ClearSelection empties the selection, e.g. when bulk mode turns off.
func (s *Synchronizer) ClearSelection() {
	s.mu.Lock()
	s.sel.Clear()
	s.mu.Unlock()
	s.render()
}

// Selected returns a snapshot of the selected filenames.
func (s *Synchronizer) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Snapshot()
}

// SelectedCount returns the selection size.
func (s *Synchronizer) SelectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Len()
}

// MirrorEquals reports whether the mirror deep-equals images (tests).
func (s *Synchronizer) MirrorEquals(images []models.ImageRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reflect.DeepEqual(s.mirror, images)
}

// removeDeleted drops confirmed-deleted filenames from the mirror and
// the selection in one step. Called by the bulk executor after a
// delete-selected completes; failed filenames stay in both.
func (s *Synchronizer) removeDeleted(filenames []string) {
	gone := make(map[string]struct{}, len(filenames))
	for _, f := range filenames {
		gone[f] = struct{}{}
	}

	s.mu.Lock()
	kept := s.mirror[:0]
	for _, img := range s.mirror {
		if _, ok := gone[img.Filename]; !ok {
			kept = append(kept, img)
		}
	}
	s.mirror = kept
	for f := range gone {
		s.sel.Remove(f)
	}
	s.mu.Unlock()
	s.render()
}

func (s *Synchronizer) inMirror(filename string) bool {
	for _, img := range s.mirror {
		if img.Filename == filename {
			return true
		}
	}
	return false
}

// render pushes a consistent snapshot to the port. State is copied
// under the lock and handed to the port outside it, so the port never
// observes a half-updated mirror and cannot deadlock the synchronizer.
func (s *Synchronizer) render() {
	s.mu.Lock()
	visible := Visible(s.mirror, s.criteria, s.now())
	count := s.sel.Len()
	var totalBytes int64
	for _, img := range s.mirror {
		if s.sel.Contains(img.Filename) {
			totalBytes += img.SizeBytes
		}
	}
	s.mu.Unlock()

	s.port.RenderList(visible)
	s.port.RenderSelectionBar(count, totalBytes)
}
