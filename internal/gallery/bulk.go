package gallery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/weedbot/console/internal/observability"
)

// BulkState is the terminal (or current) state of one bulk invocation.
type BulkState string

const (
	BulkIdle            BulkState = "idle"
	BulkRunning         BulkState = "running"
	BulkCompleted       BulkState = "completed"
	BulkPartiallyFailed BulkState = "partially_failed"
	BulkFailed          BulkState = "failed"
)

// BulkOutcome summarizes one bulk invocation.
type BulkOutcome struct {
	ID        string
	Op        string
	State     BulkState
	Requested int
	Succeeded int
	Failed    []string
	// Archive holds the zip bytes for download operations.
	Archive []byte
}

// Executor applies an operation to the current selection snapshot.
// The selection is snapshotted at invocation time: later changes to the
// selection while the request is in flight do not affect it. At most
// one bulk operation runs at a time per executor.
type Executor struct {
	client RemoteClient
	sync   *Synchronizer
	port   RenderPort
	log    *observability.Logger

	mu   sync.Mutex
	busy bool
}

// NewExecutor creates an executor bound to a synchronizer and its port.
func NewExecutor(client RemoteClient, sync *Synchronizer, port RenderPort) *Executor {
	return &Executor{
		client: client,
		sync:   sync,
		port:   port,
		log:    observability.GetLogger(),
	}
}

// begin snapshots the selection and flips the busy guard. It returns a
// ValidationError, already surfaced to the port, when the operation
// cannot start; no network call is made in that case.
func (e *Executor) begin(op string) ([]string, *BulkOutcome, error) {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		err := &ValidationError{Reason: "another bulk operation is in progress"}
		e.port.Notify(NotifyWarning, err.Reason)
		return nil, nil, err
	}
	snapshot := e.sync.Selected()
	if len(snapshot) == 0 {
		e.mu.Unlock()
		err := &ValidationError{Reason: "nothing selected"}
		e.port.Notify(NotifyWarning, err.Reason)
		return nil, nil, err
	}
	e.busy = true
	e.mu.Unlock()

	outcome := &BulkOutcome{
		ID:        uuid.New().String(),
		Op:        op,
		State:     BulkRunning,
		Requested: len(snapshot),
	}
	e.log.Infof("bulk %s started: op=%s files=%d", op, outcome.ID, len(snapshot))
	return snapshot, outcome, nil
}

func (e *Executor) finish() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

// DeleteSelected deletes the selection snapshot. Successfully deleted
// filenames leave the mirror and the selection; failed ones are
// retained in both and reported by name.
func (e *Executor) DeleteSelected(ctx context.Context) (*BulkOutcome, error) {
	snapshot, outcome, err := e.begin("delete-selected")
	if err != nil {
		return nil, err
	}
	defer e.finish()

	result, err := e.client.DeleteMany(ctx, snapshot)
	if err != nil {
		outcome.State = BulkFailed
		e.port.Notify(NotifyError, fmt.Sprintf("delete failed: %v", err))
		return outcome, err
	}

	failed := make(map[string]struct{}, len(result.Failures))
	for _, f := range result.Failures {
		failed[f] = struct{}{}
	}
	deleted := make([]string, 0, len(snapshot))
	for _, f := range snapshot {
		if _, ok := failed[f]; !ok {
			deleted = append(deleted, f)
		}
	}
	e.sync.removeDeleted(deleted)

	outcome.Succeeded = len(deleted)
	outcome.Failed = result.Failures

	if len(result.Failures) == 0 {
		outcome.State = BulkCompleted
		e.port.Notify(NotifySuccess, fmt.Sprintf("%d images deleted", len(deleted)))
		return outcome, nil
	}

	outcome.State = BulkPartiallyFailed
	e.port.Notify(NotifyWarning, fmt.Sprintf("%d of %d deleted, %d failed",
		len(deleted), len(snapshot), len(result.Failures)))
	e.log.Warnf("bulk delete partial failure: %s", strings.Join(result.Failures, ", "))
	return outcome, &PartialFailure{Op: "delete-selected", Succeeded: len(deleted), Failed: result.Failures}
}

// TagSelected applies tag to the selection snapshot. Tags are
// server-authoritative, so a successful call is followed by a refresh
// to pick up the new tag state.
func (e *Executor) TagSelected(ctx context.Context, tag string) (*BulkOutcome, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		err := &ValidationError{Reason: "tag cannot be empty"}
		e.port.Notify(NotifyWarning, err.Reason)
		return nil, err
	}

	snapshot, outcome, err := e.begin("tag-selected")
	if err != nil {
		return nil, err
	}
	defer e.finish()

	result, err := e.client.TagMany(ctx, snapshot, tag)
	if err != nil {
		outcome.State = BulkFailed
		e.port.Notify(NotifyError, fmt.Sprintf("tagging failed: %v", err))
		return outcome, err
	}

	outcome.Succeeded = result.Tagged
	if result.Tagged < len(snapshot) {
		outcome.State = BulkPartiallyFailed
		e.port.Notify(NotifyWarning, fmt.Sprintf("%d of %d tagged %q",
			result.Tagged, len(snapshot), tag))
	} else {
		outcome.State = BulkCompleted
		e.port.Notify(NotifySuccess, fmt.Sprintf("%d images tagged %q", result.Tagged, tag))
	}

	if refreshErr := e.sync.Refresh(ctx); refreshErr != nil {
		e.log.Warnf("refresh after tagging: %v", refreshErr)
	}
	return outcome, nil
}

// DownloadSelected requests a zip archive of the selection snapshot.
func (e *Executor) DownloadSelected(ctx context.Context) (*BulkOutcome, error) {
	snapshot, outcome, err := e.begin("download-selected")
	if err != nil {
		return nil, err
	}
	defer e.finish()

	data, err := e.client.DownloadZip(ctx, snapshot)
	if err != nil {
		outcome.State = BulkFailed
		e.port.Notify(NotifyError, fmt.Sprintf("download failed: %v", err))
		return outcome, err
	}

	outcome.State = BulkCompleted
	outcome.Succeeded = len(snapshot)
	outcome.Archive = data
	e.port.Notify(NotifySuccess, fmt.Sprintf("archive with %d images ready (%d bytes)",
		len(snapshot), len(data)))
	return outcome, nil
}
