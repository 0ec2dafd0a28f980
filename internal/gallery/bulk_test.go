package gallery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weedbot/console/internal/models"
)

func fiveImages() []models.ImageRecord {
	return []models.ImageRecord{
		{Filename: "img_005.jpg", SizeBytes: 1024},
		{Filename: "img_004.jpg", SizeBytes: 1024},
		{Filename: "img_003.jpg", SizeBytes: 1024},
		{Filename: "img_002.jpg", SizeBytes: 1024},
		{Filename: "img_001.jpg", SizeBytes: 1024},
	}
}

func newExecutorUnderTest(t *testing.T, client *fakeClient) (*Executor, *Synchronizer, *recordingPort) {
	t.Helper()
	port := &recordingPort{}
	sync := NewSynchronizer(client, port)
	require.NoError(t, sync.Refresh(context.Background()))
	return NewExecutor(client, sync, port), sync, port
}

func TestExecutor_DeleteSelected(t *testing.T) {
	t.Run("completed run removes selection and mirror entries", func(t *testing.T) {
		client := &fakeClient{}
		client.setImages(fiveImages())
		exec, sync, port := newExecutorUnderTest(t, client)
		sync.SelectAllVisible()

		outcome, err := exec.DeleteSelected(context.Background())
		require.NoError(t, err)

		assert.Equal(t, BulkCompleted, outcome.State)
		assert.Equal(t, 5, outcome.Succeeded)
		assert.Empty(t, sync.Selected())
		assert.Empty(t, sync.Images())
		assert.Equal(t, "success: 5 images deleted", port.lastNotification())
	})

	t.Run("partial failure keeps failed files selected and mirrored", func(t *testing.T) {
		client := &fakeClient{}
		client.setImages(fiveImages())
		client.deleteRes = models.DeleteResult{
			Deleted:  3,
			Failures: []string{"img_002.jpg", "img_004.jpg"},
		}
		exec, sync, port := newExecutorUnderTest(t, client)
		sync.SelectAllVisible()

		outcome, err := exec.DeleteSelected(context.Background())
		require.Error(t, err)

		var pf *PartialFailure
		require.ErrorAs(t, err, &pf)
		assert.Equal(t, 3, pf.Succeeded)
		assert.Equal(t, []string{"img_002.jpg", "img_004.jpg"}, pf.Failed)

		assert.Equal(t, BulkPartiallyFailed, outcome.State)
		assert.Equal(t, []string{"img_002.jpg", "img_004.jpg"}, sync.Selected())

		var mirrored []string
		for _, img := range sync.Images() {
			mirrored = append(mirrored, img.Filename)
		}
		assert.ElementsMatch(t, []string{"img_002.jpg", "img_004.jpg"}, mirrored)
		assert.Equal(t, "warning: 3 of 5 deleted, 2 failed", port.lastNotification())
		assertSelectionSubsetOfMirror(t, sync)
	})

	t.Run("total failure leaves mirror and selection untouched", func(t *testing.T) {
		client := &fakeClient{}
		client.setImages(fiveImages())
		client.deleteErr = &ServerError{Op: "delete-selected", Status: 500}
		exec, sync, _ := newExecutorUnderTest(t, client)
		sync.SelectAllVisible()

		outcome, err := exec.DeleteSelected(context.Background())
		require.Error(t, err)
		assert.Equal(t, BulkFailed, outcome.State)
		assert.Len(t, sync.Images(), 5)
		assert.Len(t, sync.Selected(), 5)
	})

	t.Run("empty selection is rejected before any request", func(t *testing.T) {
		client := &fakeClient{}
		client.setImages(fiveImages())
		exec, _, port := newExecutorUnderTest(t, client)

		_, err := exec.DeleteSelected(context.Background())

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Zero(t, atomic.LoadInt32(&client.deleteCalls))
		assert.Equal(t, "warning: nothing selected", port.lastNotification())
	})
}

func TestExecutor_TagSelected(t *testing.T) {
	t.Run("tags the snapshot and refreshes tag state", func(t *testing.T) {
		client := &fakeClient{}
		client.setImages(fiveImages())
		client.tagRes = models.TagResult{Tagged: 2}
		exec, sync, port := newExecutorUnderTest(t, client)
		sync.Toggle("img_001.jpg")
		sync.Toggle("img_002.jpg")
		listsBefore := atomic.LoadInt32(&client.listCalls)

		outcome, err := exec.TagSelected(context.Background(), "weeds")
		require.NoError(t, err)

		assert.Equal(t, BulkCompleted, outcome.State)
		assert.Equal(t, 2, outcome.Succeeded)
		assert.Equal(t, `success: 2 images tagged "weeds"`, port.lastNotification())
		assert.Greater(t, atomic.LoadInt32(&client.listCalls), listsBefore,
			"tag state lives server-side, so tagging must re-list")
	})

	t.Run("whitespace tag is rejected without a request", func(t *testing.T) {
		client := &fakeClient{}
		client.setImages(fiveImages())
		exec, sync, _ := newExecutorUnderTest(t, client)
		sync.Toggle("img_001.jpg")

		_, err := exec.TagSelected(context.Background(), "   ")

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Zero(t, atomic.LoadInt32(&client.tagCalls))
		assert.Equal(t, []string{"img_001.jpg"}, sync.Selected(), "selection survives rejected input")
	})

	t.Run("server error surfaces as failed outcome", func(t *testing.T) {
		client := &fakeClient{}
		client.setImages(fiveImages())
		client.tagErr = &NetworkError{Op: "tag-images", Err: errors.New("connection refused")}
		exec, sync, _ := newExecutorUnderTest(t, client)
		sync.Toggle("img_001.jpg")

		outcome, err := exec.TagSelected(context.Background(), "weeds")
		require.Error(t, err)
		assert.Equal(t, BulkFailed, outcome.State)
	})
}

func TestExecutor_DownloadSelected(t *testing.T) {
	t.Run("returns the archive for the snapshot", func(t *testing.T) {
		client := &fakeClient{}
		client.setImages(fiveImages())
		client.zipData = []byte("PK\x03\x04archive")
		exec, sync, _ := newExecutorUnderTest(t, client)
		sync.Toggle("img_001.jpg")
		sync.Toggle("img_003.jpg")

		outcome, err := exec.DownloadSelected(context.Background())
		require.NoError(t, err)

		assert.Equal(t, BulkCompleted, outcome.State)
		assert.Equal(t, client.zipData, outcome.Archive)
		require.Len(t, client.zipFiles, 1)
		assert.Equal(t, []string{"img_001.jpg", "img_003.jpg"}, client.zipFiles[0])
	})

	t.Run("selection changes mid-flight do not affect the snapshot", func(t *testing.T) {
		client := &fakeClient{}
		client.setImages(fiveImages())
		exec, sync, _ := newExecutorUnderTest(t, client)
		sync.Toggle("img_001.jpg")
		sync.Toggle("img_003.jpg")
		client.onDownload = func() { sync.ClearSelection() }

		_, err := exec.DownloadSelected(context.Background())
		require.NoError(t, err)

		require.Len(t, client.zipFiles, 1)
		assert.Equal(t, []string{"img_001.jpg", "img_003.jpg"}, client.zipFiles[0])
	})
}
