package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weedbot/console/internal/models"
)

// newTestServer wires a full gallery API over a temp directory and an
// in-memory tag database.
func newTestServer(t *testing.T) (*httptest.Server, *Store) {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	tags, err := NewSQLiteTagRepo(filepath.Join(t.TempDir(), "tags.db"))
	require.NoError(t, err)
	t.Cleanup(func() { tags.Close() })

	hub := NewHub()
	go hub.Run()

	handler := NewGalleryHandler(store, tags, NewThumbnailer(0, 0), hub)

	r := chi.NewRouter()
	r.Route("/api/gallery", handler.Routes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func seedImage(t *testing.T, store *Store, name string, size int) {
	t.Helper()
	data := bytes.Repeat([]byte{0xab}, size)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), name), data, 0644))
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestGalleryAPI_List(t *testing.T) {
	srv, store := newTestServer(t)
	seedImage(t, store, "img_001.jpg", 1024)
	seedImage(t, store, "img_002.jpg", 2048)

	resp, err := http.Get(srv.URL + "/api/gallery/images")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list models.ListResponse
	decodeBody(t, resp, &list)

	assert.Equal(t, 2, list.Count)
	assert.Len(t, list.Images, 2)
	assert.InDelta(t, 3072.0/(1024*1024), list.TotalSizeMB, 1e-9)
	for _, img := range list.Images {
		assert.Equal(t, "/api/gallery/image/"+img.Filename, img.URL)
	}
}

func TestGalleryAPI_DeleteOne(t *testing.T) {
	srv, store := newTestServer(t)
	seedImage(t, store, "img_001.jpg", 16)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/gallery/delete/img_001.jpg", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, store.Exists("img_001.jpg"))

	// Deleting again is a 404, not an error page.
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errResp models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.NotEmpty(t, errResp.Error)
}

func TestGalleryAPI_DeleteSelected(t *testing.T) {
	srv, store := newTestServer(t)
	seedImage(t, store, "a.jpg", 16)
	seedImage(t, store, "b.jpg", 16)

	resp := postJSON(t, srv.URL+"/api/gallery/delete-selected",
		models.BulkFilesRequest{Files: []string{"a.jpg", "ghost.jpg", "b.jpg"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.DeleteResult
	decodeBody(t, resp, &result)

	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, []string{"ghost.jpg"}, result.Failures)
	assert.False(t, store.Exists("a.jpg"))
	assert.False(t, store.Exists("b.jpg"))
}

func TestGalleryAPI_DeleteSelectedRejectsEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/gallery/delete-selected", models.BulkFilesRequest{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGalleryAPI_TagImages(t *testing.T) {
	srv, store := newTestServer(t)
	seedImage(t, store, "a.jpg", 16)
	seedImage(t, store, "b.jpg", 16)

	t.Run("round trip through the listing", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/gallery/tag-images",
			models.TagRequest{Files: []string{"a.jpg", "phantom.jpg"}, Tag: "weeds"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result models.TagResult
		decodeBody(t, resp, &result)
		assert.Equal(t, 1, result.Tagged, "phantom files are not tagged")

		listResp, err := http.Get(srv.URL + "/api/gallery/images")
		require.NoError(t, err)
		var list models.ListResponse
		decodeBody(t, listResp, &list)

		byName := make(map[string]models.ImageRecord)
		for _, img := range list.Images {
			byName[img.Filename] = img
		}
		assert.Equal(t, []string{"weeds"}, byName["a.jpg"].Tags)
		assert.Empty(t, byName["b.jpg"].Tags)
	})

	t.Run("empty tag is rejected", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/gallery/tag-images",
			models.TagRequest{Files: []string{"a.jpg"}, Tag: ""})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("tag rows are dropped with the file", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/gallery/delete/a.jpg", nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		listResp, err := http.Get(srv.URL + "/api/gallery/images")
		require.NoError(t, err)
		var list models.ListResponse
		decodeBody(t, listResp, &list)
		for _, img := range list.Images {
			assert.NotEqual(t, "a.jpg", img.Filename)
		}
	})
}

func TestGalleryAPI_Download(t *testing.T) {
	srv, store := newTestServer(t)
	seedImage(t, store, "a.jpg", 64)
	seedImage(t, store, "b.jpg", 64)

	readZip := func(t *testing.T, resp *http.Response) []string {
		t.Helper()
		defer resp.Body.Close()
		var buf bytes.Buffer
		_, err := buf.ReadFrom(resp.Body)
		require.NoError(t, err)
		zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		require.NoError(t, err)
		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		return names
	}

	t.Run("selected", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/gallery/download-selected",
			models.BulkFilesRequest{Files: []string{"a.jpg"}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "weedbot_images_")
		assert.Equal(t, []string{"a.jpg"}, readZip(t, resp))
	})

	t.Run("all", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/gallery/download_all")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, readZip(t, resp))
	})

	t.Run("nothing to archive", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/gallery/download-selected",
			models.BulkFilesRequest{Files: []string{"ghost.jpg"}})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestGalleryAPI_Clear(t *testing.T) {
	srv, store := newTestServer(t)
	seedImage(t, store, "a.jpg", 16)
	seedImage(t, store, "b.jpg", 16)

	resp := postJSON(t, srv.URL+"/api/gallery/clear", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.ClearResult
	decodeBody(t, resp, &result)
	assert.Equal(t, 2, result.Deleted)

	images, _, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestGalleryAPI_EventStream(t *testing.T) {
	srv, store := newTestServer(t)
	seedImage(t, store, "a.jpg", 16)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/gallery/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration races the upgrade handshake; give the hub a beat.
	time.Sleep(50 * time.Millisecond)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/gallery/delete/a.jpg", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "gallery.changed", event.Type)

	payload, ok := event.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "delete", payload["action"])
}
