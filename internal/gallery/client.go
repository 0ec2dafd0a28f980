package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/weedbot/console/internal/models"
)

// RemoteClient is the gallery API surface the controller depends on.
// Implementations perform no local state mutation; reconciling the
// mirror after a call is the synchronizer's job.
type RemoteClient interface {
	List(ctx context.Context) ([]models.ImageRecord, error)
	DeleteOne(ctx context.Context, filename string) error
	DeleteMany(ctx context.Context, filenames []string) (models.DeleteResult, error)
	TagMany(ctx context.Context, filenames []string, tag string) (models.TagResult, error)
	// DownloadZip streams a zip of the named files, or of every image
	// when filenames is empty.
	DownloadZip(ctx context.Context, filenames []string) ([]byte, error)
	Clear(ctx context.Context) (models.ClearResult, error)
}

// HTTPClient talks to the gallery API over HTTP.
type HTTPClient struct {
	baseURL      string
	apiKey       string
	apiKeyHeader string
	http         *http.Client
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithAPIKey sets the API key sent on every request.
func WithAPIKey(key, header string) HTTPClientOption {
	return func(c *HTTPClient) {
		c.apiKey = key
		if header != "" {
			c.apiKeyHeader = header
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) HTTPClientOption {
	return func(c *HTTPClient) { c.http = hc }
}

// NewHTTPClient creates a client for the gallery API at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:      baseURL,
		apiKeyHeader: "X-API-Key",
		http:         &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ImageURL resolves the fetch location for a filename. Derived state
// only; the server owns filenames.
func (c *HTTPClient) ImageURL(filename string) string {
	return c.baseURL + "/api/gallery/image/" + url.PathEscape(filename)
}

// List fetches the authoritative image list, newest first.
func (c *HTTPClient) List(ctx context.Context) ([]models.ImageRecord, error) {
	var resp models.ListResponse
	if err := c.doJSON(ctx, "list", http.MethodGet, "/api/gallery/images", nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Images {
		resp.Images[i].URL = c.ImageURL(resp.Images[i].Filename)
	}
	return resp.Images, nil
}

// DeleteOne deletes a single image. A server-side 404 counts as success:
// the file is already gone, which is the state the caller asked for.
func (c *HTTPClient) DeleteOne(ctx context.Context, filename string) error {
	err := c.doJSON(ctx, "delete", http.MethodDelete,
		"/api/gallery/delete/"+url.PathEscape(filename), nil, nil)
	var srvErr *ServerError
	if errors.As(err, &srvErr) && srvErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// DeleteMany deletes a batch of images. Partial failure is expected and
// reported per filename in the result, not as an aggregate error.
func (c *HTTPClient) DeleteMany(ctx context.Context, filenames []string) (models.DeleteResult, error) {
	var result models.DeleteResult
	err := c.doJSON(ctx, "delete-selected", http.MethodPost,
		"/api/gallery/delete-selected", models.BulkFilesRequest{Files: filenames}, &result)
	return result, err
}

// TagMany applies tag to a batch of images.
func (c *HTTPClient) TagMany(ctx context.Context, filenames []string, tag string) (models.TagResult, error) {
	var result models.TagResult
	err := c.doJSON(ctx, "tag-images", http.MethodPost,
		"/api/gallery/tag-images", models.TagRequest{Files: filenames, Tag: tag}, &result)
	return result, err
}

// DownloadZip fetches a zip archive of the named images, or of the whole
// gallery when filenames is empty. A failed response is never parsed as
// a zip.
func (c *HTTPClient) DownloadZip(ctx context.Context, filenames []string) ([]byte, error) {
	var (
		resp *http.Response
		err  error
	)
	if len(filenames) == 0 {
		resp, err = c.do(ctx, "download-all", http.MethodGet, "/api/gallery/download_all", nil)
	} else {
		resp, err = c.do(ctx, "download-selected", http.MethodPost,
			"/api/gallery/download-selected", models.BulkFilesRequest{Files: filenames})
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "download", Err: err}
	}
	return data, nil
}

// Clear deletes every image in the gallery.
func (c *HTTPClient) Clear(ctx context.Context) (models.ClearResult, error) {
	var result models.ClearResult
	err := c.doJSON(ctx, "clear", http.MethodPost, "/api/gallery/clear", nil, &result)
	return result, err
}

// do issues a request and maps transport and status failures onto the
// error taxonomy. On success the caller owns the response body.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &ServerError{Op: op, Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	return resp, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, op, method, path string, body, out interface{}) error {
	resp, err := c.do(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// readErrorMessage extracts {"error": "..."} from an error body. Bodies
// that are not JSON are ignored.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var errResp models.ErrorResponse
	if json.Unmarshal(data, &errResp) == nil {
		return errResp.Error
	}
	return ""
}
