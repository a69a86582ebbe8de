// File path: internal/druid/client.go

// Package druid talks to the remote asset-hosting system. The client covers
// the three calls the service needs: list a dataset's assets, download one,
// and upload a produced graph. Every call carries the shared bearer token.
package druid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CLARIAH/cattle-druid/internal/common"
)

// RemoteAPIError reports an authentication or network failure against the
// remote asset API. It is fatal to the webhook invocation that triggered the
// call; retry, if any, is the remote system's concern via re-delivery.
type RemoteAPIError struct {
	Op     string
	Status int
	Err    error
}

func (e *RemoteAPIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("druid: %s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("druid: %s: %v", e.Op, e.Err)
}

func (e *RemoteAPIError) Unwrap() error { return e.Err }

// Asset is one entry of a dataset's asset listing.
type Asset struct {
	Name string `json:"assetName"`
	ID   string `json:"identifier"`
}

// API is the slice of the remote system the poller depends on.
type API interface {
	ListAssets(ctx context.Context, owner, dataset string) ([]Asset, error)
	DownloadAsset(ctx context.Context, owner, dataset, name string) (io.ReadCloser, error)
	UploadGraph(ctx context.Context, owner, dataset, path string) error
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// ListAssets fetches every asset name registered under (owner, dataset).
func (c *Client) ListAssets(ctx context.Context, owner, dataset string) ([]Asset, error) {
	endpoint := fmt.Sprintf("%s/datasets/%s/%s/assets",
		c.baseURL, url.PathEscape(owner), url.PathEscape(dataset))
	resp, err := c.do(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, &RemoteAPIError{Op: "list assets", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteAPIError{Op: "list assets", Status: resp.StatusCode}
	}
	var assets []Asset
	if err := json.NewDecoder(resp.Body).Decode(&assets); err != nil {
		return nil, &RemoteAPIError{Op: "list assets", Err: err}
	}
	return assets, nil
}

// DownloadAsset streams the named asset's bytes. The caller owns the reader.
func (c *Client) DownloadAsset(ctx context.Context, owner, dataset, name string) (io.ReadCloser, error) {
	endpoint := fmt.Sprintf("%s/datasets/%s/%s/assets/download?fileName=%s",
		c.baseURL, url.PathEscape(owner), url.PathEscape(dataset), url.QueryEscape(name))
	resp, err := c.do(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, &RemoteAPIError{Op: "download asset", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &RemoteAPIError{Op: "download asset", Status: resp.StatusCode}
	}
	return resp.Body, nil
}

// UploadGraph posts the serialized graph file at path back to the remote
// dataset.
func (c *Client) UploadGraph(ctx context.Context, owner, dataset, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &RemoteAPIError{Op: "upload graph", Err: err}
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return &RemoteAPIError{Op: "upload graph", Err: err}
	}
	if _, err := io.Copy(part, f); err != nil {
		return &RemoteAPIError{Op: "upload graph", Err: err}
	}
	if err := writer.Close(); err != nil {
		return &RemoteAPIError{Op: "upload graph", Err: err}
	}

	endpoint := fmt.Sprintf("%s/datasets/%s/%s/upload",
		c.baseURL, url.PathEscape(owner), url.PathEscape(dataset))
	resp, err := c.do(ctx, http.MethodPost, endpoint, writer.FormDataContentType(), &body)
	if err != nil {
		return &RemoteAPIError{Op: "upload graph", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteAPIError{Op: "upload graph", Status: resp.StatusCode}
	}
	common.Logger().Info("druid: graph uploaded", "owner", owner, "dataset", dataset, "file", filepath.Base(path))
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}
