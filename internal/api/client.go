// Package api uploads exported flight logs to a report server.
package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/descentctl/lander/pkg/core"
)

const (
	// UploadPath is the report server endpoint accepting flight logs.
	UploadPath  = "/api/v1/flights/add"
	healthPath  = "/healthcheck"
	httpTimeout = 30 * time.Second
)

// Client talks to the report server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

// do sends req and treats anything but 200 as an error.
func (c *Client) do(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return nil
}

// Healthcheck reports whether the report server answers.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("build healthcheck request: %w", err)
	}
	return c.do(req)
}

func (c *Client) formFields(name string, meta core.UploadMetadata) [][2]string {
	return [][2]string{
		{"secret", c.apiKey},
		{"filename", name},
		{"vesselName", meta.VesselName},
		{"bodyName", meta.BodyName},
		{"outcome", meta.Outcome},
		{"duration", strconv.FormatFloat(meta.Duration, 'f', 3, 64)},
		{"tag", meta.Tag},
	}
}

// writeForm encodes fields followed by the file part into mw and closes it.
func writeForm(mw *multipart.Writer, fields [][2]string, name string, file io.Reader) error {
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("field %s: %w", f[0], err)
		}
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}
	return mw.Close()
}

// Upload streams an exported flight log with its metadata as a multipart form.
// The body is produced while the request is in flight, so large logs are never
// held in memory.
func (c *Client) Upload(ctx context.Context, filePath string, meta core.UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open flight log: %w", err)
	}
	defer file.Close()

	name := filepath.Base(filePath)
	body, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	produced := make(chan error, 1)
	go func() {
		err := writeForm(mw, c.formFields(name, meta), name, file)
		pw.CloseWithError(err)
		produced <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+UploadPath, body)
	if err != nil {
		body.Close()
		<-produced
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	sendErr := c.do(req)
	body.Close()
	if formErr := <-produced; formErr != nil && sendErr == nil {
		return formErr
	}
	return sendErr
}
