// Package reporting is a client for the diecast reporting service.
//
// The service exposes three routes used by the inspection pipeline:
//
//	POST  /diecast/save/1              start of a group of frames
//	POST  /diecast/{entityId}          one inspected photo (multipart)
//	PATCH /diecast/patch/{entityId}    end of a group for one entity
//
// Every call is a single attempt bounded by the client timeout. Non-2xx
// status codes are returned to the caller rather than turned into errors;
// the pipeline logs them and decides what they mean.
package reporting

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout bounds each reporting call.
	DefaultTimeout = 10 * time.Second

	photoField       = "photoFile"
	photoContentType = "image/jpeg"

	// maxBodyLog caps how much of a response body is kept for logging.
	maxBodyLog = 1 << 12
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL string
	Timeout time.Duration
	CropLT  string
	CropRB  string
}

// Client talks to the reporting service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cropLT     string
	cropRB     string
}

// NewClient creates a Client for the given options.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cropLT, cropRB := opts.CropLT, opts.CropRB
	if cropLT == "" {
		cropLT = "1.1"
	}
	if cropRB == "" {
		cropRB = "8.8"
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		cropLT:     cropLT,
		cropRB:     cropRB,
	}
}

// BaseURL returns the service address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Response is the status and (truncated) body of a reporting call.
type Response struct {
	StatusCode int
	Body       string
}

// OK reports whether the service answered with a 2xx status.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Photo is one inspected frame.
type Photo struct {
	FileName string
	Data     []byte
	Position string
	NgFlag   int
}

// SaveBatch signals the start of a new group of frames.
func (c *Client) SaveBatch(ctx context.Context) (Response, error) {
	return c.do(ctx, http.MethodPost, "/diecast/save/1", nil, "")
}

// SubmitPhoto uploads one photo with its inspection outcome.
func (c *Client) SubmitPhoto(ctx context.Context, entityID string, p Photo) (Response, error) {
	body, contentType, err := c.encodePhoto(p)
	if err != nil {
		return Response{}, fmt.Errorf("encode photo: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/diecast/"+url.PathEscape(entityID), body, contentType)
}

// Finalize signals that a group of frames for entityID is complete.
func (c *Client) Finalize(ctx context.Context, entityID string) (Response, error) {
	return c.do(ctx, http.MethodPatch, "/diecast/patch/"+url.PathEscape(entityID), nil, "")
}

func (c *Client) encodePhoto(p Photo) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, photoField, p.FileName))
	h.Set("Content-Type", photoContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(p.Data); err != nil {
		return nil, "", err
	}

	fields := []struct{ name, value string }{
		{"photoPosition", p.Position},
		{"photoNgtype", strconv.Itoa(p.NgFlag)},
		{"photoCroplt", c.cropLT},
		{"photoCroprb", c.cropRB},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body *bytes.Buffer, contentType string) (Response, error) {
	var reader io.Reader
	if body != nil {
		reader = body
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	log.Debug().Str("method", method).Str("path", path).Msg("Reporting request")
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyLog))
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("statusCode", httpResp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Reporting response")

	return Response{StatusCode: httpResp.StatusCode, Body: string(data)}, nil
}
