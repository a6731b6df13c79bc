// Package api is the typed REST surface of the Plantaria backend. Every call
// routes through the session manager for token attachment and refresh; this
// package only shapes requests and decodes responses into models or the
// shared error taxonomy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/h2non/filetype"

	"plantaria/internal/errs"
	"plantaria/internal/session"
)

type Client struct {
	base    string
	session *session.Manager
}

func New(baseURL string, sm *session.Manager) *Client {
	return &Client{base: baseURL, session: sm}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.session.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	})
	if err != nil {
		return err
	}
	return decode(resp, path, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return &errs.NetworkError{Op: "encode " + path, Err: err}
		}
	}
	resp, err := c.session.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	return decode(resp, path, out)
}

// postForm sends a multipart form. The encoded body is built once so the
// request factory can replay it on a refresh retry.
func (c *Client) postForm(ctx context.Context, method, path string, fields map[string]string, image *ImageUpload, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return &errs.NetworkError{Op: "encode " + path, Err: err}
		}
	}
	if image != nil {
		part, err := w.CreatePart(image.header())
		if err != nil {
			return &errs.NetworkError{Op: "encode " + path, Err: err}
		}
		if _, err := part.Write(image.Data); err != nil {
			return &errs.NetworkError{Op: "encode " + path, Err: err}
		}
	}
	if err := w.Close(); err != nil {
		return &errs.NetworkError{Op: "encode " + path, Err: err}
	}

	body := buf.Bytes()
	contentType := w.FormDataContentType()

	resp, err := c.session.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return err
	}
	return decode(resp, path, out)
}

// ImageUpload is an optional image attached to a post or product. The
// content type is sniffed from the bytes, not trusted from the file name.
type ImageUpload struct {
	Name string
	Data []byte
}

func (u *ImageUpload) header() textproto.MIMEHeader {
	contentType := "application/octet-stream"
	if t, err := filetype.Match(u.Data); err == nil && t != filetype.Unknown {
		contentType = t.MIME.Value
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="image"; filename="`+u.Name+`"`)
	h.Set("Content-Type", contentType)
	return h
}

// decode drains the response, mapping non-2xx statuses to ValidationError
// with the server's detail field and unmarshaling successful bodies into out.
func decode(resp *http.Response, path string, out any) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.NetworkError{Op: "read " + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(raw, &payload)
		return &errs.ValidationError{Status: resp.StatusCode, Detail: payload.Detail}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &errs.NetworkError{Op: "decode " + path, Err: err}
	}
	return nil
}
