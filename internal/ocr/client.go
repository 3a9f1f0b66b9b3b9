// Package ocr talks to the external receipt-recognition service.
//
// The integration is deliberately minimal: one multipart POST per receipt,
// one request in flight at a time, no automatic retry. Failures surface a
// message and hand control back to the user, who may resubmit.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"patungan/internal/receipt"
	"patungan/internal/shared"
)

// ErrNoResponse reports a connectivity failure: the request left but nothing
// came back. Distinct from an HTTP error so the user sees "check your
// connection" rather than a status code.
var ErrNoResponse = fmt.Errorf("%w: no response from the recognition service, check your connection", shared.ErrExternal)

// StatusError reports a non-2xx response from the recognition service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("recognition service returned %d: %s", e.Code, e.Message)
}

// Unwrap lets callers classify StatusError as an external-service failure.
func (e *StatusError) Unwrap() error { return shared.ErrExternal }

// Client uploads receipt images for recognition.
type Client struct {
	endpoint string
	httpc    *http.Client
}

// NewClient returns a client for the given endpoint. timeout bounds the whole
// upload-and-recognize round trip.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: timeout},
	}
}

// Recognize uploads the image and returns the parsed receipt document.
// The request is a multipart/form-data POST with a single "image" field named
// receipt.png, matching what the service expects regardless of the actual
// capture format.
func (c *Client) Recognize(ctx context.Context, image []byte) (*receipt.Document, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "receipt.png")
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", shared.ErrExternal, err)
		}
		// Timeouts land here too: the request left and nothing came back, so
		// the user gets the connectivity message rather than a raw deadline.
		return nil, ErrNoResponse
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", shared.ErrExternal, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}

	doc, err := receipt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", shared.ErrExternal, err)
	}
	return doc, nil
}

// errorMessage extracts a human-readable message from an error response body,
// falling back to the HTTP status line.
func errorMessage(body []byte, status string) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return status
}
