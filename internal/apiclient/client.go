// Package apiclient talks to the docsync server over REST and websocket.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docsync/internal/document/model"
	"docsync/pkg/apperror"
)

// HTTPError is a non-2xx response. It matches the apperror sentinel for its
// status so callers can use errors.Is.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) Is(target error) bool {
	switch target {
	case apperror.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case apperror.ErrConflict:
		return e.StatusCode == http.StatusConflict
	case apperror.ErrNetwork:
		return e.StatusCode == http.StatusBadGateway ||
			e.StatusCode == http.StatusServiceUnavailable ||
			e.StatusCode == http.StatusGatewayTimeout
	}
	return false
}

type Client struct {
	baseURL    string
	token      string
	clientID   string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// New returns a client for the API rooted at baseURL, for example
// http://localhost:4000/api. clientID is sent with every request so the
// server does not echo this client's deletions back to it.
func New(baseURL, token, clientID string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:4000/api"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		clientID:   clientID,
		httpClient: httpClient,
		maxRetries: 2,
		baseDelay:  100 * time.Millisecond,
	}
}

func (c *Client) ClientID() string { return c.clientID }

func (c *Client) ListFolders(ctx context.Context) ([]model.Folder, error) {
	var out []model.Folder
	err := c.doJSON(ctx, http.MethodGet, "/folders", nil, &out)
	return out, err
}

func (c *Client) CreateFolder(ctx context.Context, name string) (model.Folder, error) {
	var out model.Folder
	err := c.doJSON(ctx, http.MethodPost, "/folders", model.CreateFolderRequest{Name: name}, &out)
	return out, err
}

func (c *Client) ListDocumentsInFolder(ctx context.Context, folderID string) ([]model.Document, error) {
	var out []model.Document
	err := c.doJSON(ctx, http.MethodGet, "/folders/"+url.PathEscape(folderID), nil, &out)
	return out, err
}

func (c *Client) DeleteFolder(ctx context.Context, id string) ([]string, error) {
	var out model.DeleteFolderResponse
	err := c.doJSON(ctx, http.MethodDelete, "/folders/"+url.PathEscape(id), nil, &out)
	return out.DeletedIDs, err
}

func (c *Client) GetDocument(ctx context.Context, id string) (model.Document, error) {
	var out model.Document
	err := c.doJSON(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) CreateDocument(ctx context.Context, req model.CreateDocumentRequest) (model.Document, error) {
	var out model.Document
	err := c.doJSON(ctx, http.MethodPost, "/documents", req, &out)
	return out, err
}

func (c *Client) UpdateDocument(ctx context.Context, id, content string) (model.Document, error) {
	var out model.Document
	err := c.doJSON(ctx, http.MethodPatch, "/documents/"+url.PathEscape(id), model.UpdateDocumentRequest{Content: content}, &out)
	return out, err
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, nil)
}

func (c *Client) GetHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	var out []model.HistoryEntry
	err := c.doJSON(ctx, http.MethodGet, "/history", nil, &out)
	return out, err
}

func (c *Client) AddHistoryEntry(ctx context.Context, id, title string) (model.HistoryEntry, error) {
	var out model.HistoryEntry
	err := c.doJSON(ctx, http.MethodPost, "/history", model.AddHistoryRequest{ID: id, Title: title}, &out)
	return out, err
}

func (c *Client) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	var out []model.SearchResult
	err := c.doJSON(ctx, http.MethodGet, "/search?query="+url.QueryEscape(query), nil, &out)
	return out, err
}

// doJSON sends body as JSON and decodes a 2xx response into out. Only GET
// requests are retried.
func (c *Client) doJSON(ctx context.Context, method, requestPath string, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		if bodyBytes, err = json.Marshal(body); err != nil {
			return err
		}
	}
	retries := 0
	if method == http.MethodGet {
		retries = c.maxRetries
	}

	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
		if err != nil {
			return err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		if c.clientID != "" {
			req.Header.Set("X-Client-ID", c.clientID)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if attempt < retries {
				if waitErr := wait(ctx, c.baseDelay<<attempt); waitErr != nil {
					return waitErr
				}
				continue
			}
			return fmt.Errorf("%s %s: %w: %v", method, requestPath, apperror.ErrNetwork, err)
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("%s %s: %w: %v", method, requestPath, apperror.ErrNetwork, readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payload) == 0 {
				return nil
			}
			return json.Unmarshal(payload, out)
		}
		if resp.StatusCode >= 500 && attempt < retries {
			if waitErr := wait(ctx, c.baseDelay<<attempt); waitErr != nil {
				return waitErr
			}
			continue
		}
		return responseError(resp.StatusCode, payload)
	}
}

func responseError(status int, payload []byte) error {
	var errPayload model.ErrorResponse
	_ = json.Unmarshal(payload, &errPayload)
	msg := errPayload.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	if status == http.StatusBadRequest {
		field, detail, ok := strings.Cut(msg, ": ")
		if !ok {
			field, detail = "request", msg
		}
		return apperror.Invalid(field, detail)
	}
	return &HTTPError{StatusCode: status, Message: msg}
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
