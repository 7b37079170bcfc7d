package notesync

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MutationResult carries the canonical id assigned by the server, plus the
// processing job id for mutations that start one.
type MutationResult struct {
	ID    string `json:"id"`
	JobID string `json:"jobId,omitempty"`
}

type JobState struct {
	Status NoteStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// RemoteClient is the consumed mutation surface. The core never implements
// these endpoints; it only calls them.
type RemoteClient interface {
	CreateFolder(ctx context.Context, name, parentID string) (MutationResult, error)
	RenameFolder(ctx context.Context, id, name string) error
	MoveFolder(ctx context.Context, id, parentID string) error
	DeleteFolder(ctx context.Context, id string) error
	CreateNote(ctx context.Context, title, folderID string) (MutationResult, error)
	RenameNote(ctx context.Context, id, title string) error
	MoveNote(ctx context.Context, id, folderID string) error
	DeleteNote(ctx context.Context, id string) error
	JobStatus(ctx context.Context, jobID string) (JobState, error)
}

type RemoteClientOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

type HTTPRemoteClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewHTTPRemoteClient(opts RemoteClientOptions) *HTTPRemoteClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &HTTPRemoteClient{
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		httpClient: httpClient,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

func (c *HTTPRemoteClient) CreateFolder(ctx context.Context, name, parentID string) (MutationResult, error) {
	body := map[string]any{"name": name}
	if parentID != "" {
		body["parentId"] = parentID
	}
	var out MutationResult
	err := c.doJSON(ctx, http.MethodPost, "/v1/folders", body, &out)
	return out, err
}

func (c *HTTPRemoteClient) RenameFolder(ctx context.Context, id, name string) error {
	return c.doJSON(ctx, http.MethodPatch, "/v1/folders/"+url.PathEscape(id), map[string]any{"name": name}, nil)
}

func (c *HTTPRemoteClient) MoveFolder(ctx context.Context, id, parentID string) error {
	return c.doJSON(ctx, http.MethodPatch, "/v1/folders/"+url.PathEscape(id), map[string]any{"parentId": parentID}, nil)
}

func (c *HTTPRemoteClient) DeleteFolder(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/folders/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPRemoteClient) CreateNote(ctx context.Context, title, folderID string) (MutationResult, error) {
	body := map[string]any{"title": title}
	if folderID != "" {
		body["folderId"] = folderID
	}
	var out MutationResult
	err := c.doJSON(ctx, http.MethodPost, "/v1/notes", body, &out)
	return out, err
}

func (c *HTTPRemoteClient) RenameNote(ctx context.Context, id, title string) error {
	return c.doJSON(ctx, http.MethodPatch, "/v1/notes/"+url.PathEscape(id), map[string]any{"title": title}, nil)
}

func (c *HTTPRemoteClient) MoveNote(ctx context.Context, id, folderID string) error {
	return c.doJSON(ctx, http.MethodPatch, "/v1/notes/"+url.PathEscape(id), map[string]any{"folderId": folderID}, nil)
}

func (c *HTTPRemoteClient) DeleteNote(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/notes/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPRemoteClient) JobStatus(ctx context.Context, jobID string) (JobState, error) {
	var out JobState
	err := c.doJSON(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID), nil, &out)
	return out, err
}

func (c *HTTPRemoteClient) doJSON(ctx context.Context, method, requestPath string, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	correlationID := "mut_" + uuid.NewString()
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
		req.Header.Set("X-Correlation-Id", correlationID)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payload) == 0 {
				return nil
			}
			return json.Unmarshal(payload, out)
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < c.maxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		var errPayload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payload, &errPayload)
		if errPayload.Message == "" {
			errPayload.Message = strings.TrimSpace(string(payload))
		}
		return &RemoteError{
			StatusCode: resp.StatusCode,
			Code:       errPayload.Code,
			Message:    errPayload.Message,
		}
	}
}

func (c *HTTPRemoteClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
