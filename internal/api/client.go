// Package api is the client for the evaluation service HTTP API. It offers
// an HTTP implementation and an in-memory mock with the same behaviour.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"

	"github.com/valter-silva-au/recall-review/pkg/models"
)

// Client is the set of evaluation service operations the dashboard uses.
type Client interface {
	CreateEvaluation(ctx context.Context, req models.CreateEvaluationRequest) (*models.CreateEvaluationResponse, error)
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	ListTasks(ctx context.Context) ([]models.Task, error)
	GetReport(ctx context.Context, taskID string) (*models.Report, error)
	SubmitFeedback(ctx context.Context, fb models.TeacherFeedback) (*models.FeedbackResult, error)
	Export(ctx context.Context, req models.ExportRequest) ([]byte, error)
	Health(ctx context.Context) (*models.HealthStatus, error)
}

// RequestIDHeader carries a per-request id for correlating service logs.
const RequestIDHeader = "X-Request-ID"

// Options configures an HTTPClient.
type Options struct {
	BaseURL string
	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration
	// ValidateResponses checks task and report bodies against the embedded
	// JSON schemas before decoding.
	ValidateResponses bool
	// HTTPClient overrides the underlying client; its transport is used as-is.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// HTTPClient talks to the evaluation service over HTTP.
type HTTPClient struct {
	baseURL  string
	http     *http.Client
	validate bool
	logger   *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the service at opts.BaseURL. Responses
// are transparently gzip-decoded.
func NewHTTPClient(opts Options) *HTTPClient {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		}
	}
	return &HTTPClient{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     hc,
		validate: opts.ValidateResponses,
		logger:   opts.Logger,
	}
}

func (c *HTTPClient) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

// do sends one request and returns the body of a 2xx response. Other
// statuses become *Error.
func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log().Debug("request failed", "method", method, "path", path, "request_id", reqID, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", method, path, err)
	}
	c.log().Debug("request done", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", reqID, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newError(resp.StatusCode, data, reqID)
	}
	return data, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, check func([]byte) error, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return c.decode(path, data, check, out)
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", path, err)
	}
	data, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	return c.decode(path, data, nil, out)
}

func (c *HTTPClient) decode(path string, data []byte, check func([]byte) error, out any) error {
	if c.validate && check != nil {
		if err := check(data); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// CreateEvaluation uploads a recorded session as multipart form data.
func (c *HTTPClient) CreateEvaluation(ctx context.Context, req models.CreateEvaluationRequest) (*models.CreateEvaluationResponse, error) {
	if req.Audio == nil {
		return nil, fmt.Errorf("creating evaluation: audio is required")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := []struct{ name, value string }{
		{"student_id", req.StudentID},
		{"unit_id", req.UnitID},
		{"session_index", strconv.Itoa(req.SessionIndex)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("writing form field %s: %w", f.name, err)
		}
	}
	name := req.AudioName
	if name == "" {
		name = "audio"
	}
	fw, err := mw.CreateFormFile("audio_file", name)
	if err != nil {
		return nil, fmt.Errorf("creating audio form part: %w", err)
	}
	if _, err := io.Copy(fw, req.Audio); err != nil {
		return nil, fmt.Errorf("copying audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/evaluate/session", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var out models.CreateEvaluationResponse
	if err := c.decode("/evaluate/session", data, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTask fetches the current state of one task.
func (c *HTTPClient) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var out models.Task
	if err := c.getJSON(ctx, "/evaluate/task/"+url.PathEscape(taskID), ValidateTask, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks fetches every task.
func (c *HTTPClient) ListTasks(ctx context.Context) ([]models.Task, error) {
	var out []models.Task
	if err := c.getJSON(ctx, "/evaluate/tasks", ValidateTaskList, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetReport fetches the report of one task.
func (c *HTTPClient) GetReport(ctx context.Context, taskID string) (*models.Report, error) {
	var out models.Report
	if err := c.getJSON(ctx, "/evaluate/report/"+url.PathEscape(taskID), ValidateReport, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitFeedback posts a teacher's final grade and comment.
func (c *HTTPClient) SubmitFeedback(ctx context.Context, fb models.TeacherFeedback) (*models.FeedbackResult, error) {
	var out models.FeedbackResult
	if err := c.postJSON(ctx, "/evaluate/feedback", fb, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export requests a spreadsheet of the given tasks and returns its bytes.
func (c *HTTPClient) Export(ctx context.Context, req models.ExportRequest) ([]byte, error) {
	if req.TaskIDs == nil {
		req.TaskIDs = []string{}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding export request: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/evaluate/export", bytes.NewReader(payload), "application/json")
}

// Health reports the service status.
func (c *HTTPClient) Health(ctx context.Context) (*models.HealthStatus, error) {
	var out models.HealthStatus
	if err := c.getJSON(ctx, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
