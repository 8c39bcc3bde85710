package api

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valter-silva-au/recall-review/pkg/models"
)

//go:embed fixtures/tasks.json
var fixtureTasksJSON []byte

// stepsPerStage is how many polls a created task spends in each of PENDING
// and PROCESSING before the mock completes it.
const stepsPerStage = 2

// MockClient serves the evaluation API from memory. It starts with a fixed
// set of tasks, advances created tasks through the status lifecycle as they
// are polled, and builds a real .xlsx on export.
type MockClient struct {
	mu      sync.Mutex
	tasks   []models.Task
	polls   map[string]int
	latency time.Duration
	now     func() time.Time
	healthy bool
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock seeded with the bundled fixtures. Each call
// waits latency before answering, honoring context cancellation.
func NewMockClient(latency time.Duration) *MockClient {
	var tasks []models.Task
	if err := json.Unmarshal(fixtureTasksJSON, &tasks); err != nil {
		panic(fmt.Sprintf("failed to parse embedded fixtures: %v", err))
	}
	return &MockClient{
		tasks:   tasks,
		polls:   make(map[string]int),
		latency: latency,
		now:     time.Now,
		healthy: true,
	}
}

// SetHealthy switches the mock health endpoint between ok and 503.
func (m *MockClient) SetHealthy(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = ok
}

func (m *MockClient) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func notFound(what string) *Error {
	return &Error{Status: http.StatusNotFound, Message: what + " not found"}
}

func (m *MockClient) find(taskID string) int {
	for i := range m.tasks {
		if m.tasks[i].TaskID == taskID {
			return i
		}
	}
	return -1
}

// advance moves a task created through the mock one poll closer to
// completion. Fixture tasks never change status.
func (m *MockClient) advance(i int) {
	t := &m.tasks[i]
	count, tracked := m.polls[t.TaskID]
	if !tracked || !t.Status.IsActive() {
		return
	}
	count++
	m.polls[t.TaskID] = count
	switch {
	case count >= 2*stepsPerStage:
		t.Status = models.StatusCompleted
		t.Result = &models.Report{
			TaskID:               t.TaskID,
			StudentID:            t.StudentID,
			StudentName:          t.StudentID,
			UnitID:               t.UnitID,
			SessionIndex:         t.SessionIndex,
			FinalGradeSuggestion: models.GradeA,
			AISummaryComment:     "No issues detected.",
			Annotations:          []models.Annotation{},
			Status:               models.StatusCompleted,
			CreatedAt:            t.CreatedAt,
			UpdatedAt:            models.NewTimestamp(m.now()),
		}
	case count >= stepsPerStage:
		t.Status = models.StatusProcessing
	}
	t.UpdatedAt = models.NewTimestamp(m.now())
}

// CreateEvaluation drains the audio and registers a PENDING task.
func (m *MockClient) CreateEvaluation(ctx context.Context, req models.CreateEvaluationRequest) (*models.CreateEvaluationResponse, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if req.Audio == nil {
		return nil, &Error{Status: http.StatusUnprocessableEntity, Message: "audio_file is required"}
	}
	if _, err := io.Copy(io.Discard, req.Audio); err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := "t-" + uuid.NewString()[:8]
	now := models.NewTimestamp(m.now())
	m.tasks = append(m.tasks, models.Task{
		TaskID:       id,
		StudentID:    req.StudentID,
		UnitID:       req.UnitID,
		SessionIndex: req.SessionIndex,
		AudioPath:    fmt.Sprintf("/uploads/%s_%s_session%d_%s", req.StudentID, req.UnitID, req.SessionIndex, req.AudioName),
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	m.polls[id] = 0
	return &models.CreateEvaluationResponse{
		TaskID:  id,
		Status:  models.StatusPending,
		Message: "evaluation queued",
	}, nil
}

// GetTask returns one task.
func (m *MockClient) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(taskID)
	if i < 0 {
		return nil, notFound("Task")
	}
	m.advance(i)
	t := m.tasks[i].Clone()
	return &t, nil
}

// ListTasks returns every task.
func (m *MockClient) ListTasks(ctx context.Context) ([]models.Task, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Task, len(m.tasks))
	for i := range m.tasks {
		m.advance(i)
		out[i] = m.tasks[i].Clone()
	}
	return out, nil
}

// GetReport returns the report of a graded task.
func (m *MockClient) GetReport(ctx context.Context, taskID string) (*models.Report, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(taskID)
	if i < 0 || m.tasks[i].Result == nil {
		return nil, notFound("Report")
	}
	r := m.tasks[i].Result.Clone()
	return &r, nil
}

// SubmitFeedback stamps approved_at on the report and applies the final
// grade.
func (m *MockClient) SubmitFeedback(ctx context.Context, fb models.TeacherFeedback) (*models.FeedbackResult, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if !fb.FinalGrade.Valid() {
		return nil, &Error{Status: http.StatusUnprocessableEntity, Message: fmt.Sprintf("invalid grade %q", fb.FinalGrade)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(fb.TaskID)
	if i < 0 || m.tasks[i].Result == nil {
		return nil, notFound("Report")
	}
	approved := fb.ApprovedAt
	if approved.IsZero() {
		approved = models.NewTimestamp(m.now())
	}
	r := m.tasks[i].Result
	r.FinalGradeSuggestion = fb.FinalGrade
	r.ApprovedAt = approved
	r.UpdatedAt = models.NewTimestamp(m.now())
	return &models.FeedbackResult{Success: true}, nil
}

// Export builds a workbook of the requested tasks' reports. Unknown ids and
// tasks without a report are skipped.
func (m *MockClient) Export(ctx context.Context, req models.ExportRequest) ([]byte, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	var reports []models.Report
	for _, id := range req.TaskIDs {
		if i := m.find(id); i >= 0 && m.tasks[i].Result != nil {
			reports = append(reports, m.tasks[i].Result.Clone())
		}
	}
	m.mu.Unlock()

	var buf bytes.Buffer
	if err := WriteResultsWorkbook(&buf, reports); err != nil {
		return nil, fmt.Errorf("building export: %w", err)
	}
	return buf.Bytes(), nil
}

// Health reports ok unless SetHealthy(false) was called.
func (m *MockClient) Health(ctx context.Context) (*models.HealthStatus, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy {
		return nil, &Error{Status: http.StatusServiceUnavailable, Message: "HTTP 503: Service Unavailable"}
	}
	return &models.HealthStatus{Status: "ok"}, nil
}
