// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the review dashboard's tasks, reports and alerts as tools for AI
// assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/recall-review/internal/api"
	"github.com/valter-silva-au/recall-review/internal/core"
	"github.com/valter-silva-au/recall-review/internal/datasync"
	"github.com/valter-silva-au/recall-review/internal/observability"
	"github.com/valter-silva-au/recall-review/pkg/models"
)

// Server wraps the sync layer and exposes it as MCP tools.
type Server struct {
	server      *gomcp.Server
	syncer      *datasync.Syncer
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server. metricsCalc and alertEngine may be nil
// if observability is disabled.
func NewServer(syncer *datasync.Syncer, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		syncer:      syncer,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "rrd", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves MCP over stdio, blocking until the client disconnects or the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type listTasksInput struct {
	Grade string `json:"grade,omitempty" jsonschema:"only tasks whose report has this grade: A, B, C or ALL (default ALL)"`
	Sort  string `json:"sort,omitempty" jsonschema:"ordering: priority (default), created_at or student_name"`
}

type taskOutput struct {
	TaskID       string `json:"task_id"`
	Student      string `json:"student"`
	UnitID       string `json:"unit_id,omitempty"`
	SessionIndex int    `json:"session_index,omitempty"`
	Status       string `json:"status"`
	Grade        string `json:"grade,omitempty"`
	MistakeCount int    `json:"mistake_count"`
	Priority     int    `json:"priority"`
	Tier         string `json:"tier"`
	Approved     bool   `json:"approved"`
	CreatedAt    string `json:"created_at,omitempty"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type getReportInput struct {
	TaskID string `json:"task_id" jsonschema:"the evaluation task id"`
}

type annotationOutput struct {
	CardIndex      int    `json:"card_index"`
	Question       string `json:"question"`
	ExpectedAnswer string `json:"expected_answer"`
	DetectedText   string `json:"detected_text"`
	IssueType      string `json:"issue_type"`
	Label          string `json:"label"`
	Hard           bool   `json:"hard"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Explanation    string `json:"explanation"`
}

type segmentOutput struct {
	Text       string `json:"text"`
	Annotation int    `json:"annotation"`
}

type reportOutput struct {
	TaskID         string             `json:"task_id"`
	Student        string             `json:"student"`
	UnitID         string             `json:"unit_id"`
	SessionIndex   int                `json:"session_index"`
	Grade          string             `json:"grade"`
	MistakeCount   int                `json:"mistake_count"`
	HardErrors     int                `json:"hard_errors"`
	Summary        string             `json:"summary"`
	Approved       bool               `json:"approved"`
	ApprovedAt     string             `json:"approved_at,omitempty"`
	AudioURL       string             `json:"audio_url,omitempty"`
	Transcript     string             `json:"transcript"`
	Segments       []segmentOutput    `json:"segments"`
	Annotations    []annotationOutput `json:"annotations"`
	UnmatchedCount int                `json:"unmatched_annotations"`
}

type getSummaryInput struct{}

type summaryOutput struct {
	Total     int            `json:"total"`
	Pending   int            `json:"pending"`
	Approved  int            `json:"approved"`
	Failed    int            `json:"failed"`
	ByGrade   map[string]int `json:"by_grade"`
	HighTier  int            `json:"high_priority"`
	UnreviewedC []string       `json:"unreviewed_c_grades"`
}

type submitFeedbackInput struct {
	TaskID         string `json:"task_id" jsonschema:"the evaluation task id"`
	FinalGrade     string `json:"final_grade" jsonschema:"the teacher's final grade: A, B or C"`
	TeacherComment string `json:"teacher_comment,omitempty" jsonschema:"optional comment for the student"`
}

type submitFeedbackOutput struct {
	Message string `json:"message"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	TaskSyncs          int            `json:"task_syncs"`
	ReportsLoaded      int            `json:"reports_loaded"`
	EvaluationsCreated int            `json:"evaluations_created"`
	FeedbackSubmitted  int            `json:"feedback_submitted"`
	GradeOverrides     int            `json:"grade_overrides"`
	FinalGrades        map[string]int `json:"final_grades"`
	Exports            int            `json:"exports"`
	TasksExported      int            `json:"tasks_exported"`
	HealthFailures     int            `json:"health_failures"`
	APIErrors          int            `json:"api_errors"`
	EventCount         int            `json:"event_count"`
	OldestEvent        string         `json:"oldest_event,omitempty"`
	NewestEvent        string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	TaskID      string `json:"task_id,omitempty"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List evaluation tasks with an optional grade filter and sort order. Each entry carries the review priority and whether a teacher approved it.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_report",
		Description: "Get the evaluation report of a task: grade, AI summary, transcript split into highlighted segments, and every annotation with its time span.",
	}, s.handleGetReport)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_summary",
		Description: "Summarize the review queue: totals, pending and approved counts, grade distribution, and C grades still awaiting review.",
	}, s.handleGetSummary)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "submit_feedback",
		Description: "Approve a report with the teacher's final grade and an optional comment.",
	}, s.handleSubmitFeedback)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get review activity from the event log: feedback submitted, grade overrides, exports and API errors.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (failed evaluations, tasks stuck in processing, unreviewed C grades, service health).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleListTasks(ctx context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	filter, err := core.ParseGradeFilter(input.Grade)
	if err != nil {
		return errorResult(err.Error()), listTasksOutput{}, nil
	}
	sortBy, err := core.ParseSortBy(input.Sort)
	if err != nil {
		return errorResult(err.Error()), listTasksOutput{}, nil
	}
	if err := s.syncer.RefreshTasks(ctx); err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), listTasksOutput{}, nil
	}

	st := s.syncer.Store().Snapshot()
	st.FilterGrade = filter
	st.SortBy = sortBy
	tasks := core.FilteredAndSortedTasks(st)

	out := listTasksOutput{
		Tasks: make([]taskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t)
	}
	return nil, out, nil
}

func (s *Server) handleGetReport(ctx context.Context, _ *gomcp.CallToolRequest, input getReportInput) (*gomcp.CallToolResult, reportOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), reportOutput{}, nil
	}
	r, err := s.syncer.LoadReport(ctx, input.TaskID)
	if err != nil {
		if api.IsNotFound(err) {
			return errorResult(fmt.Sprintf("no report for task %s (it may still be processing)", input.TaskID)), reportOutput{}, nil
		}
		return errorResult(fmt.Sprintf("getting report %s: %s", input.TaskID, err)), reportOutput{}, nil
	}
	return nil, reportToOutput(r), nil
}

func (s *Server) handleGetSummary(ctx context.Context, _ *gomcp.CallToolRequest, _ getSummaryInput) (*gomcp.CallToolResult, summaryOutput, error) {
	if err := s.syncer.RefreshTasks(ctx); err != nil {
		return errorResult(fmt.Sprintf("loading tasks: %s", err)), summaryOutput{}, nil
	}
	st := s.syncer.Store().Snapshot()
	st.FilterGrade = core.FilterAll
	st.SortBy = core.SortByPriority
	stats := core.HeaderStats(st)

	out := summaryOutput{
		Total:     stats.Total,
		Pending:   stats.Pending,
		Approved:  stats.Approved,
		ByGrade:   make(map[string]int),
		UnreviewedC: []string{},
	}
	for _, t := range core.FilteredAndSortedTasks(st) {
		if t.Status == models.StatusFailed {
			out.Failed++
		}
		if t.Result == nil {
			continue
		}
		out.ByGrade[string(t.Result.FinalGradeSuggestion)]++
		if core.TierFor(core.TaskPriority(t)) == core.TierHigh {
			out.HighTier++
		}
		if t.Result.FinalGradeSuggestion == models.GradeC && !t.Result.IsApproved() {
			out.UnreviewedC = append(out.UnreviewedC, t.TaskID)
		}
	}
	return nil, out, nil
}

func (s *Server) handleSubmitFeedback(ctx context.Context, _ *gomcp.CallToolRequest, input submitFeedbackInput) (*gomcp.CallToolResult, submitFeedbackOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), submitFeedbackOutput{}, nil
	}
	grade := models.Grade(input.FinalGrade)
	if !grade.Valid() {
		return errorResult(fmt.Sprintf("invalid grade %q: must be one of A, B, C", input.FinalGrade)), submitFeedbackOutput{}, nil
	}

	_, err := s.syncer.SubmitFeedback(ctx, models.TeacherFeedback{
		TaskID:         input.TaskID,
		FinalGrade:     grade,
		TeacherComment: input.TeacherComment,
	})
	if err != nil {
		return errorResult(err.Error()), submitFeedbackOutput{}, nil
	}
	return nil, submitFeedbackOutput{
		Message: fmt.Sprintf("task %s approved with grade %s", input.TaskID, grade),
	}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := ParseSince(sinceStr, time.Now().UTC())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		TaskSyncs:          metrics.TaskSyncs,
		ReportsLoaded:      metrics.ReportsLoaded,
		EvaluationsCreated: metrics.EvaluationsCreated,
		FeedbackSubmitted:  metrics.FeedbackSubmitted,
		GradeOverrides:     metrics.GradeOverrides,
		FinalGrades:        metrics.FinalGrades,
		Exports:            metrics.Exports,
		TasksExported:      metrics.TasksExported,
		HealthFailures:     metrics.HealthFailures,
		APIErrors:          metrics.APIErrors,
		EventCount:         metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(ctx context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{}, nil
	}
	// Alerts read the Store, so bring it up to date first. A failed refresh
	// still evaluates against whatever the Store holds.
	_ = s.syncer.RefreshTasks(ctx)

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			TaskID:      a.TaskID,
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t models.Task) taskOutput {
	p := core.TaskPriority(t)
	out := taskOutput{
		TaskID:       t.TaskID,
		Student:      t.DisplayName(),
		UnitID:       t.UnitID,
		SessionIndex: t.SessionIndex,
		Status:       string(t.Status),
		Priority:     p,
		Tier:         string(core.TierFor(p)),
		Approved:     t.IsApproved(),
	}
	if !t.CreatedAt.IsZero() {
		out.CreatedAt = t.CreatedAt.Format(time.RFC3339)
	}
	if t.Result != nil {
		out.Grade = string(t.Result.FinalGradeSuggestion)
		out.MistakeCount = t.Result.MistakeCount
	}
	return out
}

func reportToOutput(r *models.Report) reportOutput {
	out := reportOutput{
		TaskID:       r.TaskID,
		Student:      r.StudentName,
		UnitID:       r.UnitID,
		SessionIndex: r.SessionIndex,
		Grade:        string(r.FinalGradeSuggestion),
		MistakeCount: r.MistakeCount,
		HardErrors:   r.HardErrorCount(),
		Summary:      r.AISummaryComment,
		Approved:     r.IsApproved(),
		AudioURL:     r.AudioURL,
		Transcript:   r.FullTranscription,
		Annotations:  make([]annotationOutput, len(r.Annotations)),
	}
	if out.Student == "" {
		out.Student = r.StudentID
	}
	if r.IsApproved() {
		out.ApprovedAt = r.ApprovedAt.Format(time.RFC3339)
	}
	for i, a := range r.Annotations {
		out.Annotations[i] = annotationOutput{
			CardIndex:      a.CardIndex,
			Question:       a.Question,
			ExpectedAnswer: a.ExpectedAnswer,
			DetectedText:   a.DetectedText,
			IssueType:      string(a.IssueType),
			Label:          a.IssueType.Label(),
			Hard:           a.IssueType.IsHardError(),
			Start:          core.FormatMs(a.StartTime),
			End:            core.FormatMs(a.EndTime),
			Explanation:    a.Explanation,
		}
	}

	segments := core.MatchAnnotations(r.FullTranscription, r.Annotations)
	out.Segments = make([]segmentOutput, len(segments))
	matched := make(map[int]bool)
	for i, seg := range segments {
		out.Segments[i] = segmentOutput{Text: seg.Text, Annotation: seg.Index}
		if seg.Highlighted() {
			matched[seg.Index] = true
		}
	}
	out.UnmatchedCount = len(r.Annotations) - len(matched)
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		FinalGrades: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// ParseSince parses a human-friendly duration string like "7d", "30d", or
// "24h" into the corresponding time before now.
func ParseSince(s string, now time.Time) (time.Time, error) {
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
