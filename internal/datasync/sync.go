// Package datasync bridges the evaluation API and the dashboard Store. It
// polls through the query cache, writes results into the Store, runs
// mutations and invalidates the cache entries they affect.
package datasync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/valter-silva-au/recall-review/internal/api"
	"github.com/valter-silva-au/recall-review/internal/core"
	"github.com/valter-silva-au/recall-review/internal/observability"
	"github.com/valter-silva-au/recall-review/internal/query"
	"github.com/valter-silva-au/recall-review/pkg/models"
)

// ErrNothingToExport is returned when an export would cover no tasks. No
// request is made in that case.
var ErrNothingToExport = errors.New("no completed tasks to export")

// Intervals holds the polling cadence.
type Intervals struct {
	TaskList      time.Duration
	TaskListStale time.Duration
	TaskStatus    time.Duration
	ReportStale   time.Duration
	Health        time.Duration
	HealthRetries int
	// HealthRetryBase is the first backoff between health retries; later
	// retries double it.
	HealthRetryBase time.Duration
}

// DefaultIntervals returns the standard cadence: list every 10s, task
// status every 5s, reports fresh for 60s, health every 30s with 3 retries.
func DefaultIntervals() Intervals {
	return Intervals{
		TaskList:        10 * time.Second,
		TaskListStale:   10 * time.Second,
		TaskStatus:      5 * time.Second,
		ReportStale:     60 * time.Second,
		Health:          30 * time.Second,
		HealthRetries:   3,
		HealthRetryBase: time.Second,
	}
}

// IntervalsFromConfig converts the polling section of the global config.
func IntervalsFromConfig(cfg models.PollingConfig) Intervals {
	iv := DefaultIntervals()
	iv.TaskList = cfg.TaskListInterval
	iv.TaskListStale = cfg.TaskListInterval
	iv.TaskStatus = cfg.TaskStatusInterval
	iv.ReportStale = cfg.ReportStaleTime
	iv.Health = cfg.HealthInterval
	iv.HealthRetries = cfg.HealthRetries
	return iv
}

// Options configures a Syncer. Client and Store are required.
type Options struct {
	Client    api.Client
	Store     *core.Store
	Cache     *query.Cache
	EventLog  observability.EventLog
	Logger    *slog.Logger
	Intervals Intervals
	ExportDir string
	Now       func() time.Time
}

// Syncer runs every read and write between the API and the Store.
type Syncer struct {
	client    api.Client
	store     *core.Store
	cache     *query.Cache
	events    observability.EventLog
	logger    *slog.Logger
	iv        Intervals
	exportDir string
	now       func() time.Time
}

// New creates a Syncer. A nil Cache gets a fresh one; a zero Intervals gets
// DefaultIntervals.
func New(opts Options) *Syncer {
	s := &Syncer{
		client:    opts.Client,
		store:     opts.Store,
		cache:     opts.Cache,
		events:    opts.EventLog,
		logger:    opts.Logger,
		iv:        opts.Intervals,
		exportDir: opts.ExportDir,
		now:       opts.Now,
	}
	if s.cache == nil {
		s.cache = query.New()
	}
	if s.iv == (Intervals{}) {
		s.iv = DefaultIntervals()
	}
	if s.exportDir == "" {
		s.exportDir = "."
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// log returns the configured logger, or the current slog default so a
// redirect with slog.SetDefault takes effect.
func (s *Syncer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Store returns the Store the syncer writes into.
func (s *Syncer) Store() *core.Store { return s.store }

// Cache returns the query cache.
func (s *Syncer) Cache() *query.Cache { return s.cache }

// Run keeps the task list and health polls going until ctx is done.
// onHealth may be nil.
func (s *Syncer) Run(ctx context.Context, onHealth func(*models.HealthStatus, error)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.WatchTasks(ctx)
		return nil
	})
	g.Go(func() error {
		s.WatchHealth(ctx, onHealth)
		return nil
	})
	return g.Wait()
}

// errorText renders err for the Store's error banner.
func errorText(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// fail records a failed operation: an api.error event, a debug log line and
// the user-facing message "<op> failed: <reason>" in the Store.
func (s *Syncer) fail(op string, err error, toStore bool) string {
	msg := fmt.Sprintf("%s failed: %s", op, errorText(err))
	s.log().Debug("sync operation failed", "op", op, "error", err)
	s.record(observability.LevelError, observability.EventAPIError, msg, map[string]any{
		"op":     op,
		"status": api.StatusOf(err),
	})
	if toStore {
		s.store.SetError(msg)
	}
	return msg
}

// clearError removes msg from the Store if it is still the current error.
func (s *Syncer) clearError(msg string) {
	if msg != "" && s.store.Snapshot().Error == msg {
		s.store.SetError("")
	}
}

func (s *Syncer) record(level, eventType, msg string, data map[string]any) {
	if s.events == nil {
		return
	}
	e := observability.NewEvent(level, eventType, msg, data)
	e.Time = s.now().UTC()
	if err := s.events.Write(e); err != nil {
		s.log().Debug("writing event", "type", eventType, "error", err)
	}
}

func (s *Syncer) fetchTasks(ctx context.Context) (any, error) {
	return s.client.ListTasks(ctx)
}

// applyTasks writes a list poll result into the Store and returns the error
// message it set, if any.
func (s *Syncer) applyTasks(data any, err error, lastErr string) string {
	defer s.store.SetLoading(false)
	if err != nil {
		return s.fail("loading tasks", err, true)
	}
	tasks, _ := data.([]models.Task)
	s.store.SetTasks(tasks)
	s.clearError(lastErr)
	s.record(observability.LevelInfo, observability.EventTasksSynced, "task list synced", map[string]any{"count": len(tasks)})
	return ""
}

// WatchTasks polls the task list until ctx is done, replacing the Store's
// tasks after every successful poll. A failed poll sets the Store error; the
// next successful poll clears it again.
func (s *Syncer) WatchTasks(ctx context.Context) {
	s.store.SetLoading(true)
	lastErr := ""
	s.cache.Watch(ctx, query.TasksKey(), query.WatchOptions{
		StaleTime:       s.iv.TaskListStale,
		RefetchInterval: s.iv.TaskList,
	}, s.fetchTasks, func(data any, err error) {
		lastErr = s.applyTasks(data, err, lastErr)
	})
}

// RefreshTasks reloads the task list now, bypassing freshness. A successful
// reload clears the Store error, whatever set it.
func (s *Syncer) RefreshTasks(ctx context.Context) error {
	s.store.SetLoading(true)
	s.cache.Invalidate(query.TasksKey())
	data, err := s.cache.Refetch(ctx, query.TasksKey(), s.fetchTasks)
	if ctx.Err() != nil {
		s.store.SetLoading(false)
		return ctx.Err()
	}
	if msg := s.applyTasks(data, err, s.store.Snapshot().Error); msg != "" {
		return fmt.Errorf("refreshing tasks: %w", err)
	}
	return nil
}

// WatchTask polls one task's status until ctx is done and merges every
// result into the matching Store entry.
func (s *Syncer) WatchTask(ctx context.Context, id string) {
	var lastStatus models.TaskStatus
	s.cache.Watch(ctx, query.TaskKey(id), query.WatchOptions{
		RefetchInterval: s.iv.TaskStatus,
	}, func(ctx context.Context) (any, error) {
		return s.client.GetTask(ctx, id)
	}, func(data any, err error) {
		if err != nil {
			s.fail("loading task "+id, err, false)
			return
		}
		task, _ := data.(*models.Task)
		if task == nil {
			return
		}
		s.store.UpdateTask(id, core.PatchFromTask(*task))
		if task.Status != lastStatus {
			s.record(observability.LevelInfo, observability.EventTaskUpdated, "task status changed", map[string]any{
				"task_id": id,
				"status":  string(task.Status),
			})
			lastStatus = task.Status
		}
	})
}

// SelectTask makes id the selected task and loads its report. Pass "" to
// clear the selection. A report still shown for another task is cleared
// first so the view never pairs a task with someone else's report.
func (s *Syncer) SelectTask(ctx context.Context, id string) error {
	s.store.SetSelectedTaskID(id)
	if id == "" {
		s.store.SetSelectedReport(nil)
		return nil
	}
	if r := s.store.Snapshot().SelectedReport; r != nil && r.TaskID != id {
		s.store.SetSelectedReport(nil)
	}
	_, err := s.LoadReport(ctx, id)
	return err
}

// LoadReport fetches the report of task id, serving a cached copy while it
// is fresh. The Store's selected report is only replaced when id is still
// the selected task; a late report for a previous selection is dropped.
// A missing report is not a Store error: the view renders "not found".
func (s *Syncer) LoadReport(ctx context.Context, id string) (*models.Report, error) {
	r, err := query.FetchAs(ctx, s.cache, query.ReportKey(id), s.iv.ReportStale, func(ctx context.Context) (*models.Report, error) {
		return s.client.GetReport(ctx, id)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.fail("loading report", err, !api.IsNotFound(err))
		return nil, fmt.Errorf("loading report %s: %w", id, err)
	}
	if s.store.Snapshot().SelectedTaskID == id {
		s.store.SetSelectedReport(r)
	}
	s.record(observability.LevelInfo, observability.EventReportLoaded, "report loaded", map[string]any{
		"task_id": id,
		"grade":   string(r.FinalGradeSuggestion),
	})
	return r, nil
}

// CreateEvaluation uploads a recording. On success a placeholder task is
// added to the Store right away and the task list is invalidated so the next
// poll brings the real record.
func (s *Syncer) CreateEvaluation(ctx context.Context, req models.CreateEvaluationRequest) (*models.CreateEvaluationResponse, error) {
	return query.Mutate(ctx, query.Mutation[*models.CreateEvaluationResponse]{
		Fn: func(ctx context.Context) (*models.CreateEvaluationResponse, error) {
			return s.client.CreateEvaluation(ctx, req)
		},
		OnSuccess: func(resp *models.CreateEvaluationResponse) {
			now := models.NewTimestamp(s.now())
			s.store.AddTask(models.Task{
				TaskID:    resp.TaskID,
				Status:    resp.Status,
				CreatedAt: now,
				UpdatedAt: now,
			})
			s.cache.Invalidate(query.TasksKey())
			s.record(observability.LevelInfo, observability.EventEvaluationCreated, "evaluation created", map[string]any{
				"task_id":    resp.TaskID,
				"student_id": req.StudentID,
			})
		},
		OnError: func(err error) {
			s.fail("creating evaluation", err, true)
		},
	})
}

// SubmitFeedback sends the teacher's final grade and comment. A zero
// ApprovedAt is stamped with the current time. On success exactly the task
// and report entries of fb.TaskID are invalidated, and the report is
// reloaded when that task is selected.
func (s *Syncer) SubmitFeedback(ctx context.Context, fb models.TeacherFeedback) (*models.FeedbackResult, error) {
	if fb.ApprovedAt.IsZero() {
		fb.ApprovedAt = models.NewTimestamp(s.now())
	}
	suggested := ""
	if t, err := core.TaskByID(s.store.Snapshot(), fb.TaskID); err == nil && t.Result != nil {
		suggested = string(t.Result.FinalGradeSuggestion)
	}

	res, err := query.Mutate(ctx, query.Mutation[*models.FeedbackResult]{
		Fn: func(ctx context.Context) (*models.FeedbackResult, error) {
			return s.client.SubmitFeedback(ctx, fb)
		},
		OnSuccess: func(*models.FeedbackResult) {
			s.cache.Invalidate(query.TaskKey(fb.TaskID))
			s.cache.Invalidate(query.ReportKey(fb.TaskID))
			s.record(observability.LevelInfo, observability.EventFeedbackSubmitted, "feedback submitted", map[string]any{
				"task_id":         fb.TaskID,
				"final_grade":     string(fb.FinalGrade),
				"suggested_grade": suggested,
			})
		},
		OnError: func(err error) {
			s.fail("submitting feedback", err, true)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("submitting feedback: %w", err)
	}
	if s.store.Snapshot().SelectedTaskID == fb.TaskID {
		_, _ = s.LoadReport(ctx, fb.TaskID)
	}
	return res, nil
}

// ExportFileName is the name an export is saved under for the given day.
func ExportFileName(day time.Time) string {
	return fmt.Sprintf("evaluation_results_%s.xlsx", day.UTC().Format("2006-01-02"))
}

// ExportCompleted exports the COMPLETED tasks of the Store's current
// filtered view and returns the written file path.
func (s *Syncer) ExportCompleted(ctx context.Context) (string, error) {
	return s.ExportTasks(ctx, core.CompletedTaskIDs(s.store.Snapshot()), "")
}

// ExportTasks exports the given tasks into dir (the configured export
// directory when empty). An empty id list fails with ErrNothingToExport
// before any request is made.
func (s *Syncer) ExportTasks(ctx context.Context, ids []string, dir string) (string, error) {
	if len(ids) == 0 {
		s.store.SetError(fmt.Sprintf("export failed: %s", ErrNothingToExport))
		return "", ErrNothingToExport
	}
	if dir == "" {
		dir = s.exportDir
	}

	data, err := query.Mutate(ctx, query.Mutation[[]byte]{
		Fn: func(ctx context.Context) ([]byte, error) {
			return s.client.Export(ctx, models.ExportRequest{TaskIDs: ids})
		},
		OnError: func(err error) {
			s.fail("export", err, true)
		},
	})
	if err != nil {
		return "", fmt.Errorf("exporting results: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.fail("export", err, true)
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	path := filepath.Join(dir, ExportFileName(s.now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.fail("export", err, true)
		return "", fmt.Errorf("writing export: %w", err)
	}

	s.record(observability.LevelInfo, observability.EventExportCompleted, "export completed", map[string]any{
		"count": len(ids),
		"path":  path,
		"bytes": len(data),
	})
	return path, nil
}

// CheckHealth calls the health endpoint, retrying failures with exponential
// backoff up to the configured number of retries.
func (s *Syncer) CheckHealth(ctx context.Context) (*models.HealthStatus, error) {
	h, err := s.checkHealth(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking health: %w", err)
	}
	return h, nil
}

func (s *Syncer) checkHealth(ctx context.Context) (*models.HealthStatus, error) {
	retries := s.iv.HealthRetries
	if retries < 0 {
		retries = 0
	}
	base := s.iv.HealthRetryBase
	if base <= 0 {
		base = time.Second
	}
	backoff := retry.WithMaxRetries(uint64(retries), retry.WithCappedDuration(30*time.Second, retry.NewExponential(base)))

	status, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (*models.HealthStatus, error) {
		h, err := s.client.Health(ctx)
		if err != nil {
			return nil, retry.RetryableError(err)
		}
		return h, nil
	})

	data := map[string]any{"ok": err == nil}
	level := observability.LevelInfo
	if err != nil {
		data["error"] = errorText(err)
		level = observability.LevelWarn
	}
	s.record(level, observability.EventHealthChecked, "health checked", data)
	return status, err
}

// WatchHealth checks health immediately and then every health interval
// until ctx is done. fn receives each outcome and may be nil.
func (s *Syncer) WatchHealth(ctx context.Context, fn func(*models.HealthStatus, error)) {
	s.cache.Watch(ctx, query.HealthKey, query.WatchOptions{
		RefetchInterval: s.iv.Health,
	}, func(ctx context.Context) (any, error) {
		return s.checkHealth(ctx)
	}, func(data any, err error) {
		if fn == nil {
			return
		}
		h, _ := data.(*models.HealthStatus)
		fn(h, err)
	})
}
