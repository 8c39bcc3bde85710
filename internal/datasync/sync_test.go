package datasync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valter-silva-au/recall-review/internal/api"
	"github.com/valter-silva-au/recall-review/internal/core"
	"github.com/valter-silva-au/recall-review/internal/observability"
	"github.com/valter-silva-au/recall-review/internal/query"
	"github.com/valter-silva-au/recall-review/pkg/models"
)

var syncNow = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

// countingClient wraps the mock to count calls and inject failures.
type countingClient struct {
	*api.MockClient

	mu             sync.Mutex
	exports        int
	listCalls      int
	listErr        error
	healthCalls    int
	healthFailures int
}

func (c *countingClient) ListTasks(ctx context.Context) ([]models.Task, error) {
	c.mu.Lock()
	c.listCalls++
	err := c.listErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.MockClient.ListTasks(ctx)
}

func (c *countingClient) Export(ctx context.Context, req models.ExportRequest) ([]byte, error) {
	c.mu.Lock()
	c.exports++
	c.mu.Unlock()
	return c.MockClient.Export(ctx, req)
}

func (c *countingClient) Health(ctx context.Context) (*models.HealthStatus, error) {
	c.mu.Lock()
	c.healthCalls++
	fail := c.healthCalls <= c.healthFailures
	c.mu.Unlock()
	if fail {
		return nil, &api.Error{Status: 503, Message: "HTTP 503: Service Unavailable"}
	}
	return c.MockClient.Health(ctx)
}

func (c *countingClient) setListErr(err error) {
	c.mu.Lock()
	c.listErr = err
	c.mu.Unlock()
}

type fixture struct {
	client *countingClient
	store  *core.Store
	events observability.EventLog
	syncer *Syncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	events, err := observability.NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })

	client := &countingClient{MockClient: api.NewMockClient(0)}
	store := core.NewStore(core.StoreOptions{})
	iv := DefaultIntervals()
	iv.TaskList = 5 * time.Millisecond
	iv.TaskListStale = 0
	iv.TaskStatus = 5 * time.Millisecond
	iv.Health = 5 * time.Millisecond
	iv.HealthRetryBase = time.Millisecond

	return &fixture{
		client: client,
		store:  store,
		events: events,
		syncer: New(Options{
			Client:    client,
			Store:     store,
			EventLog:  events,
			Intervals: iv,
			ExportDir: t.TempDir(),
			Now:       func() time.Time { return syncNow },
		}),
	}
}

func (f *fixture) eventsOfType(t *testing.T, typ string) []observability.Event {
	t.Helper()
	evs, err := f.events.Read(observability.EventFilter{Type: typ})
	require.NoError(t, err)
	return evs
}

func TestRefreshTasks_PopulatesStore(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.syncer.RefreshTasks(context.Background()))

	st := f.store.Snapshot()
	assert.Len(t, st.Tasks, 5)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)

	evs := f.eventsOfType(t, observability.EventTasksSynced)
	require.Len(t, evs, 1)
	assert.EqualValues(t, 5, evs[0].Data["count"])
	assert.True(t, evs[0].Time.Equal(syncNow))
}

func TestRefreshTasks_FailureSetsErrorAndRecovers(t *testing.T) {
	f := newFixture(t)
	f.client.setListErr(&api.Error{Status: 502, Message: "HTTP 502: Bad Gateway"})

	err := f.syncer.RefreshTasks(context.Background())
	require.Error(t, err)
	assert.Equal(t, 502, api.StatusOf(err))
	assert.Equal(t, "loading tasks failed: HTTP 502: Bad Gateway", f.store.Snapshot().Error)
	assert.Len(t, f.eventsOfType(t, observability.EventAPIError), 1)

	f.client.setListErr(nil)
	require.NoError(t, f.syncer.RefreshTasks(context.Background()))
	assert.Empty(t, f.store.Snapshot().Error)
	assert.Len(t, f.store.Snapshot().Tasks, 5)
}

func TestWatchTasks_PollsUntilCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.syncer.WatchTasks(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		f.client.mu.Lock()
		defer f.client.mu.Unlock()
		return f.client.listCalls >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, f.store.Snapshot().Tasks, 5)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WatchTasks did not return after cancel")
	}
}

func TestWatchTasks_ErrorClearedByNextSuccess(t *testing.T) {
	f := newFixture(t)
	f.client.setListErr(errors.New("connection refused"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.syncer.WatchTasks(ctx)

	require.Eventually(t, func() bool {
		return f.store.Snapshot().Error == "loading tasks failed: connection refused"
	}, 2*time.Second, 5*time.Millisecond)

	f.client.setListErr(nil)
	require.Eventually(t, func() bool {
		st := f.store.Snapshot()
		return st.Error == "" && len(st.Tasks) == 5
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWatchTasks_KeepsUnrelatedError(t *testing.T) {
	f := newFixture(t)
	f.store.SetError("submitting feedback failed: nope")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.syncer.WatchTasks(ctx)

	require.Eventually(t, func() bool {
		return len(f.store.Snapshot().Tasks) == 5
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "submitting feedback failed: nope", f.store.Snapshot().Error)
}

func TestSelectTask_LoadsReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.syncer.SelectTask(ctx, "t003"))
	st := f.store.Snapshot()
	assert.Equal(t, "t003", st.SelectedTaskID)
	require.NotNil(t, st.SelectedReport)
	assert.Equal(t, "t003", st.SelectedReport.TaskID)
	assert.Equal(t, models.GradeC, st.SelectedReport.FinalGradeSuggestion)
	assert.Len(t, f.eventsOfType(t, observability.EventReportLoaded), 1)
}

func TestSelectTask_SwitchClearsPreviousReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.syncer.SelectTask(ctx, "t003"))
	err := f.syncer.SelectTask(ctx, "t004")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))

	st := f.store.Snapshot()
	assert.Equal(t, "t004", st.SelectedTaskID)
	assert.Nil(t, st.SelectedReport, "the previous task's report must not stay on screen")
	assert.Empty(t, st.Error, "a missing report renders as not found, not as an error banner")
}

func TestLoadReport_DropsReportForUnselectedTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.syncer.SelectTask(ctx, "t003"))
	r, err := f.syncer.LoadReport(ctx, "t002")
	require.NoError(t, err)
	assert.Equal(t, "t002", r.TaskID)

	st := f.store.Snapshot()
	require.NotNil(t, st.SelectedReport)
	assert.Equal(t, "t003", st.SelectedReport.TaskID)
}

func TestSelectTask_EmptyClearsSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.syncer.SelectTask(ctx, "t001"))
	require.NoError(t, f.syncer.SelectTask(ctx, ""))
	st := f.store.Snapshot()
	assert.Empty(t, st.SelectedTaskID)
	assert.Nil(t, st.SelectedReport)
}

func TestCreateEvaluation_OptimisticPlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.syncer.RefreshTasks(ctx))
	require.False(t, f.syncer.Cache().IsStale(query.TasksKey(), time.Hour))

	resp, err := f.syncer.CreateEvaluation(ctx, models.CreateEvaluationRequest{
		StudentID: "s9", UnitID: "R300", SessionIndex: 1, AudioName: "a.mp3", Audio: strings.NewReader("x"),
	})
	require.NoError(t, err)

	task, err := core.TaskByID(f.store.Snapshot(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, task.Status)
	assert.Empty(t, task.StudentID, "placeholder fields stay empty until the next poll")
	assert.True(t, task.CreatedAt.Equal(syncNow))
	assert.True(t, f.syncer.Cache().IsStale(query.TasksKey(), time.Hour), "task list must be invalidated")
	assert.Len(t, f.eventsOfType(t, observability.EventEvaluationCreated), 1)
}

func TestCreateEvaluation_FailureSetsError(t *testing.T) {
	f := newFixture(t)

	_, err := f.syncer.CreateEvaluation(context.Background(), models.CreateEvaluationRequest{StudentID: "s9"})
	require.Error(t, err)
	assert.Equal(t, "creating evaluation failed: audio_file is required", f.store.Snapshot().Error)
	assert.Empty(t, f.store.Snapshot().Tasks)
}

func TestWatchTask_MergesStatus(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp, err := f.syncer.CreateEvaluation(ctx, models.CreateEvaluationRequest{
		StudentID: "s9", UnitID: "R300", SessionIndex: 1, Audio: strings.NewReader("x"),
	})
	require.NoError(t, err)

	go f.syncer.WatchTask(ctx, resp.TaskID)

	require.Eventually(t, func() bool {
		task, err := core.TaskByID(f.store.Snapshot(), resp.TaskID)
		return err == nil && task.Status == models.StatusCompleted && task.Result != nil
	}, 2*time.Second, 5*time.Millisecond)

	task, _ := core.TaskByID(f.store.Snapshot(), resp.TaskID)
	assert.Equal(t, "s9", task.StudentID)
	assert.GreaterOrEqual(t, len(f.eventsOfType(t, observability.EventTaskUpdated)), 2)
}

func TestSubmitFeedback_InvalidatesOnlyThatTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := f.syncer.Cache()

	require.NoError(t, f.syncer.RefreshTasks(ctx))
	require.NoError(t, f.syncer.SelectTask(ctx, "t003"))
	_, err := f.syncer.LoadReport(ctx, "t002")
	require.NoError(t, err)
	cache.Set(query.TaskKey("t003"), &models.Task{TaskID: "t003"})
	cache.Set(query.TaskKey("t0030"), &models.Task{TaskID: "t0030"})

	res, err := f.syncer.SubmitFeedback(ctx, models.TeacherFeedback{TaskID: "t003", FinalGrade: models.GradeB, TeacherComment: "ok"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	assert.True(t, cache.IsStale(query.TaskKey("t003"), time.Hour))
	assert.False(t, cache.IsStale(query.TaskKey("t0030"), time.Hour))
	assert.False(t, cache.IsStale(query.ReportKey("t002"), time.Hour))
	assert.False(t, cache.IsStale(query.TasksKey(), time.Hour))

	st := f.store.Snapshot()
	require.NotNil(t, st.SelectedReport)
	assert.True(t, st.SelectedReport.IsApproved(), "selected report is reloaded after approval")
	assert.True(t, st.SelectedReport.ApprovedAt.Equal(syncNow), "approved_at defaults to now")
	assert.Equal(t, models.GradeB, st.SelectedReport.FinalGradeSuggestion)

	evs := f.eventsOfType(t, observability.EventFeedbackSubmitted)
	require.Len(t, evs, 1)
	assert.Equal(t, "C", evs[0].Data["suggested_grade"])
	assert.Equal(t, "B", evs[0].Data["final_grade"])
}

func TestSubmitFeedback_FailureSetsError(t *testing.T) {
	f := newFixture(t)

	_, err := f.syncer.SubmitFeedback(context.Background(), models.TeacherFeedback{TaskID: "t003", FinalGrade: "E"})
	require.Error(t, err)
	assert.Equal(t, 422, api.StatusOf(err))
	assert.Equal(t, `submitting feedback failed: invalid grade "E"`, f.store.Snapshot().Error)
}

func TestExportCompleted_WritesWorkbook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.syncer.RefreshTasks(ctx))
	f.store.SetFilterGrade(core.FilterC)

	path, err := f.syncer.ExportCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, "evaluation_results_2025-04-01.xlsx", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "PK"), "xlsx is a zip package")

	evs := f.eventsOfType(t, observability.EventExportCompleted)
	require.Len(t, evs, 1)
	assert.EqualValues(t, 1, evs[0].Data["count"], "only the C-grade task is in the filtered view")
}

func TestExportCompleted_NothingToExport(t *testing.T) {
	f := newFixture(t)

	_, err := f.syncer.ExportCompleted(context.Background())
	require.ErrorIs(t, err, ErrNothingToExport)
	assert.Zero(t, f.client.exports, "no request is made for an empty export")
	assert.Contains(t, f.store.Snapshot().Error, ErrNothingToExport.Error())
}

func TestExportTasks_ExplicitDir(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(t.TempDir(), "nested", "out")

	path, err := f.syncer.ExportTasks(context.Background(), []string{"t001"}, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, 1, f.client.exports)
}

func TestCheckHealth_RetriesThenSucceeds(t *testing.T) {
	f := newFixture(t)
	f.client.healthFailures = 2

	h, err := f.syncer.CheckHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 3, f.client.healthCalls)

	evs := f.eventsOfType(t, observability.EventHealthChecked)
	require.Len(t, evs, 1)
	assert.Equal(t, true, evs[0].Data["ok"])
}

func TestCheckHealth_GivesUpAfterRetries(t *testing.T) {
	f := newFixture(t)
	f.client.healthFailures = 100

	_, err := f.syncer.CheckHealth(context.Background())
	require.Error(t, err)
	assert.Equal(t, 503, api.StatusOf(err))
	assert.Equal(t, 4, f.client.healthCalls, "one attempt plus three retries")

	evs := f.eventsOfType(t, observability.EventHealthChecked)
	require.Len(t, evs, 1)
	assert.Equal(t, false, evs[0].Data["ok"])
	assert.Equal(t, "HTTP 503: Service Unavailable", evs[0].Data["error"])
}

func TestRun_StopsWithContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	healthy := 0
	errc := make(chan error, 1)
	go func() {
		errc <- f.syncer.Run(ctx, func(h *models.HealthStatus, err error) {
			if err == nil && h != nil {
				mu.Lock()
				healthy++
				mu.Unlock()
			}
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return healthy > 0 && len(f.store.Snapshot().Tasks) == 5
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestIntervalsFromConfig(t *testing.T) {
	iv := IntervalsFromConfig(models.PollingConfig{
		TaskListInterval:   20 * time.Second,
		TaskStatusInterval: 2 * time.Second,
		HealthInterval:     time.Minute,
		HealthRetries:      1,
		ReportStaleTime:    5 * time.Minute,
	})
	assert.Equal(t, 20*time.Second, iv.TaskList)
	assert.Equal(t, 20*time.Second, iv.TaskListStale)
	assert.Equal(t, 2*time.Second, iv.TaskStatus)
	assert.Equal(t, time.Minute, iv.Health)
	assert.Equal(t, 1, iv.HealthRetries)
	assert.Equal(t, 5*time.Minute, iv.ReportStale)
	assert.Equal(t, time.Second, iv.HealthRetryBase)
}
