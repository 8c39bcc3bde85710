package cli

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/recall-review/internal/observability"
)

type metricsMock struct {
	calcFn func(since time.Time) (*observability.Metrics, error)
}

func (m *metricsMock) Calculate(since time.Time) (*observability.Metrics, error) {
	return m.calcFn(since)
}

func withMetrics(t *testing.T, fn func(since time.Time) (*observability.Metrics, error)) {
	t.Helper()
	orig := MetricsCalc
	t.Cleanup(func() {
		MetricsCalc = orig
		metricsSince, metricsJSON, metricsYAML = "7d", false, false
	})
	metricsSince, metricsJSON, metricsYAML = "7d", false, false
	MetricsCalc = &metricsMock{calcFn: fn}
}

func TestMetricsCmd_NilCalculator(t *testing.T) {
	orig := MetricsCalc
	defer func() { MetricsCalc = orig }()
	MetricsCalc = nil

	_, err := runCmd(t, metricsCmd)
	if err == nil {
		t.Fatal("expected error when MetricsCalc is nil")
	}
	if !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMetricsCmd_InvalidSinceFormat(t *testing.T) {
	withMetrics(t, func(time.Time) (*observability.Metrics, error) {
		return &observability.Metrics{}, nil
	})

	tests := []struct {
		name   string
		since  string
		errMsg string
	}{
		{"invalid suffix", "7w", "unsupported duration suffix"},
		{"invalid number", "xd", "invalid duration"},
		{"too short", "d", "invalid duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metricsSince = tt.since
			_, err := runCmd(t, metricsCmd)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q should contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestMetricsCmd_PassesWindow(t *testing.T) {
	var got time.Time
	withMetrics(t, func(since time.Time) (*observability.Metrics, error) {
		got = since
		return &observability.Metrics{}, nil
	})
	metricsSince = "24h"

	before := time.Now().UTC().Add(-24 * time.Hour)
	if _, err := runCmd(t, metricsCmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Before(before.Add(-time.Minute)) || got.After(before.Add(time.Minute)) {
		t.Errorf("since = %v, want about %v", got, before)
	}
}

func TestMetricsCmd_Success_TableFormat(t *testing.T) {
	withMetrics(t, func(time.Time) (*observability.Metrics, error) {
		return &observability.Metrics{
			FeedbackSubmitted: 5,
			GradeOverrides:    2,
			FinalGrades:       map[string]int{"C": 1, "A": 3, "B": 1},
			Exports:           1,
			TasksExported:     4,
			EventCount:        42,
		}, nil
	})

	out, err := runCmd(t, metricsCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Feedback submitted:", "Grade overrides:", "1 (4 tasks)", "Final grades:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "A:") > strings.Index(out, "C:") {
		t.Errorf("expected final grades sorted:\n%s", out)
	}
}

func TestMetricsCmd_StructuredFormats(t *testing.T) {
	withMetrics(t, func(time.Time) (*observability.Metrics, error) {
		return &observability.Metrics{FeedbackSubmitted: 2, EventCount: 10}, nil
	})

	metricsJSON = true
	out, err := runCmd(t, metricsCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"feedback_submitted": 2`) {
		t.Errorf("unexpected JSON output:\n%s", out)
	}

	metricsJSON, metricsYAML = false, true
	out, err = runCmd(t, metricsCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "feedback_submitted: 2") {
		t.Errorf("unexpected YAML output:\n%s", out)
	}
}

func TestMetricsCmd_CalculateError(t *testing.T) {
	withMetrics(t, func(time.Time) (*observability.Metrics, error) {
		return nil, fmt.Errorf("event log corrupted")
	})

	_, err := runCmd(t, metricsCmd)
	if err == nil {
		t.Fatal("expected error from Calculate")
	}
	if !strings.Contains(err.Error(), "calculating metrics") {
		t.Errorf("unexpected error: %v", err)
	}
}
