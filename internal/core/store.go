package core

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/valter-silva-au/recall-review/pkg/models"
)

// GradeFilter restricts the task list to reports of one grade.
type GradeFilter string

const (
	FilterAll GradeFilter = "ALL"
	FilterA   GradeFilter = "A"
	FilterB   GradeFilter = "B"
	FilterC   GradeFilter = "C"
)

// ParseGradeFilter accepts ALL, A, B or C in any case. Empty means ALL.
func ParseGradeFilter(s string) (GradeFilter, error) {
	switch f := GradeFilter(strings.ToUpper(strings.TrimSpace(s))); f {
	case "", FilterAll:
		return FilterAll, nil
	case FilterA, FilterB, FilterC:
		return f, nil
	default:
		return "", fmt.Errorf("invalid grade filter %q", s)
	}
}

// SortBy selects the ordering of the task list.
type SortBy string

const (
	SortByPriority    SortBy = "priority"
	SortByCreatedAt   SortBy = "created_at"
	SortByStudentName SortBy = "student_name"
)

// SortOrders lists the sort orders in the order the dashboard cycles them.
var SortOrders = []SortBy{SortByPriority, SortByCreatedAt, SortByStudentName}

// ParseSortBy accepts one of the SortBy values. Empty means priority.
func ParseSortBy(s string) (SortBy, error) {
	switch sb := SortBy(strings.ToLower(strings.TrimSpace(s))); sb {
	case "":
		return SortByPriority, nil
	case SortByPriority, SortByCreatedAt, SortByStudentName:
		return sb, nil
	default:
		return "", fmt.Errorf("invalid sort order %q", s)
	}
}

// DefaultLocale is the collation locale used for student names.
var DefaultLocale = language.Make("zh-CN")

// State is a snapshot of everything the dashboard shows. Values returned by
// Store.Snapshot share nothing with the store.
type State struct {
	Tasks []models.Task
	// SelectedTaskID is "" when nothing is selected. It may name a task that
	// is no longer in Tasks.
	SelectedTaskID     string
	SelectedReport     *models.Report
	FilterGrade        GradeFilter
	SortBy             SortBy
	ExpandedCards      map[string]bool
	AudioPlayingTaskID string
	Loading            bool
	Error              string
	Locale             language.Tag
}

func (s State) clone() State {
	out := s
	if s.Tasks != nil {
		out.Tasks = make([]models.Task, len(s.Tasks))
		for i, t := range s.Tasks {
			out.Tasks[i] = t.Clone()
		}
	}
	if s.SelectedReport != nil {
		r := s.SelectedReport.Clone()
		out.SelectedReport = &r
	}
	out.ExpandedCards = make(map[string]bool, len(s.ExpandedCards))
	for id := range s.ExpandedCards {
		out.ExpandedCards[id] = true
	}
	return out
}

// TaskPatch holds the fields to merge into an existing task. Nil fields are
// left untouched.
type TaskPatch struct {
	StudentID    *string
	UnitID       *string
	SessionIndex *int
	AudioPath    *string
	Status       *models.TaskStatus
	CreatedAt    *models.Timestamp
	UpdatedAt    *models.Timestamp
	Result       *models.Report
}

// PatchFromTask builds a patch that overwrites every field of the target
// with t's values. A nil Result in t leaves the target's report in place.
func PatchFromTask(t models.Task) TaskPatch {
	return TaskPatch{
		StudentID:    &t.StudentID,
		UnitID:       &t.UnitID,
		SessionIndex: &t.SessionIndex,
		AudioPath:    &t.AudioPath,
		Status:       &t.Status,
		CreatedAt:    &t.CreatedAt,
		UpdatedAt:    &t.UpdatedAt,
		Result:       t.Result,
	}
}

func (p TaskPatch) apply(t *models.Task) {
	if p.StudentID != nil {
		t.StudentID = *p.StudentID
	}
	if p.UnitID != nil {
		t.UnitID = *p.UnitID
	}
	if p.SessionIndex != nil {
		t.SessionIndex = *p.SessionIndex
	}
	if p.AudioPath != nil {
		t.AudioPath = *p.AudioPath
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.CreatedAt != nil {
		t.CreatedAt = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = *p.UpdatedAt
	}
	if p.Result != nil {
		r := p.Result.Clone()
		t.Result = &r
	}
}

// StoreOptions configures a new Store.
type StoreOptions struct {
	Locale      language.Tag
	FilterGrade GradeFilter
	SortBy      SortBy
}

// Store is the single source of truth for tasks and dashboard selection
// state. Every mutation runs under one lock, so readers never observe a
// partially applied update; racing writers resolve last-write-wins.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
}

// NewStore creates an empty store. Zero options fall back to the ALL
// filter, priority order and the zh-CN collation locale.
func NewStore(opts StoreOptions) *Store {
	st := State{
		FilterGrade:   opts.FilterGrade,
		SortBy:        opts.SortBy,
		ExpandedCards: make(map[string]bool),
		Locale:        opts.Locale,
	}
	if st.FilterGrade == "" {
		st.FilterGrade = FilterAll
	}
	if st.SortBy == "" {
		st.SortBy = SortByPriority
	}
	if st.Locale == language.Und {
		st.Locale = DefaultLocale
	}
	return &Store{state: st, listeners: make(map[int]func(State))}
}

// Subscribe registers fn to be called with a fresh snapshot after every
// mutation. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// mutate applies fn under the lock and notifies listeners afterwards.
func (s *Store) mutate(fn func(st *State)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.state.clone()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// SetTasks replaces the whole task list.
func (s *Store) SetTasks(tasks []models.Task) {
	cloned := make([]models.Task, len(tasks))
	for i, t := range tasks {
		cloned[i] = t.Clone()
	}
	s.mutate(func(st *State) {
		st.Tasks = cloned
	})
}

// AddTask appends a task. A task whose id is already present replaces the
// existing entry in place.
func (s *Store) AddTask(task models.Task) {
	task = task.Clone()
	s.mutate(func(st *State) {
		for i := range st.Tasks {
			if st.Tasks[i].TaskID == task.TaskID {
				st.Tasks[i] = task
				return
			}
		}
		st.Tasks = append(st.Tasks, task)
	})
}

// UpdateTask merges patch into the task with the given id. It is a no-op
// when no such task exists.
func (s *Store) UpdateTask(id string, patch TaskPatch) {
	s.mutate(func(st *State) {
		for i := range st.Tasks {
			if st.Tasks[i].TaskID == id {
				patch.apply(&st.Tasks[i])
				return
			}
		}
	})
}

// SetSelectedTaskID changes the selection without touching the selected
// report. Pass "" to clear it.
func (s *Store) SetSelectedTaskID(id string) {
	s.mutate(func(st *State) {
		st.SelectedTaskID = id
	})
}

// SetSelectedReport stores the most recently loaded report. Pass nil to
// clear it.
func (s *Store) SetSelectedReport(r *models.Report) {
	var cp *models.Report
	if r != nil {
		c := r.Clone()
		cp = &c
	}
	s.mutate(func(st *State) {
		st.SelectedReport = cp
	})
}

// SetFilterGrade changes the grade filter.
func (s *Store) SetFilterGrade(f GradeFilter) {
	s.mutate(func(st *State) {
		st.FilterGrade = f
	})
}

// SetSortBy changes the sort order.
func (s *Store) SetSortBy(sb SortBy) {
	s.mutate(func(st *State) {
		st.SortBy = sb
	})
}

// ToggleCardExpansion flips whether the card for id shows its details.
func (s *Store) ToggleCardExpansion(id string) {
	s.mutate(func(st *State) {
		if st.ExpandedCards[id] {
			delete(st.ExpandedCards, id)
		} else {
			st.ExpandedCards[id] = true
		}
	})
}

// SetAudioPlaying records which task's audio is playing. Pass "" when
// playback stops.
func (s *Store) SetAudioPlaying(id string) {
	s.mutate(func(st *State) {
		st.AudioPlayingTaskID = id
	})
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.mutate(func(st *State) {
		st.Loading = loading
	})
}

// SetError sets the user-facing error message. Pass "" to clear it.
func (s *Store) SetError(msg string) {
	s.mutate(func(st *State) {
		st.Error = msg
	})
}
