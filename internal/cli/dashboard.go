package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/recall-review/internal/api"
	"github.com/valter-silva-au/recall-review/internal/core"
	"github.com/valter-silva-au/recall-review/internal/datasync"
	"github.com/valter-silva-au/recall-review/internal/integration"
	"github.com/valter-silva-au/recall-review/pkg/models"
)

// Dashboard panel indices.
const (
	panelList = iota
	panelReport
	panelFeedback
	panelCount
)

var panelNames = [panelCount]string{"Students", "Report", "Feedback"}

const (
	playheadTick   = 250 * time.Millisecond
	savedResetTime = 3 * time.Second
)

// Dashboard messages.
type (
	stateMsg    core.State
	playTickMsg struct{ gen int }
	healthMsg   struct{ err error }

	selectResultMsg struct {
		taskID string
		err    error
	}
	feedbackResultMsg struct {
		taskID string
		err    error
	}
	exportResultMsg struct {
		path string
		err  error
	}
	savedResetMsg struct{ seq int }
)

// panelFaults remembers panels whose rendering panicked. A faulted panel
// shows its error and a reset hint instead of its content.
type panelFaults struct {
	err [panelCount]string
}

// audioState is shared by every copy of the model so seek callbacks
// registered on the bus always reach the current playhead.
type audioState struct {
	taskID   string
	playhead *core.Playhead
	player   integration.Player
	bus      *core.SeekBus
	store    *core.Store
	notice   string
	tickGen  int

	// published is the task id last written to the Store as playing.
	published string
}

func newAudioState(player integration.Player, store *core.Store) *audioState {
	a := &audioState{player: player, store: store, bus: &core.SeekBus{}, playhead: core.NewPlayhead(nil)}
	a.bus.Register(core.SeekFunc(func(ms int64) {
		a.playhead.SeekTo(ms)
	}))
	if player != nil {
		a.bus.Register(player)
	}
	return a
}

// load resets the playhead for a newly shown report.
func (a *audioState) load(r *models.Report) {
	if r == nil || r.TaskID == a.taskID {
		return
	}
	a.stop()
	a.taskID = r.TaskID
	a.playhead = core.NewPlayhead(r)
	a.notice = ""
	if a.player != nil {
		a.player.Load(r.TaskID, r.AudioURL)
	}
}

// publish records the playing task in the Store when it changed.
func (a *audioState) publish() {
	id := ""
	if a.playhead.Playing {
		id = a.taskID
	}
	if a.store == nil || id == a.published {
		return
	}
	a.published = id
	a.store.SetAudioPlaying(id)
}

// seekTo plays from the start of ann.
func (a *audioState) seekTo(ann models.Annotation) {
	a.bus.SeekToAnnotation(ann)
	a.publish()
}

func (a *audioState) toggle() {
	a.playhead.Toggle()
	defer a.publish()
	if a.player == nil {
		return
	}
	if a.playhead.Playing {
		if err := a.player.Play(a.playhead.PositionMs()); err != nil {
			if errors.Is(err, integration.ErrNoPlayer) {
				a.notice = "no audio player configured; showing position only"
			} else {
				a.notice = err.Error()
			}
		}
		return
	}
	_ = a.player.Stop()
}

func (a *audioState) skip(d time.Duration) {
	a.playhead.SeekRelative(d)
	if a.playhead.Playing && a.player != nil {
		a.player.SeekTo(a.playhead.PositionMs())
	}
}

func (a *audioState) stop() {
	a.playhead.Playing = false
	if a.player != nil {
		_ = a.player.Stop()
	}
	a.publish()
}

type dashboardModel struct {
	ctx    context.Context
	syncer *datasync.Syncer
	states <-chan core.State

	st          core.State
	activePanel int
	cursor      int
	annCursor   int
	width       int

	// Report panel: j/k walk the issue list, or the transcript highlights
	// while transcriptFocus is set.
	transcriptFocus bool
	hlCursor        int

	height      int

	spinner spinner.Model
	comment textarea.Model

	// Feedback form state for the selected report.
	grade     models.Grade
	gradeFor  string
	saving    bool
	saved     bool
	savedSeq  int
	formError string

	missingReport string
	health        error
	healthKnown   bool
	notice        string

	audio  *audioState
	faults *panelFaults
}

func newDashboardModel(ctx context.Context, syncer *datasync.Syncer, player integration.Player, states <-chan core.State) dashboardModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	ta := textarea.New()
	ta.Placeholder = "Comment for the student"
	ta.ShowLineNumbers = false
	ta.CharLimit = 1000
	ta.SetHeight(4)

	return dashboardModel{
		ctx:         ctx,
		syncer:      syncer,
		states:      states,
		st:          syncer.Store().Snapshot(),
		activePanel: panelList,
		spinner:     sp,
		comment:     ta,
		audio:       newAudioState(player, syncer.Store()),
		faults:      &panelFaults{},
	}
}

// subscribeStates forwards Store snapshots into a channel, keeping only the
// newest when the dashboard falls behind.
func subscribeStates(store *core.Store) (<-chan core.State, func()) {
	ch := make(chan core.State, 1)
	unsubscribe := store.Subscribe(func(st core.State) {
		for {
			select {
			case ch <- st:
				return
			default:
				select {
				case <-ch:
				default:
				}
			}
		}
	})
	return ch, unsubscribe
}

func waitForState(ch <-chan core.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return stateMsg(st)
	}
}

func playTick(gen int) tea.Cmd {
	return tea.Tick(playheadTick, func(time.Time) tea.Msg { return playTickMsg{gen: gen} })
}

// startTicks begins a new tick chain, retiring any chain already running.
func (a *audioState) startTicks() tea.Cmd {
	a.tickGen++
	return playTick(a.tickGen)
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(waitForState(m.states), m.spinner.Tick)
}

// visibleTasks is the filtered and sorted list the cursor moves over.
func (m dashboardModel) visibleTasks() []models.Task {
	return core.FilteredAndSortedTasks(m.st)
}

// annotationOrder lists annotation indexes in display order: score-impacting
// issues first.
func annotationOrder(r *models.Report) []int {
	if r == nil {
		return nil
	}
	hard, soft := issueGroups(r.Annotations)
	return append(hard, soft...)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.comment.SetWidth(max(20, m.rightWidth()-6))
		return m, nil

	case stateMsg:
		m.applyState(core.State(msg))
		return m, waitForState(m.states)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case playTickMsg:
		if msg.gen != m.audio.tickGen || !m.audio.playhead.Playing {
			return m, nil
		}
		m.audio.playhead.Advance(playheadTick)
		if !m.audio.playhead.Playing {
			m.audio.stop()
			return m, nil
		}
		return m, playTick(msg.gen)

	case healthMsg:
		m.health = msg.err
		m.healthKnown = true
		return m, nil

	case selectResultMsg:
		if msg.err != nil && api.IsNotFound(msg.err) {
			m.missingReport = msg.taskID
		}
		return m, nil

	case feedbackResultMsg:
		m.saving = false
		if msg.err != nil {
			m.formError = msg.err.Error()
			return m, nil
		}
		m.formError = ""
		m.saved = true
		m.savedSeq++
		seq := m.savedSeq
		return m, tea.Tick(savedResetTime, func(time.Time) tea.Msg { return savedResetMsg{seq: seq} })

	case savedResetMsg:
		if msg.seq == m.savedSeq {
			m.saved = false
		}
		return m, nil

	case exportResultMsg:
		if msg.err == nil {
			m.notice = "exported to " + msg.path
		} else {
			m.notice = ""
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.comment.Focused() {
		var cmd tea.Cmd
		m.comment, cmd = m.comment.Update(msg)
		return m, cmd
	}
	return m, nil
}

// applyState takes a new Store snapshot and keeps the cursors and the
// feedback form consistent with it.
func (m *dashboardModel) applyState(st core.State) {
	m.st = st
	if n := len(m.visibleTasks()); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
	r := st.SelectedReport
	if r == nil {
		return
	}
	m.audio.load(r)
	if r.TaskID != m.gradeFor {
		m.gradeFor = r.TaskID
		m.grade = r.FinalGradeSuggestion
		m.comment.Reset()
		m.annCursor = 0
		m.hlCursor = 0
		m.formError = ""
		m.saved = false
	}
	if m.annCursor >= len(r.Annotations) {
		m.annCursor = 0
	}
	if m.hlCursor >= len(core.HighlightIndex(core.MatchAnnotations(r.FullTranscription, r.Annotations))) {
		m.hlCursor = 0
	}
}

func (m dashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.audio.stop()
		return m, tea.Quit
	}

	// While typing a comment most keys belong to the textarea.
	if m.comment.Focused() {
		switch key {
		case "esc":
			m.comment.Blur()
			return m, nil
		case "ctrl+s":
			return m.submitFeedback()
		case "tab", "shift+tab":
			m.comment.Blur()
		default:
			var cmd tea.Cmd
			m.comment, cmd = m.comment.Update(msg)
			return m, cmd
		}
	}

	store := m.syncer.Store()
	switch key {
	case "q":
		m.audio.stop()
		return m, tea.Quit
	case "tab":
		m.activePanel = (m.activePanel + 1) % panelCount
		return m, nil
	case "shift+tab":
		m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
		return m, nil
	case "r":
		return m, m.refresh()
	case "f":
		store.SetFilterGrade(nextFilter(m.st.FilterGrade))
		m.cursor = 0
		return m, nil
	case "o":
		store.SetSortBy(nextSort(m.st.SortBy))
		m.cursor = 0
		return m, nil
	case "e":
		return m, m.export()
	case "x":
		return m.resetPanel(), nil
	}

	switch m.activePanel {
	case panelList:
		return m.handleListKey(key)
	case panelReport:
		return m.handleReportKey(key)
	case panelFeedback:
		return m.handleFeedbackKey(key)
	}
	return m, nil
}

func (m dashboardModel) handleListKey(key string) (tea.Model, tea.Cmd) {
	tasks := m.visibleTasks()
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(tasks)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(0, len(tasks)-1)
	case " ":
		if m.cursor < len(tasks) {
			m.syncer.Store().ToggleCardExpansion(tasks[m.cursor].TaskID)
		}
	case "enter":
		if m.cursor < len(tasks) {
			id := tasks[m.cursor].TaskID
			m.missingReport = ""
			m.audio.stop()
			m.activePanel = panelReport
			return m, m.selectTask(id)
		}
	}
	return m, nil
}

func (m dashboardModel) handleReportKey(key string) (tea.Model, tea.Cmd) {
	r := m.st.SelectedReport
	if r == nil {
		return m, nil
	}
	if m.transcriptFocus {
		return m.handleTranscriptKey(r, key)
	}
	order := annotationOrder(r)
	switch key {
	case "t":
		m.transcriptFocus = true
	case "up", "k":
		if m.annCursor > 0 {
			m.annCursor--
		}
	case "down", "j":
		if m.annCursor < len(order)-1 {
			m.annCursor++
		}
	case "enter":
		if m.annCursor < len(order) {
			m.audio.seekTo(r.Annotations[order[m.annCursor]])
			return m, m.audio.startTicks()
		}
	case "p", " ":
		wasPlaying := m.audio.playhead.Playing
		m.audio.toggle()
		if !wasPlaying {
			return m, m.audio.startTicks()
		}
	case "left", "h":
		m.audio.skip(-core.SkipStep)
	case "right", "l":
		m.audio.skip(core.SkipStep)
	}
	return m, nil
}

// handleTranscriptKey moves over the highlighted transcript segments and
// plays the one chosen with enter.
func (m dashboardModel) handleTranscriptKey(r *models.Report, key string) (tea.Model, tea.Cmd) {
	segments := core.MatchAnnotations(r.FullTranscription, r.Annotations)
	highlights := core.HighlightIndex(segments)
	switch key {
	case "t", "esc":
		m.transcriptFocus = false
		return m, nil
	case "up", "k":
		if m.hlCursor > 0 {
			m.hlCursor--
		}
		return m, nil
	case "down", "j":
		if m.hlCursor < len(highlights)-1 {
			m.hlCursor++
		}
		return m, nil
	case "enter":
		if m.hlCursor >= len(highlights) {
			return m, nil
		}
		ann, ok := core.AnnotationForSegment(segments, highlights[m.hlCursor])
		if !ok {
			return m, nil
		}
		m.audio.seekTo(ann)
		return m, m.audio.startTicks()
	}
	m.transcriptFocus = false
	next, cmd := m.handleReportKey(key)
	if dm, ok := next.(dashboardModel); ok {
		dm.transcriptFocus = true
		return dm, cmd
	}
	return next, cmd
}

func (m dashboardModel) handleFeedbackKey(key string) (tea.Model, tea.Cmd) {
	if m.st.SelectedReport == nil {
		return m, nil
	}
	switch strings.ToLower(key) {
	case "a", "1":
		m.grade = models.GradeA
	case "b", "2":
		m.grade = models.GradeB
	case "c", "3":
		m.grade = models.GradeC
	case "i", "enter":
		cmd := m.comment.Focus()
		return m, cmd
	case "ctrl+s", "s":
		return m.submitFeedback()
	}
	return m, nil
}

func (m dashboardModel) resetPanel() dashboardModel {
	m.faults.err[m.activePanel] = ""
	switch m.activePanel {
	case panelList:
		m.cursor = 0
	case panelReport:
		m.annCursor = 0
		m.hlCursor = 0
		m.transcriptFocus = false
		m.audio.stop()
	case panelFeedback:
		m.comment.Reset()
		m.formError = ""
		if r := m.st.SelectedReport; r != nil {
			m.grade = r.FinalGradeSuggestion
		}
	}
	return m
}

func (m dashboardModel) refresh() tea.Cmd {
	ctx, syncer := m.ctx, m.syncer
	return func() tea.Msg {
		_ = syncer.RefreshTasks(ctx)
		return nil
	}
}

func (m dashboardModel) selectTask(id string) tea.Cmd {
	ctx, syncer := m.ctx, m.syncer
	return func() tea.Msg {
		return selectResultMsg{taskID: id, err: syncer.SelectTask(ctx, id)}
	}
}

func (m dashboardModel) export() tea.Cmd {
	ctx, syncer := m.ctx, m.syncer
	return func() tea.Msg {
		path, err := syncer.ExportCompleted(ctx)
		return exportResultMsg{path: path, err: err}
	}
}

func (m dashboardModel) submitFeedback() (tea.Model, tea.Cmd) {
	r := m.st.SelectedReport
	if r == nil || m.saving {
		return m, nil
	}
	if !m.grade.Valid() {
		m.formError = "choose a grade first"
		return m, nil
	}
	m.saving = true
	m.formError = ""
	m.comment.Blur()
	ctx, syncer := m.ctx, m.syncer
	fb := models.TeacherFeedback{
		TaskID:         r.TaskID,
		FinalGrade:     m.grade,
		TeacherComment: strings.TrimSpace(m.comment.Value()),
	}
	return m, func() tea.Msg {
		_, err := syncer.SubmitFeedback(ctx, fb)
		return feedbackResultMsg{taskID: fb.TaskID, err: err}
	}
}

func nextFilter(f core.GradeFilter) core.GradeFilter {
	order := []core.GradeFilter{core.FilterAll, core.FilterA, core.FilterB, core.FilterC}
	for i, g := range order {
		if g == f {
			return order[(i+1)%len(order)]
		}
	}
	return core.FilterAll
}

func nextSort(s core.SortBy) core.SortBy {
	for i, o := range core.SortOrders {
		if o == s {
			return core.SortOrders[(i+1)%len(core.SortOrders)]
		}
	}
	return core.SortByPriority
}

// --- Rendering ---

func (m dashboardModel) leftWidth() int {
	if m.width < 100 {
		return max(30, m.width-2)
	}
	return m.width * 2 / 5
}

func (m dashboardModel) rightWidth() int {
	if m.width < 100 {
		return max(30, m.width-2)
	}
	return m.width - m.leftWidth() - 2
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	help := helpStyle.Render("tab: panel | enter: open | space: expand | f: grade filter | o: sort | r: refresh | e: export | x: reset panel | q: quit")

	var banner string
	if m.st.Error != "" {
		banner = errorBannerStyle.Width(max(10, m.width-2)).Render("Error: "+m.st.Error) + "\n"
	}

	list := m.frame(panelList, m.leftWidth(), m.safeRender(panelList, m.renderList))
	report := m.frame(panelReport, m.rightWidth(), m.safeRender(panelReport, m.renderReport))
	feedback := m.frame(panelFeedback, m.rightWidth(), m.safeRender(panelFeedback, m.renderFeedback))

	var body string
	if m.width < 100 {
		body = lipgloss.JoinVertical(lipgloss.Left, list, report, feedback)
	} else {
		right := lipgloss.JoinVertical(lipgloss.Left, report, feedback)
		body = lipgloss.JoinHorizontal(lipgloss.Top, list, right)
	}

	footer := help
	if m.notice != "" {
		footer = dimStyle.Render(m.notice) + "\n" + help
	}
	return fmt.Sprintf("%s\n%s\n%s\n%s", header, banner, body, footer)
}

// safeRender renders one panel, turning a panic into a panel error so the
// rest of the dashboard keeps working.
func (m dashboardModel) safeRender(panel int, fn func(width int) string) (out string) {
	if msg := m.faults.err[panel]; msg != "" {
		return faultText(msg)
	}
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprint(r)
			m.faults.err[panel] = msg
			slog.Error("dashboard panel crashed", "panel", panelNames[panel], "panic", msg)
			out = faultText(msg)
		}
	}()
	width := m.leftWidth()
	if panel != panelList {
		width = m.rightWidth()
	}
	return fn(max(10, width-4))
}

func faultText(msg string) string {
	return statusFailedStyle.Render("This panel failed to render: "+msg) + "\n" + helpStyle.Render("press x to reset it")
}

func (m dashboardModel) frame(panel, width int, content string) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	title := headerStyle.Render(panelNames[panel])
	return style.Width(max(10, width-2)).Render(title + "\n" + content)
}

func (m dashboardModel) renderHeader() string {
	stats := core.HeaderStats(m.st)
	title := titleStyle.Render(" Recall Review ")
	parts := []string{
		fmt.Sprintf("%d shown", stats.Total),
		fmt.Sprintf("%d pending", stats.Pending),
		fmt.Sprintf("%d approved", stats.Approved),
		"grade " + string(m.st.FilterGrade),
		"sort " + string(m.st.SortBy),
	}
	line := title + "  " + strings.Join(parts, " · ")
	if m.st.Loading {
		line += "  " + m.spinner.View()
	}
	switch {
	case !m.healthKnown:
	case m.health != nil:
		line += "  " + statusFailedStyle.Render("service unavailable")
	default:
		line += "  " + approvedStyle.Render("service ok")
	}
	return line
}

func (m dashboardModel) renderList(width int) string {
	tasks := m.visibleTasks()
	if len(tasks) == 0 {
		if m.st.Loading {
			return m.spinner.View() + " Loading tasks..."
		}
		return dimStyle.Render("No tasks found.")
	}

	var b strings.Builder
	for i, t := range tasks {
		cursor := "  "
		if i == m.cursor && m.activePanel == panelList {
			cursor = "▶ "
		}
		selected := " "
		if t.TaskID == m.st.SelectedTaskID {
			selected = "*"
		}
		name := padRight(truncateWidth(t.DisplayName(), 16), 16)
		detail := styleForStatus(t.Status).Render(string(t.Status))
		if t.Result != nil {
			detail = fmt.Sprintf("%s %d", gradeStyle(t.Result.FinalGradeSuggestion).Render(string(t.Result.FinalGradeSuggestion)), t.Result.MistakeCount)
			if t.IsApproved() {
				detail += " " + approvedStyle.Render("✓")
			}
		}
		if t.TaskID == m.st.AudioPlayingTaskID {
			detail += " ♪"
		}
		fmt.Fprintf(&b, "%s%s%s %s %s\n", cursor, selected, tierMarker(t), name, detail)

		if core.IsExpanded(m.st, t.TaskID) {
			b.WriteString(m.renderCard(t, width-6))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderCard renders the expanded details under a task row.
func (m dashboardModel) renderCard(t models.Task, width int) string {
	indent := lipgloss.NewStyle().PaddingLeft(6).Width(max(10, width))
	var lines []string
	lines = append(lines, fmt.Sprintf("%s · session %d · %s", t.UnitID, t.SessionIndex, t.TaskID))
	if r := t.Result; r != nil {
		lines = append(lines, fmt.Sprintf("priority %d (%s)", core.TaskPriority(t), core.TierFor(core.TaskPriority(t))))
		if r.AISummaryComment != "" {
			lines = append(lines, r.AISummaryComment)
		}
		var labels []string
		for _, it := range r.IssueTypes() {
			labels = append(labels, it.Label())
		}
		if len(labels) > 0 {
			lines = append(lines, "issues: "+strings.Join(labels, ", "))
		}
	}
	return indent.Render(dimStyle.Render(strings.Join(lines, "\n"))) + "\n"
}

func (m dashboardModel) renderReport(width int) string {
	if m.st.SelectedTaskID == "" {
		return dimStyle.Render("Select a student to see the report.")
	}
	r := m.st.SelectedReport
	if r == nil || r.TaskID != m.st.SelectedTaskID {
		task, ok := core.SelectedTask(m.st)
		switch {
		case m.missingReport == m.st.SelectedTaskID:
			return dimStyle.Render("No report found for this task.")
		case ok && task.Status.IsActive():
			return m.spinner.View() + " Evaluation in progress (" + string(task.Status) + ")..."
		case ok && task.Status == models.StatusFailed:
			return statusFailedStyle.Render("The evaluation of this recording failed.")
		default:
			return m.spinner.View() + " Loading report..."
		}
	}

	ph := m.audio.playhead
	segments := core.MatchAnnotations(r.FullTranscription, r.Annotations)
	active := core.ActiveAnnotation(r.Annotations, ph.PositionMs())
	order := annotationOrder(r)
	cursorIdx, selectedSeg := -1, -1
	if m.transcriptFocus {
		if hl := core.HighlightIndex(segments); m.hlCursor < len(hl) {
			selectedSeg = hl[m.hlCursor]
		}
	} else if m.annCursor < len(order) {
		cursorIdx = order[m.annCursor]
	}

	wrap := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	b.WriteString(wrap.Render(renderReportHeader(r)) + "\n")
	b.WriteString(renderPlayhead(ph, width) + "\n")
	if m.audio.notice != "" {
		b.WriteString(dimStyle.Render(m.audio.notice) + "\n")
	}
	if r.AISummaryComment != "" {
		b.WriteString("\n" + wrap.Render(r.AISummaryComment) + "\n")
	}
	b.WriteString("\n")
	if r.FullTranscription == "" {
		b.WriteString(dimStyle.Render("No transcription available.") + "\n")
	} else {
		b.WriteString(wrap.Render(renderTranscript(segments, active, selectedSeg)) + "\n")
	}
	b.WriteString("\n" + wrap.Render(renderIssueSummary(r, segments, cursorIdx)))
	help := "j/k: issue | t: transcript | enter: play issue | p: play/pause | ←/→: 10s"
	if m.transcriptFocus {
		help = "j/k: highlight | enter: play highlight | t/esc: issues | p: play/pause | ←/→: 10s"
	}
	b.WriteString("\n" + helpStyle.Render(help))
	return b.String()
}

// renderPlayhead draws the play state, position and a progress bar.
func renderPlayhead(ph *core.Playhead, width int) string {
	icon := "⏸"
	if ph.Playing {
		icon = "▶"
	}
	clock := fmt.Sprintf("%s %s / %s ", icon, core.FormatClock(ph.Position), core.FormatClock(ph.Duration))
	barWidth := max(5, width-lipgloss.Width(clock)-2)
	filled := 0
	if ph.Duration > 0 {
		filled = int(int64(barWidth) * int64(ph.Position) / int64(ph.Duration))
	}
	filled = min(filled, barWidth)
	return clock + "[" + strings.Repeat("█", filled) + strings.Repeat("─", barWidth-filled) + "]"
}

func (m dashboardModel) renderFeedback(width int) string {
	r := m.st.SelectedReport
	if r == nil || r.TaskID != m.st.SelectedTaskID {
		return dimStyle.Render("Open a report to record feedback.")
	}

	var b strings.Builder
	b.WriteString("Final grade: ")
	for _, g := range models.Grades {
		label := " " + string(g) + " "
		if g == m.grade {
			label = gradeStyle(g).Reverse(true).Render(label)
		}
		b.WriteString(label + " ")
	}
	if m.grade != r.FinalGradeSuggestion {
		b.WriteString(dimStyle.Render(fmt.Sprintf(" AI suggested %s", r.FinalGradeSuggestion)))
	}
	b.WriteString("\n\n" + m.comment.View() + "\n")

	switch {
	case m.saving:
		b.WriteString(m.spinner.View() + " Saving...")
	case m.saved:
		b.WriteString(approvedStyle.Render("Saved ✓"))
	case m.formError != "":
		b.WriteString(statusFailedStyle.Render(m.formError))
	case r.IsApproved():
		b.WriteString(approvedStyle.Render("Approved " + r.ApprovedAt.Format("2006-01-02 15:04")))
	}
	b.WriteString("\n" + helpStyle.Render("a/b/c: grade | i: comment | esc: stop typing | s or ctrl+s: save"))
	return lipgloss.NewStyle().Width(width).Render(b.String())
}

// redirectLogs sends slog output to path while the dashboard owns the
// terminal. The returned function restores the previous logger.
func redirectLogs(path string) (func(), error) {
	prev := slog.Default()
	if path == "" {
		slog.SetDefault(slog.New(slog.DiscardHandler))
		return func() { slog.SetDefault(prev) }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	level := slog.LevelInfo
	if globalFlags.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	return func() {
		slog.SetDefault(prev)
		_ = f.Close()
	}, nil
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive review dashboard",
	Long: `Launch the interactive review dashboard.

The student list is ordered by review priority and refreshes every few
seconds. Open a report to read the highlighted transcript, jump to any issue
in the recording, and record the final grade and comment.

Navigate between panels with Tab, refresh with r, export with e, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSyncer(); err != nil {
			return err
		}
		restore, err := redirectLogs(LogPath)
		if err != nil {
			return err
		}
		defer restore()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		states, unsubscribe := subscribeStates(Syncer.Store())
		defer unsubscribe()

		p := tea.NewProgram(newDashboardModel(ctx, Syncer, Player, states), tea.WithAltScreen(), tea.WithContext(ctx))
		go func() {
			_ = Syncer.Run(ctx, func(_ *models.HealthStatus, err error) {
				p.Send(healthMsg{err: err})
			})
		}()

		_, err = p.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
