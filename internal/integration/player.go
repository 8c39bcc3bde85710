package integration

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/valter-silva-au/recall-review/internal/core"
	"github.com/valter-silva-au/recall-review/pkg/models"
)

// Placeholders substituted in player arguments.
const (
	URLPlaceholder   = "{url}"
	StartPlaceholder = "{start}"
)

// ErrNoPlayer is returned when no player command is configured.
var ErrNoPlayer = errors.New("no audio player configured")

// PlaybackContext carries the recording being played into the player's
// environment.
type PlaybackContext struct {
	TaskID  string
	URL     string
	StartMs int64
}

// Player plays a report's recording in an external program. Seeking
// restarts the program at the new offset.
type Player interface {
	core.SeekController
	// Load remembers the recording to play without starting it.
	Load(taskID, url string)
	// Play starts the loaded recording at startMs, replacing any running
	// instance.
	Play(startMs int64) error
	// Stop ends playback. It is a no-op when nothing is playing.
	Stop() error
	// Playing reports whether the player process is running.
	Playing() bool
	// Err returns the last start failure, if any.
	Err() error
}

// externalPlayer implements Player over os/exec.
type externalPlayer struct {
	cfg    models.PlayerConfig
	stderr io.Writer

	mu      sync.Mutex
	taskID  string
	url     string
	cmd     *exec.Cmd
	done    chan struct{}
	lastErr error
}

// NewPlayer creates a Player for the configured command. Output of the
// player goes to stderr when non-nil and is discarded otherwise.
func NewPlayer(cfg models.PlayerConfig, stderr io.Writer) Player {
	if stderr == nil {
		stderr = io.Discard
	}
	return &externalPlayer{cfg: cfg, stderr: stderr}
}

// FormatStart renders a millisecond offset as seconds for {start}.
func FormatStart(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatFloat(float64(ms)/1000, 'f', -1, 64)
}

// BuildPlayerArgs substitutes {url} and {start} in args. When no argument
// mentions {url}, the URL is appended as the last argument.
func BuildPlayerArgs(args []string, url string, startMs int64) []string {
	start := FormatStart(startMs)
	out := make([]string, 0, len(args)+1)
	hasURL := false
	for _, a := range args {
		if strings.Contains(a, URLPlaceholder) {
			hasURL = true
		}
		a = strings.ReplaceAll(a, URLPlaceholder, url)
		a = strings.ReplaceAll(a, StartPlaceholder, start)
		out = append(out, a)
	}
	if !hasURL {
		out = append(out, url)
	}
	return out
}

// BuildPlayerEnv appends RRD_* variables describing the recording to base.
func BuildPlayerEnv(base []string, pc PlaybackContext) []string {
	env := make([]string, len(base), len(base)+3)
	copy(env, base)
	return append(env,
		"RRD_TASK_ID="+pc.TaskID,
		"RRD_AUDIO_URL="+pc.URL,
		"RRD_START_MS="+strconv.FormatInt(pc.StartMs, 10),
	)
}

func (p *externalPlayer) Load(taskID, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.taskID = taskID
	p.url = url
}

func (p *externalPlayer) Play(startMs int64) error {
	if p.cfg.Command == "" {
		return ErrNoPlayer
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.url == "" {
		return fmt.Errorf("starting player: no recording loaded")
	}
	p.stopLocked()

	cmd := exec.Command(p.cfg.Command, BuildPlayerArgs(p.cfg.Args, p.url, startMs)...)
	cmd.Env = BuildPlayerEnv(os.Environ(), PlaybackContext{TaskID: p.taskID, URL: p.url, StartMs: startMs})
	var errBuf bytes.Buffer
	cmd.Stdout = p.stderr
	cmd.Stderr = io.MultiWriter(&errBuf, p.stderr)

	if err := cmd.Start(); err != nil {
		p.lastErr = fmt.Errorf("starting %s: %w", p.cfg.Command, err)
		return p.lastErr
	}
	p.lastErr = nil
	done := make(chan struct{})
	p.cmd = cmd
	p.done = done
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.cmd == cmd {
			if err != nil && !killed(err) {
				p.lastErr = fmt.Errorf("%s exited: %w: %s", p.cfg.Command, err, strings.TrimSpace(errBuf.String()))
			}
			p.cmd = nil
		}
		close(done)
	}()
	return nil
}

// SeekTo restarts the loaded recording at positionMs. Without a configured
// player or a loaded recording it does nothing.
func (p *externalPlayer) SeekTo(positionMs int64) {
	p.mu.Lock()
	ready := p.cfg.Command != "" && p.url != ""
	p.mu.Unlock()
	if ready {
		_ = p.Play(positionMs)
	}
}

func (p *externalPlayer) Stop() error {
	p.mu.Lock()
	done := p.stopLocked()
	p.mu.Unlock()
	if done != nil {
		<-done
	}
	return nil
}

// stopLocked kills the running process and returns a channel closed once it
// has been reaped.
func (p *externalPlayer) stopLocked() chan struct{} {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	_ = p.cmd.Process.Kill()
	p.cmd = nil
	return p.done
}

func (p *externalPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil
}

func (p *externalPlayer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func killed(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == -1
}
